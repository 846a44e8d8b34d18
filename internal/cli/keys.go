package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	csound "github.com/aspect-build/csound-go"
)

const (
	keyCtrlC  = 0x03
	keyEscape = 0x1b
)

// handleKey applies one key press to a running performance. Space toggles
// pause; q, Escape and Ctrl-C stop. Other keys reach the engine's sensekey
// opcode. It reports whether the key stopped the performance.
func handleKey(pt *csound.PerformanceThread, b byte) bool {
	switch b {
	case ' ':
		pt.TogglePause()
	case 'q', 'Q', keyEscape, keyCtrlC:
		pt.Stop()
		return true
	default:
		_ = pt.Submit(func(e csound.Engine, _ *csound.PerformanceThread) error {
			if k, ok := e.(interface{ KeyPress(byte) }); ok {
				k.KeyPress(b)
			}
			return nil
		})
	}
	return false
}

// keyReader feeds raw terminal input to handleKey.
type keyReader struct {
	fd  int
	old *term.State
}

// startKeys puts stdin in raw mode and starts reading keys. It returns nil
// when stdin is not a terminal.
func startKeys(pt *csound.PerformanceThread, help io.Writer) (*keyReader, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to set raw mode: %w", err)
	}
	fmt.Fprint(help, "space: pause/resume, q: stop\r\n")

	// The reader stays blocked in Read after the performance ends; it goes
	// away with the process.
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 && handleKey(pt, buf[0]) {
				return
			}
		}
	}()
	return &keyReader{fd: fd, old: old}, nil
}

// restore returns the terminal to its previous mode.
func (k *keyReader) restore() {
	if k != nil && k.old != nil {
		_ = term.Restore(k.fd, k.old)
		k.old = nil
	}
}
