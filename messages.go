package csound

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
)

// Message attributes.
const (
	MsgDefault  = 0x0000
	MsgError    = 0x1000
	MsgOrch     = 0x2000
	MsgRealtime = 0x3000
	MsgWarning  = 0x4000
	MsgStdout   = 0x5000
	MsgTypeMask = 0x7000
)

// ErrMessageUnsupported is returned by Message and MessageS on platforms
// where the engine's variadic printf entry points cannot be called.
var ErrMessageUnsupported = errors.New("csound: message printing not supported on this platform")

// Message is one entry of the engine's message buffer.
type Message struct {
	Text string
	Attr int
}

// Level maps the message attribute to a log level.
func (m Message) Level() slog.Level {
	switch m.Attr & MsgTypeMask {
	case MsgError:
		return slog.LevelError
	case MsgWarning:
		return slog.LevelWarn
	case MsgRealtime, MsgOrch:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func variadicSupported() bool {
	return !(runtime.GOOS == "darwin" && runtime.GOARCH == "arm64")
}

// Message prints text through the engine's message system.
func (c *Csound) Message(text string) error {
	return c.MessageS(MsgDefault, text)
}

// MessageS prints text with the given attribute.
func (c *Csound) MessageS(attr int, text string) error {
	if c.cs == 0 {
		return ErrClosed
	}
	if !variadicSupported() {
		return ErrMessageUnsupported
	}
	format, arg := cString("%s"), cString(text)
	c.api.messageS(c.cs, int32(attr), format, arg)
	keepAlive(format)
	keepAlive(arg)
	return nil
}

// CreateMessageBuffer starts capturing engine messages. With echo the
// messages are also printed to the console.
func (c *Csound) CreateMessageBuffer(echo bool) {
	if c.cs == 0 || c.msgBuffer {
		return
	}
	c.api.createMessageBuffer(c.cs, boolToInt32(echo))
	c.msgBuffer = true
}

// DestroyMessageBuffer stops capturing and discards pending messages.
func (c *Csound) DestroyMessageBuffer() {
	if c.cs == 0 || !c.msgBuffer {
		return
	}
	c.api.destroyMessageBuffer(c.cs)
	c.msgBuffer = false
}

// MessageCount returns the number of buffered messages.
func (c *Csound) MessageCount() int {
	if c.cs == 0 || !c.msgBuffer {
		return 0
	}
	return int(c.api.getMessageCnt(c.cs))
}

// ReadMessage pops the first buffered message. The second result is false
// when the buffer is empty.
func (c *Csound) ReadMessage() (Message, bool) {
	if c.MessageCount() <= 0 {
		return Message{}, false
	}
	m := Message{
		Text: goString(c.api.getFirstMessage(c.cs)),
		Attr: int(c.api.getFirstMessageAttr(c.cs)),
	}
	c.api.popFirstMessage(c.cs)
	return m, true
}

// Messages drains the message buffer.
func (c *Csound) Messages() []Message {
	var msgs []Message
	for {
		m, ok := c.ReadMessage()
		if !ok {
			return msgs
		}
		msgs = append(msgs, m)
	}
}

// flushMessages forwards complete buffered lines to the logger. The engine
// often prints one line in several fragments.
func (c *Csound) flushMessages() {
	for {
		m, ok := c.ReadMessage()
		if !ok {
			return
		}
		c.pending.WriteString(m.Text)
		if !strings.HasSuffix(m.Text, "\n") {
			continue
		}
		line := strings.TrimRight(c.pending.String(), "\n")
		c.pending.Reset()
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.logger.Log(context.Background(), m.Level(), line, "source", "engine")
	}
}

// OpcodeDef describes one opcode signature.
type OpcodeDef struct {
	Name     string
	OutTypes string
	InTypes  string
	Flags    int
}

// Opcodes lists the opcodes known to a fresh instance.
func Opcodes() ([]OpcodeDef, error) {
	c, err := New(WithMessageBuffer(false))
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.SetOption("-z1"); err != nil {
		return nil, err
	}
	return parseOpcodeListing(c.Messages()), nil
}

// parseOpcodeListing parses the output of the -z1 option: each opcode is
// printed as name, output types and input types fragments ending in a
// newline.
func parseOpcodeListing(msgs []Message) []OpcodeDef {
	var (
		defs  []OpcodeDef
		parts []string
	)
	for _, m := range msgs {
		if s := strings.TrimSpace(m.Text); s != "" {
			parts = append(parts, s)
		}
		if !strings.HasSuffix(m.Text, "\n") {
			continue
		}
		if len(parts) == 0 {
			break
		}
		if len(parts) == 3 {
			defs = append(defs, OpcodeDef{
				Name:     parts[0],
				OutTypes: nullTypes(parts[1]),
				InTypes:  nullTypes(parts[2]),
			})
		}
		parts = parts[:0]
	}
	return defs
}

func nullTypes(s string) string {
	if s == "(null)" {
		return ""
	}
	return s
}

// SystemSampleRate asks module for the hardware sample rate. An empty module
// selects DefaultRealtimeModule. It returns the rate and the module used.
func SystemSampleRate(module string) (float64, string, error) {
	if module == "" {
		module = DefaultRealtimeModule()
	}
	c, err := New(WithMessageBuffer(false))
	if err != nil {
		return 0, module, err
	}
	defer c.Close()

	if err := c.SetOptions("-+rtaudio="+module, "-odac", "--get-system-sr"); err != nil {
		return 0, module, err
	}
	sr, ok := parseSystemSr(c.Messages())
	if !ok {
		return 0, module, &EngineError{Op: "get system sr " + module, Code: Error}
	}
	return sr, module, nil
}

func parseSystemSr(msgs []Message) (float64, bool) {
	for _, m := range msgs {
		rest, ok := strings.CutPrefix(m.Text, "system sr:")
		if !ok {
			continue
		}
		sr, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			return 0, false
		}
		return sr, true
	}
	return 0, false
}
