// Package csound provides Go bindings for the Csound audio synthesis engine.
//
// The native library (libcsound64, API 7) is loaded at run time with purego,
// so no C toolchain is needed to build programs that use this package. Every
// engine operation is a pass-through to the shared library. The package adds
// one piece of coordination of its own: PerformanceThread, a render loop that
// drives an engine one control period at a time and runs queued tasks between
// periods.
//
// # Basic Usage
//
//	import csound "github.com/aspect-build/csound-go"
//
//	cs, err := csound.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cs.Close()
//
//	if err := cs.CompileCsdText(csd); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cs.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
//	pt, err := csound.NewPerformanceThread(cs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pt.Play()
//	v, err := pt.EvalCode("return 2+2", time.Second)
//	pt.Stop()
//	code, err := pt.Join()
//
// # Thread Safety
//
// A *Csound is NOT thread-safe. While a PerformanceThread is attached, the
// render loop owns the engine: other goroutines must reach it through
// PerformanceThread.Submit or the helpers built on it.
package csound

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Version returns the engine version as an integer (major*1000 +
// minor*10 + patch), or 0 when the library cannot be loaded.
func Version() int {
	a, err := ensureLoaded()
	if err != nil {
		return 0
	}
	return int(a.getVersion())
}

// VersionInfo contains detailed version information.
type VersionInfo struct {
	Major int
	Minor int
	Patch int
}

// GetVersionInfo returns detailed version information.
func GetVersionInfo() VersionInfo {
	return versionInfo(Version())
}

func versionInfo(v int) VersionInfo {
	return VersionInfo{
		Major: v / 1000,
		Minor: (v / 10) % 100,
		Patch: v % 10,
	}
}

// String returns the version as a formatted string.
func (v VersionInfo) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// SetOpcodeDir sets the plugin directory searched by instances created
// afterwards.
func SetOpcodeDir(path string) error {
	a, err := ensureLoaded()
	if err != nil {
		return err
	}
	p := cString(path)
	a.setOpcodedir(p)
	keepAlive(p)
	return nil
}

// Initialize runs the engine's process-wide initialisation with flags
// (InitNoSignalHandler, InitNoAtExit). It is optional: New initialises the
// library on demand.
func Initialize(flags int) error {
	a, err := ensureLoaded()
	if err != nil {
		return err
	}
	if rc := a.initialize(int32(flags)); rc < 0 {
		return codeToError("initialize", rc)
	}
	return nil
}

// SetGlobalEnv sets a global environment variable seen by all instances.
// An empty value deletes the variable.
func SetGlobalEnv(name, value string) error {
	a, err := ensureLoaded()
	if err != nil {
		return err
	}
	n, v := cString(name), cString(value)
	rc := a.setGlobalEnv(n, v)
	keepAlive(n)
	keepAlive(v)
	return codeToError("set global env", rc)
}

// keepAlive prevents the GC from collecting an object while native code is using it.
func keepAlive(obj interface{}) {
	runtime.KeepAlive(obj)
}

// cString returns a NUL-terminated copy of s, or nil for "".
func cString(s string) *byte {
	if s == "" {
		return nil
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

// goString copies a NUL-terminated native string. A nil pointer yields "".
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// unsafeFloats views n native floats starting at p.
func unsafeFloats(p *float64, n int) []float64 {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice(p, n)
}

// fixedString converts a NUL-padded char array.
func fixedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
