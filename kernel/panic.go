package kernel

import (
	"eclipseos/kernel/cpu"
	"eclipseos/kernel/kfmt"
)

var (
	// errRuntimePanic is reported when the kernel reaches a Go runtime
	// panic that did not originate from a *kernel.Error value.
	errRuntimePanic = &Error{Module: "rt0", Message: "kernel runtime panic"}

	cpuHaltFn = cpu.Halt
)

// Panic outputs the supplied error (if not nil) to the active output sink and
// halts the calling CPU. There is no supervisor above the kernel to recover
// into so Panic never returns.
func Panic(e error) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case nil:
		err = errRuntimePanic
	default:
		err = &Error{Module: "rt0", Message: e.Error()}
	}

	kfmt.Printf("\n-----------------------------------\n")
	kfmt.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	kfmt.Printf("*** kernel panic: system halted ***\n")
	kfmt.Printf("-----------------------------------\n")

	cpuHaltFn()
}
