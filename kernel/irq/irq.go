// Package irq routes interrupt and exception vectors to their kernel
// handlers. The platform entry stubs call Dispatch with the vector number
// (and the error code the CPU pushed, where one exists); everything past
// that point is architecture-neutral. Driver-specific vectors register
// through the same table but are owned by their drivers.
package irq

import (
	"eclipseos/kernel/kfmt"
	"eclipseos/kernel/mm/vmm"
	"eclipseos/kernel/sched"
	"eclipseos/kernel/sync"
)

const (
	// numVectors is the size of the interrupt vector table.
	numVectors = 256

	// VectorPageFault is the page fault exception vector.
	VectorPageFault = 14

	// VectorTimer is the vector the periodic timer is programmed to
	// raise.
	VectorTimer = 32
)

// HandlerFn services an interrupt vector.
type HandlerFn func()

// ExceptionHandlerFn services an exception vector that carries an error
// code.
type ExceptionHandlerFn func(errorCode uint64)

var (
	regLock sync.Spinlock

	handlers          [numVectors]HandlerFn
	exceptionHandlers [numVectors]ExceptionHandlerFn
)

// Init resets the vector table and installs the core routes: the timer tick
// drives the scheduler and page faults enter the vmm fault path.
func Init() {
	regLock.Acquire()
	for vector := range handlers {
		handlers[vector] = nil
		exceptionHandlers[vector] = nil
	}
	regLock.Release()

	Register(VectorTimer, sched.Tick)
	RegisterException(VectorPageFault, vmm.HandlePageFault)
}

// Register installs fn as the handler for vector, replacing any previous
// registration.
func Register(vector uint8, fn HandlerFn) {
	regLock.Acquire()
	handlers[vector] = fn
	regLock.Release()
}

// RegisterException installs fn as the handler for an error-code-carrying
// exception vector.
func RegisterException(vector uint8, fn ExceptionHandlerFn) {
	regLock.Acquire()
	exceptionHandlers[vector] = fn
	regLock.Release()
}

// Dispatch invokes the handler registered for vector. It runs in interrupt
// context with interrupts disabled. Spurious vectors without a handler are
// logged and otherwise ignored.
func Dispatch(vector uint8, errorCode uint64) {
	if fn := exceptionHandlers[vector]; fn != nil {
		fn(errorCode)
		return
	}
	if fn := handlers[vector]; fn != nil {
		fn()
		return
	}
	kfmt.Printf("irq: no handler for vector %d\n", uint64(vector))
}
