package kernel

// Error describes a kernel error. All kernel errors must be defined as global
// variables that are pointers to the Error structure. This requirement stems
// from the fact that errors may need to be returned before the Go allocator
// has been made available to the kernel so we cannot use errors.New.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// The core error taxonomy. Allocation and IPC operations return one of these
// values to their caller; the caller decides whether to retry, report the
// failure to its own client or terminate the faulting process.
var (
	// ErrOutOfMemory is returned when a physical frame allocation request
	// cannot be satisfied because all usable frames are in use.
	ErrOutOfMemory = &Error{Module: "kernel", Message: "out of memory"}

	// ErrInvalidArgument is returned when a syscall or kernel API call
	// receives a malformed argument.
	ErrInvalidArgument = &Error{Module: "kernel", Message: "invalid argument"}

	// ErrNoSuchDestination is returned by IPC sends whose destination does
	// not resolve to a live process or registered server.
	ErrNoSuchDestination = &Error{Module: "kernel", Message: "no such destination"}

	// ErrPayloadTooLarge is returned by IPC sends whose payload exceeds
	// the fixed message capacity.
	ErrPayloadTooLarge = &Error{Module: "kernel", Message: "payload too large"}

	// ErrMailboxFull is returned by IPC sends when the destination mailbox
	// has no room for another message.
	ErrMailboxFull = &Error{Module: "kernel", Message: "mailbox full"}

	// ErrAddressSpaceFault is reported for page faults that no valid
	// mapping can resolve.
	ErrAddressSpaceFault = &Error{Module: "kernel", Message: "address space fault"}

	// ErrUnknown is the catch-all for unrecoverable internal invariant
	// violations.
	ErrUnknown = &Error{Module: "kernel", Message: "unrecoverable internal error"}
)
