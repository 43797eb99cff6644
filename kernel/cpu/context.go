package cpu

// Context holds the register state saved for a suspended execution stream.
// The layout mirrors the registers the context switch trampoline must
// preserve: the callee and caller saved general purpose set plus instruction
// pointer, stack pointer and flags.
type Context struct {
	R15    uint64
	R14    uint64
	R13    uint64
	R12    uint64
	R11    uint64
	R10    uint64
	R9     uint64
	R8     uint64
	RBP    uint64
	RDI    uint64
	RSI    uint64
	RDX    uint64
	RCX    uint64
	RBX    uint64
	RAX    uint64
	RIP    uint64
	RSP    uint64
	RFLAGS uint64
}

var switchContextFn = func(_, _ *Context) {}

// SwitchContext saves the register state of the outgoing execution stream
// into old and resumes execution from next. The platform trampoline installed
// through Install is the single point where control transfers between
// processes; it must never run with interrupts enabled. The software-model
// default returns immediately which lets scheduler and process tests drive
// dispatch decisions without real context switches.
func SwitchContext(old, next *Context) { switchContextFn(old, next) }
