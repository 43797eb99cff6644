// Package syscall implements the numeric syscall boundary. The platform trap
// stub hands the syscall number and raw register arguments to Dispatch;
// results follow the negated-errno convention where return values above the
// high-water mark encode an error and everything below is a success payload.
package syscall

import (
	"encoding/binary"
	"unsafe"

	"eclipseos/kernel"
	"eclipseos/kernel/ipc"
	"eclipseos/kernel/proc"
	"eclipseos/kernel/sched"
)

// Syscall numbers. The set is part of the ABI consumed by the libc layer and
// the user-space servers.
const (
	SysYield          = 1
	SysCreateProcess  = 2
	SysTerminate      = 3
	SysSend           = 4
	SysReceive        = 5
	SysRegisterServer = 6
	SysGetStats       = 7
	SysListProcesses  = 8
)

// Errno values carried by the negated return convention.
const (
	ErrnoUnknown           = 1
	ErrnoOutOfMemory       = 2
	ErrnoInvalidArgument   = 3
	ErrnoNoSuchDestination = 4
	ErrnoPayloadTooLarge   = 5
	ErrnoMailboxFull       = 6
	ErrnoAddressSpaceFault = 7

	// maxErrno is the high-water mark: returns at or above
	// ^uintptr(0)-maxErrno+1 encode an errno.
	maxErrno = 4095
)

// User memory accessors. The defaults dereference the raw virtual address,
// which is correct on hardware where user mappings stay visible in kernel
// mode; tests substitute accessors backed by host memory.
var (
	copyFromUserFn = func(src uintptr, dst []byte) *kernel.Error {
		for i := range dst {
			dst[i] = *(*byte)(unsafe.Pointer(src + uintptr(i)))
		}
		return nil
	}
	copyToUserFn = func(dst uintptr, src []byte) *kernel.Error {
		for i := range src {
			*(*byte)(unsafe.Pointer(dst + uintptr(i))) = src[i]
		}
		return nil
	}
)

// SetUserMemAccessors replaces the user memory copy routines. A nil accessor
// keeps the current one.
func SetUserMemAccessors(copyFrom func(src uintptr, dst []byte) *kernel.Error, copyTo func(dst uintptr, src []byte) *kernel.Error) {
	if copyFrom != nil {
		copyFromUserFn = copyFrom
	}
	if copyTo != nil {
		copyToUserFn = copyTo
	}
}

// IsError reports whether a syscall return value encodes an errno.
func IsError(ret uintptr) bool {
	return ret >= ^uintptr(0)-maxErrno+1
}

// Errno extracts the errno from an error-encoding return value.
func Errno(ret uintptr) uintptr {
	return ^uintptr(0) - ret + 1
}

func encodeErrno(errno uintptr) uintptr {
	return ^uintptr(0) - errno + 1
}

func errnoOf(err *kernel.Error) uintptr {
	switch err {
	case kernel.ErrOutOfMemory:
		return ErrnoOutOfMemory
	case kernel.ErrInvalidArgument:
		return ErrnoInvalidArgument
	case kernel.ErrNoSuchDestination:
		return ErrnoNoSuchDestination
	case kernel.ErrPayloadTooLarge:
		return ErrnoPayloadTooLarge
	case kernel.ErrMailboxFull:
		return ErrnoMailboxFull
	case kernel.ErrAddressSpaceFault:
		return ErrnoAddressSpaceFault
	default:
		return ErrnoUnknown
	}
}

func encodeError(err *kernel.Error) uintptr {
	return encodeErrno(errnoOf(err))
}

// Dispatch executes the syscall identified by num with up to four raw
// arguments and returns the ABI-encoded result.
func Dispatch(num uintptr, arg0, arg1, arg2, arg3 uintptr) uintptr {
	switch num {
	case SysYield:
		sched.Yield()
		return 0

	case SysCreateProcess:
		pid, err := proc.CreateProcess(arg0, arg1, arg2)
		if err != nil {
			return encodeError(err)
		}
		return uintptr(pid)

	case SysTerminate:
		if err := proc.Terminate(proc.PID(arg0)); err != nil {
			return encodeError(err)
		}
		return 0

	case SysSend:
		return sysSend(arg0, arg1, arg2, arg3)

	case SysReceive:
		return sysReceive(arg0, arg1)

	case SysRegisterServer:
		return sysRegisterServer(arg0, arg1, arg2, arg3)

	case SysGetStats:
		return sysGetStats(arg0)

	case SysListProcesses:
		return sysListProcesses(arg0, arg1)

	default:
		return encodeErrno(ErrnoInvalidArgument)
	}
}

func sysSend(dest, msgType, payloadPtr, payloadLen uintptr) uintptr {
	if payloadLen > ipc.MaxMessageData {
		return encodeErrno(ErrnoPayloadTooLarge)
	}

	var payload [ipc.MaxMessageData]byte
	if payloadLen > 0 {
		if err := copyFromUserFn(payloadPtr, payload[:payloadLen]); err != nil {
			return encodeError(err)
		}
	}

	if err := ipc.Send(uint32(dest), ipc.MessageType(msgType), payload[:payloadLen]); err != nil {
		return encodeError(err)
	}
	return 0
}

// sysReceive writes the wire-encoded message into the caller's buffer and
// returns ipc.EncodedSize, or 0 when the wait ended with no message.
func sysReceive(bufPtr, timeoutTicks uintptr) uintptr {
	msg, err := ipc.Receive(uint32(timeoutTicks))
	if err != nil {
		return encodeError(err)
	}
	if msg == nil {
		return 0
	}

	var buf [ipc.EncodedSize]byte
	if err := msg.Encode(buf[:]); err != nil {
		return encodeError(err)
	}
	if err := copyToUserFn(bufPtr, buf[:]); err != nil {
		return encodeError(err)
	}
	return ipc.EncodedSize
}

func sysRegisterServer(namePtr, nameLen, msgType, priority uintptr) uintptr {
	const maxServerNameLen = 64
	if nameLen == 0 || nameLen > maxServerNameLen {
		return encodeErrno(ErrnoInvalidArgument)
	}

	var nameBuf [maxServerNameLen]byte
	if err := copyFromUserFn(namePtr, nameBuf[:nameLen]); err != nil {
		return encodeError(err)
	}

	id, err := ipc.RegisterServer(string(nameBuf[:nameLen]), ipc.MessageType(msgType), uint8(priority))
	if err != nil {
		return encodeError(err)
	}
	return uintptr(id)
}

// sysGetStats writes 16 bytes to the caller's buffer: delivered message
// count (u64), active servers (u32), pending messages (u32), little-endian.
func sysGetStats(bufPtr uintptr) uintptr {
	stats := ipc.GetStats()

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:], stats.Delivered)
	binary.LittleEndian.PutUint32(buf[8:], uint32(stats.ActiveServers))
	binary.LittleEndian.PutUint32(buf[12:], uint32(stats.Pending))

	if err := copyToUserFn(bufPtr, buf[:]); err != nil {
		return encodeError(err)
	}
	return 0
}

// processInfoEncodedSize is the per-entry size written by sysListProcesses:
// pid (u32), parent (u32), state (u8), priority (u8), 2 bytes reserved.
const processInfoEncodedSize = 12

// sysListProcesses writes up to maxEntries process records to the caller's
// buffer and returns the number written.
func sysListProcesses(bufPtr, maxEntries uintptr) uintptr {
	infos := proc.Snapshot()

	written := uintptr(0)
	var entry [processInfoEncodedSize]byte
	for _, info := range infos {
		if written == maxEntries {
			break
		}
		binary.LittleEndian.PutUint32(entry[0:], uint32(info.PID))
		binary.LittleEndian.PutUint32(entry[4:], uint32(info.Parent))
		entry[8] = uint8(info.State)
		entry[9] = info.Priority
		entry[10] = 0
		entry[11] = 0

		if err := copyToUserFn(bufPtr+written*processInfoEncodedSize, entry[:]); err != nil {
			return encodeError(err)
		}
		written++
	}
	return written
}
