// Package ipc implements message passing between processes: a named server
// registry and bounded per-process mailboxes with blocking receive. Message
// delivery is FIFO per sender; a send to a blocked receiver wakes it through
// the process manager.
package ipc

import (
	"eclipseos/kernel"
	"eclipseos/kernel/proc"
	"eclipseos/kernel/sched"
	"eclipseos/kernel/sync"
)

// MailboxCapacity bounds the number of undelivered messages a process can
// hold.
const MailboxCapacity = 64

// mailbox is a fixed-capacity FIFO ring of pending messages.
type mailbox struct {
	messages [MailboxCapacity]Message
	head     int
	count    int
}

func (mb *mailbox) push(msg Message) bool {
	if mb.count == MailboxCapacity {
		return false
	}
	mb.messages[(mb.head+mb.count)%MailboxCapacity] = msg
	mb.count++
	return true
}

func (mb *mailbox) pop() (Message, bool) {
	if mb.count == 0 {
		return Message{}, false
	}
	msg := mb.messages[mb.head]
	mb.head = (mb.head + 1) % MailboxCapacity
	mb.count--
	return msg, true
}

var (
	// ipcLock guards the mailboxes, the server registry and the
	// statistics counters. Lock order is ipc before proc: proc lookups
	// may run under ipcLock, but Unblock and the scheduler are only
	// entered after it is released.
	ipcLock sync.IrqSpinlock

	mailboxes     map[proc.PID]*mailbox
	servers       []serverEntry
	nextServerID  ServerID
	nextMessageID uint64
	delivered     uint64
)

// Init resets the IPC state and hooks process termination so a dead PID
// leaves no mailbox or registration behind. It must run after proc.Init.
func Init() {
	ipcLock.Acquire()
	mailboxes = make(map[proc.PID]*mailbox)
	servers = nil
	nextServerID = serverIDBase
	nextMessageID = 1
	delivered = 0
	ipcLock.Release()

	proc.AddCleanupHook(cleanupProcess)
}

func cleanupProcess(pid proc.PID) {
	ipcLock.Acquire()
	delete(mailboxes, pid)
	dropServersOfLocked(pid)
	ipcLock.Release()
}

// Send delivers a payload of the given type to dest, which names either a
// ServerID or a PID (the identifier spaces are disjoint). The message is
// rejected when the payload exceeds MaxMessageData, when dest does not
// resolve to a live process and when the destination mailbox is full. A
// destination blocked in Receive is woken.
func Send(dest uint32, msgType MessageType, payload []byte) *kernel.Error {
	if len(payload) > MaxMessageData {
		return kernel.ErrPayloadTooLarge
	}
	sender := proc.CurrentPID()

	ipcLock.Acquire()

	target := proc.PID(dest)
	priority := uint8(proc.DefaultPriority)
	if dest >= uint32(serverIDBase) {
		server := serverByIDLocked(ServerID(dest))
		if server == nil {
			ipcLock.Release()
			return kernel.ErrNoSuchDestination
		}
		target = server.owner
		priority = server.priority
	}
	if proc.Lookup(target) == nil {
		ipcLock.Release()
		return kernel.ErrNoSuchDestination
	}

	msg := Message{
		ID:       nextMessageID,
		From:     uint32(sender),
		To:       dest,
		Type:     msgType,
		DataSize: uint32(len(payload)),
		Priority: priority,
	}
	copy(msg.Data[:], payload)

	if !mailboxFor(target).push(msg) {
		ipcLock.Release()
		return kernel.ErrMailboxFull
	}
	nextMessageID++
	delivered++
	ipcLock.Release()

	// Wake the receiver if it is blocked on an empty mailbox.
	proc.Unblock(target)
	return nil
}

// Receive dequeues the oldest pending message of the calling process. With
// an empty mailbox the caller blocks and another process is dispatched;
// timeoutTicks is a scheduling hint bounding the number of dispatch rounds
// to wait (0 blocks until a message arrives). Receive returns nil without an
// error when the wait ends with the mailbox still empty.
func Receive(timeoutTicks uint32) (*Message, *kernel.Error) {
	self := proc.CurrentPID()

	for attempt := uint32(0); ; attempt++ {
		ipcLock.Acquire()
		msg, ok := mailboxFor(self).pop()
		ipcLock.Release()
		if ok {
			return &msg, nil
		}

		if timeoutTicks != 0 && attempt >= timeoutTicks {
			return nil, nil
		}

		// Suspend until a sender wakes us. Outside process context
		// (or once the wait is spent) there is nothing to suspend.
		if proc.Block(self) != nil {
			return nil, nil
		}
		sched.Reschedule()

		// Still blocked means no message arrived before the dispatch
		// returned; give up instead of spinning on the empty mailbox.
		if state, err := proc.StateOf(self); err != nil || state == proc.StateBlocked {
			return nil, nil
		}
	}
}

// Pending returns the number of undelivered messages queued for pid.
func Pending(pid proc.PID) int {
	ipcLock.Acquire()
	defer ipcLock.Release()

	if mb := mailboxes[pid]; mb != nil {
		return mb.count
	}
	return 0
}

// Stats is a point-in-time view of the IPC subsystem counters.
type Stats struct {
	ActiveServers int
	Delivered     uint64
	Pending       int
}

// GetStats reports the number of registered servers, the total number of
// delivered messages and the messages still queued across all mailboxes.
func GetStats() Stats {
	ipcLock.Acquire()
	defer ipcLock.Release()

	stats := Stats{
		ActiveServers: len(servers),
		Delivered:     delivered,
	}
	for _, mb := range mailboxes {
		stats.Pending += mb.count
	}
	return stats
}

// mailboxFor returns the mailbox of pid, creating it on first use. ipcLock
// must be held.
func mailboxFor(pid proc.PID) *mailbox {
	mb := mailboxes[pid]
	if mb == nil {
		mb = new(mailbox)
		mailboxes[pid] = mb
	}
	return mb
}
