package ipc

import (
	"bytes"
	"testing"

	"eclipseos/kernel"
	"eclipseos/kernel/mm"
	"eclipseos/kernel/mm/vmm"
	"eclipseos/kernel/proc"
	"eclipseos/kernel/sched"
)

// ipcEnv drives the IPC subsystem with two kernel threads and a controllable
// notion of the calling process.
type ipcEnv struct {
	current proc.PID
	sender  proc.PID
	server  proc.PID
}

func setupIPCTest(t *testing.T) *ipcEnv {
	t.Helper()

	nextFrame := mm.Frame(1)
	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) {
		frame := nextFrame
		nextFrame++
		return frame, nil
	})
	mm.SetFrameFreer(func(_ mm.Frame) *kernel.Error { return nil })
	t.Cleanup(func() {
		mm.SetFrameAllocator(nil)
		mm.SetFrameFreer(nil)
	})

	if err := vmm.Init(); err != nil {
		t.Fatal(err)
	}
	proc.Init()
	sched.Init()
	Init()

	env := new(ipcEnv)
	proc.SetCurrentProvider(func() proc.PID { return env.current })

	var err *kernel.Error
	if env.sender, err = proc.SpawnKernelThread(0xffff800000200000, 0, "sender"); err != nil {
		t.Fatal(err)
	}
	if env.server, err = proc.SpawnKernelThread(0xffff800000201000, 0, "server"); err != nil {
		t.Fatal(err)
	}

	// Keep the scheduler's queues out of the picture so receive-side
	// blocking is driven explicitly by each test.
	sched.Remove(env.sender)
	sched.Remove(env.server)

	env.current = env.sender
	return env
}

func TestSendReceiveRoundTrip(t *testing.T) {
	env := setupIPCTest(t)

	payload := []byte("0123456789")
	if err := Send(uint32(env.server), MessageUser, payload); err != nil {
		t.Fatal(err)
	}

	env.current = env.server
	msg, err := Receive(1)
	if err != nil {
		t.Fatal(err)
	}
	if msg == nil {
		t.Fatal("expected a pending message")
	}
	if msg.DataSize != uint32(len(payload)) {
		t.Fatalf("expected data size %d; got %d", len(payload), msg.DataSize)
	}
	if !bytes.Equal(msg.Payload(), payload) {
		t.Fatalf("expected payload %q; got %q", payload, msg.Payload())
	}
	if msg.From != uint32(env.sender) {
		t.Fatalf("expected sender %d; got %d", env.sender, msg.From)
	}
	if msg.Type != MessageUser {
		t.Fatalf("expected type %x; got %x", MessageUser, msg.Type)
	}
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	env := setupIPCTest(t)

	if err := Send(uint32(env.server), MessageUser, []byte("first")); err != nil {
		t.Fatal(err)
	}

	oversized := make([]byte, MaxMessageData+1)
	if err := Send(uint32(env.server), MessageUser, oversized); err != kernel.ErrPayloadTooLarge {
		t.Fatalf("expected payload rejection; got %v", err)
	}

	// The destination mailbox is unchanged by the failed send.
	if got := Pending(env.server); got != 1 {
		t.Fatalf("expected 1 pending message; got %d", got)
	}
	env.current = env.server
	msg, _ := Receive(1)
	if msg == nil || string(msg.Payload()) != "first" {
		t.Fatalf("expected the original message to survive; got %+v", msg)
	}
}

func TestPerSenderFIFO(t *testing.T) {
	env := setupIPCTest(t)

	payloads := []string{"one", "two", "three"}
	for _, p := range payloads {
		if err := Send(uint32(env.server), MessageUser, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}

	env.current = env.server
	var lastID uint64
	for specIndex, exp := range payloads {
		msg, err := Receive(1)
		if err != nil || msg == nil {
			t.Fatalf("[spec %d] expected a message; got %v (%v)", specIndex, msg, err)
		}
		if string(msg.Payload()) != exp {
			t.Fatalf("[spec %d] expected payload %q; got %q", specIndex, exp, msg.Payload())
		}
		if msg.ID <= lastID {
			t.Fatalf("[spec %d] expected increasing message IDs; got %d after %d", specIndex, msg.ID, lastID)
		}
		lastID = msg.ID
	}
}

func TestSendNoSuchDestination(t *testing.T) {
	env := setupIPCTest(t)

	if err := Send(99, MessageUser, nil); err != kernel.ErrNoSuchDestination {
		t.Fatalf("expected no such destination for a dead PID; got %v", err)
	}
	if err := Send(uint32(serverIDBase)+5, MessageUser, nil); err != kernel.ErrNoSuchDestination {
		t.Fatalf("expected no such destination for an unregistered server; got %v", err)
	}

	// A server whose owner terminated is dropped from the registry.
	env.current = env.server
	id, err := RegisterServer("Ephemeral", MessageUser, 5)
	if err != nil {
		t.Fatal(err)
	}
	if terr := proc.Terminate(env.server); terr != nil {
		t.Fatal(terr)
	}
	env.current = env.sender
	if err := Send(uint32(id), MessageUser, nil); err != kernel.ErrNoSuchDestination {
		t.Fatalf("expected no such destination after owner termination; got %v", err)
	}
}

func TestMailboxFull(t *testing.T) {
	env := setupIPCTest(t)

	for i := 0; i < MailboxCapacity; i++ {
		if err := Send(uint32(env.server), MessageUser, nil); err != nil {
			t.Fatalf("[message %d] unexpected send error: %v", i, err)
		}
	}
	if err := Send(uint32(env.server), MessageUser, nil); err != kernel.ErrMailboxFull {
		t.Fatalf("expected a full mailbox to reject the send; got %v", err)
	}
	if got := Pending(env.server); got != MailboxCapacity {
		t.Fatalf("expected %d pending messages; got %d", MailboxCapacity, got)
	}
}

func TestRegisterServer(t *testing.T) {
	env := setupIPCTest(t)
	env.current = env.server

	id, err := RegisterServer("FileSystem", MessageFileSystem, 10)
	if err != nil {
		t.Fatal(err)
	}
	if id < serverIDBase {
		t.Fatalf("expected server IDs at or above %x; got %x", serverIDBase, id)
	}

	if _, err := RegisterServer("FileSystem", MessageFileSystem, 10); err != errDuplicateServer {
		t.Fatalf("expected duplicate registration to be rejected; got %v", err)
	}
	if _, err := RegisterServer("", MessageUser, 5); err != errInvalidServerName {
		t.Fatalf("expected an empty name to be rejected; got %v", err)
	}

	if got, ok := LookupServer("FileSystem"); !ok || got != id {
		t.Fatalf("expected lookup to resolve the registration; got %x (ok=%t)", got, ok)
	}
}

func TestRegistryCapacity(t *testing.T) {
	env := setupIPCTest(t)
	env.current = env.server

	for i := 0; i < maxServers-1; i++ {
		name := "server-" + string(rune('A'+i))
		if _, err := RegisterServer(name, MessageUser, 5); err != nil {
			t.Fatalf("[server %d] unexpected registration error: %v", i, err)
		}
	}
	if _, err := RegisterServer("last", MessageUser, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := RegisterServer("overflow", MessageUser, 5); err != errRegistryFull {
		t.Fatalf("expected a full registry to reject registration; got %v", err)
	}
}

func TestSendToServerRoutesToOwner(t *testing.T) {
	env := setupIPCTest(t)

	env.current = env.server
	id, err := RegisterServer("FileSystem", MessageFileSystem, 10)
	if err != nil {
		t.Fatal(err)
	}

	env.current = env.sender
	if err := Send(uint32(id), MessageFileSystem, []byte("open")); err != nil {
		t.Fatal(err)
	}

	env.current = env.server
	msg, rerr := Receive(1)
	if rerr != nil || msg == nil {
		t.Fatalf("expected the owner to receive the message; got %v (%v)", msg, rerr)
	}
	if msg.To != uint32(id) {
		t.Fatalf("expected the message addressed to server %x; got %x", id, msg.To)
	}
	if msg.Priority != 10 {
		t.Fatalf("expected the server priority on the message; got %d", msg.Priority)
	}
}

func TestBlockedReceiverWokenBySend(t *testing.T) {
	env := setupIPCTest(t)

	// The server blocks on its empty mailbox.
	if err := proc.MarkRunning(env.server); err != nil {
		t.Fatal(err)
	}
	env.current = env.server
	msg, err := Receive(0)
	if err != nil {
		t.Fatal(err)
	}
	if msg != nil {
		t.Fatalf("expected no message before any send; got %+v", msg)
	}
	if state, _ := proc.StateOf(env.server); state != proc.StateBlocked {
		t.Fatalf("expected the receiver to block; got %v", state)
	}

	// A send wakes it up.
	env.current = env.sender
	if err := Send(uint32(env.server), MessageUser, []byte("wake")); err != nil {
		t.Fatal(err)
	}
	if state, _ := proc.StateOf(env.server); state != proc.StateReady {
		t.Fatalf("expected the receiver to be woken; got %v", state)
	}

	env.current = env.server
	msg, err = Receive(1)
	if err != nil || msg == nil {
		t.Fatalf("expected the wake-up message; got %v (%v)", msg, err)
	}
	if string(msg.Payload()) != "wake" {
		t.Fatalf("expected payload wake; got %q", msg.Payload())
	}
}

func TestStatsAndTerminationCleanup(t *testing.T) {
	env := setupIPCTest(t)

	env.current = env.server
	if _, err := RegisterServer("FileSystem", MessageFileSystem, 10); err != nil {
		t.Fatal(err)
	}

	env.current = env.sender
	for i := 0; i < 3; i++ {
		if err := Send(uint32(env.server), MessageUser, nil); err != nil {
			t.Fatal(err)
		}
	}

	stats := GetStats()
	if stats.ActiveServers != 1 || stats.Delivered != 3 || stats.Pending != 3 {
		t.Fatalf("expected 1 server, 3 delivered, 3 pending; got %+v", stats)
	}

	if err := proc.Terminate(env.server); err != nil {
		t.Fatal(err)
	}

	stats = GetStats()
	if stats.ActiveServers != 0 || stats.Pending != 0 {
		t.Fatalf("expected the terminated process to leave no IPC state; got %+v", stats)
	}
	if got := Pending(env.server); got != 0 {
		t.Fatalf("expected an empty mailbox after termination; got %d", got)
	}
}
