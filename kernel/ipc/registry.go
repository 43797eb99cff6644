package ipc

import (
	"eclipseos/kernel"
	"eclipseos/kernel/proc"
)

// ServerID identifies a registered server. IDs are assigned from serverIDBase
// upwards so the server and process identifier spaces stay disjoint and a
// message destination is unambiguous.
type ServerID uint32

const (
	// maxServers bounds the registry.
	maxServers = 32

	// serverIDBase is the first ServerID handed out.
	serverIDBase ServerID = 0x1000
)

var (
	errRegistryFull      = &kernel.Error{Module: "ipc", Message: "server registry is full"}
	errDuplicateServer   = &kernel.Error{Module: "ipc", Message: "server name already registered"}
	errInvalidServerName = &kernel.Error{Module: "ipc", Message: "server name must not be empty"}
)

type serverEntry struct {
	id       ServerID
	name     string
	msgType  MessageType
	priority uint8
	owner    proc.PID
}

// RegisterServer inserts a named server owned by the calling process into
// the registry and returns its ServerID. A name can be registered only once;
// re-registration is rejected rather than shadowed.
func RegisterServer(name string, msgType MessageType, priority uint8) (ServerID, *kernel.Error) {
	if name == "" {
		return 0, errInvalidServerName
	}
	owner := proc.CurrentPID()

	ipcLock.Acquire()
	defer ipcLock.Release()

	if len(servers) == maxServers {
		return 0, errRegistryFull
	}
	for _, entry := range servers {
		if entry.name == name {
			return 0, errDuplicateServer
		}
	}

	id := nextServerID
	nextServerID++
	servers = append(servers, serverEntry{
		id:       id,
		name:     name,
		msgType:  msgType,
		priority: priority,
		owner:    owner,
	})
	return id, nil
}

// LookupServer resolves a server name to its ServerID.
func LookupServer(name string) (ServerID, bool) {
	ipcLock.Acquire()
	defer ipcLock.Release()

	for _, entry := range servers {
		if entry.name == name {
			return entry.id, true
		}
	}
	return 0, false
}

// serverByIDLocked returns the registry entry for id. ipcLock must be held.
func serverByIDLocked(id ServerID) *serverEntry {
	for entryIndex := range servers {
		if servers[entryIndex].id == id {
			return &servers[entryIndex]
		}
	}
	return nil
}

// dropServersOfLocked removes every registration owned by pid. ipcLock must
// be held.
func dropServersOfLocked(pid proc.PID) {
	kept := servers[:0]
	for _, entry := range servers {
		if entry.owner != pid {
			kept = append(kept, entry)
		}
	}
	servers = kept
}
