package ipc

import (
	"encoding/binary"

	"eclipseos/kernel"
)

// MessageType tags the kind of payload a message carries. The set is closed:
// each subsystem boundary owns one bit so servers can register for exactly
// the traffic they handle. The values cross the syscall ABI and must not
// change.
type MessageType uint32

const (
	MessageSystem     MessageType = 0x1
	MessageMemory     MessageType = 0x2
	MessageFileSystem MessageType = 0x4
	MessageNetwork    MessageType = 0x8
	MessageGraphics   MessageType = 0x10
	MessageAudio      MessageType = 0x20
	MessageInput      MessageType = 0x40
	MessageAI         MessageType = 0x80
	MessageSecurity   MessageType = 0x100
	MessageUser       MessageType = 0x200
	MessageSignal     MessageType = 0x400
)

const (
	// MaxMessageData is the fixed payload capacity. Larger sends are
	// rejected, never truncated.
	MaxMessageData = 256

	// EncodedSize is the byte length of a message on the wire.
	EncodedSize = 284
)

// Message is the fixed-layout IPC record. Its encoded form crosses the
// syscall boundary to and from user-space servers and is byte-for-byte
// stable: id u64, from u32, to u32, type u32, data [256]u8, dataSize u32,
// priority u8, flags u8, 2 reserved bytes, all little-endian.
type Message struct {
	ID       uint64
	From     uint32
	To       uint32
	Type     MessageType
	Data     [MaxMessageData]byte
	DataSize uint32
	Priority uint8
	Flags    uint8
}

// Payload returns the used portion of the data array.
func (m *Message) Payload() []byte {
	if m.DataSize > MaxMessageData {
		return m.Data[:]
	}
	return m.Data[:m.DataSize]
}

// Encode serializes the message into buf using the stable wire layout.
func (m *Message) Encode(buf []byte) *kernel.Error {
	if len(buf) < EncodedSize {
		return kernel.ErrInvalidArgument
	}

	binary.LittleEndian.PutUint64(buf[0:], m.ID)
	binary.LittleEndian.PutUint32(buf[8:], m.From)
	binary.LittleEndian.PutUint32(buf[12:], m.To)
	binary.LittleEndian.PutUint32(buf[16:], uint32(m.Type))
	copy(buf[20:20+MaxMessageData], m.Data[:])
	binary.LittleEndian.PutUint32(buf[276:], m.DataSize)
	buf[280] = m.Priority
	buf[281] = m.Flags
	buf[282] = 0
	buf[283] = 0
	return nil
}

// DecodeMessage parses a wire-encoded message from buf.
func DecodeMessage(buf []byte) (Message, *kernel.Error) {
	var m Message
	if len(buf) < EncodedSize {
		return m, kernel.ErrInvalidArgument
	}

	m.ID = binary.LittleEndian.Uint64(buf[0:])
	m.From = binary.LittleEndian.Uint32(buf[8:])
	m.To = binary.LittleEndian.Uint32(buf[12:])
	m.Type = MessageType(binary.LittleEndian.Uint32(buf[16:]))
	copy(m.Data[:], buf[20:20+MaxMessageData])
	m.DataSize = binary.LittleEndian.Uint32(buf[276:])
	if m.DataSize > MaxMessageData {
		return Message{}, kernel.ErrInvalidArgument
	}
	m.Priority = buf[280]
	m.Flags = buf[281]
	return m, nil
}
