package ipc

import (
	"bytes"
	"testing"

	"eclipseos/kernel"
)

func TestMessageWireFormat(t *testing.T) {
	msg := Message{
		ID:       0x1122334455667788,
		From:     1,
		To:       2,
		Type:     MessageFileSystem,
		DataSize: 10,
		Priority: 7,
		Flags:    1,
	}
	copy(msg.Data[:], "0123456789")

	var buf [EncodedSize]byte
	if err := msg.Encode(buf[:]); err != nil {
		t.Fatal(err)
	}

	// The layout crosses the syscall ABI; pin the exact offsets.
	golden := []struct {
		offset int
		bytes  []byte
	}{
		{0, []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}},
		{8, []byte{0x01, 0x00, 0x00, 0x00}},
		{12, []byte{0x02, 0x00, 0x00, 0x00}},
		{16, []byte{0x04, 0x00, 0x00, 0x00}},
		{20, []byte("0123456789")},
		{276, []byte{0x0a, 0x00, 0x00, 0x00}},
		{280, []byte{0x07}},
		{281, []byte{0x01}},
		{282, []byte{0x00, 0x00}},
	}
	for specIndex, spec := range golden {
		if got := buf[spec.offset : spec.offset+len(spec.bytes)]; !bytes.Equal(got, spec.bytes) {
			t.Errorf("[spec %d] expected bytes %x at offset %d; got %x", specIndex, spec.bytes, spec.offset, got)
		}
	}
	for offset := 30; offset < 276; offset++ {
		if buf[offset] != 0 {
			t.Fatalf("expected unused payload bytes to be zero; offset %d is %x", offset, buf[offset])
		}
	}

	decoded, err := DecodeMessage(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	if decoded != msg {
		t.Fatalf("expected decode to round-trip; got %+v", decoded)
	}
}

func TestMessageCodecRejectsBadInput(t *testing.T) {
	var msg Message
	short := make([]byte, EncodedSize-1)

	if err := msg.Encode(short); err != kernel.ErrInvalidArgument {
		t.Fatalf("expected a short encode buffer to be rejected; got %v", err)
	}
	if _, err := DecodeMessage(short); err != kernel.ErrInvalidArgument {
		t.Fatalf("expected a short decode buffer to be rejected; got %v", err)
	}

	var buf [EncodedSize]byte
	msg.DataSize = MaxMessageData + 1
	if err := msg.Encode(buf[:]); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeMessage(buf[:]); err != kernel.ErrInvalidArgument {
		t.Fatalf("expected an oversized data size to be rejected; got %v", err)
	}
}

func TestMessagePayloadView(t *testing.T) {
	var msg Message
	copy(msg.Data[:], "abcdef")
	msg.DataSize = 3

	if got := string(msg.Payload()); got != "abc" {
		t.Fatalf("expected payload view abc; got %q", got)
	}
}
