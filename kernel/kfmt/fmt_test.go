package kfmt

import (
	"bytes"
	"testing"
)

func TestFprintf(t *testing.T) {
	specs := []struct {
		format string
		args   []interface{}
		exp    string
	}{
		{"no verbs", nil, "no verbs"},
		{"%s and %s", []interface{}{"foo", []byte("bar")}, "foo and bar"},
		{"%5s|", []interface{}{"abc"}, "  abc|"},
		{"%d", []interface{}{42}, "42"},
		{"%5d|", []interface{}{123}, "  123|"},
		{"%o", []interface{}{uint8(8)}, "10"},
		{"%x", []interface{}{uint32(0xbadf00d)}, "badf00d"},
		{"%8x", []interface{}{uint64(0xf00)}, "00000f00"},
		{"%t %t", []interface{}{true, false}, "true false"},
		{"%c", []interface{}{uint8('@')}, "@"},
		{"100%% done", nil, "100% done"},
		{"%d", nil, "%!(MISSING)"},
		{"plain", []interface{}{1}, "plain%!(EXTRA)"},
		{"%s", []interface{}{42}, "%!(WRONGTYPE)"},
		{"%q", []interface{}{"x"}, "%!(NOVERB)"},
		{"truncated %", nil, "truncated %!(NOVERB)"},
	}

	var buf bytes.Buffer
	for specIndex, spec := range specs {
		buf.Reset()
		Fprintf(&buf, spec.format, spec.args...)
		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestIntTypeCoverage(t *testing.T) {
	specs := []struct {
		arg interface{}
		exp string
	}{
		{uint8(1), "1"},
		{uint16(2), "2"},
		{uint32(3), "3"},
		{uint64(4), "4"},
		{uint(5), "5"},
		{uintptr(6), "6"},
		{int8(7), "7"},
		{int16(8), "8"},
		{int32(9), "9"},
		{int64(10), "10"},
		{int(11), "11"},
	}

	var buf bytes.Buffer
	for specIndex, spec := range specs {
		buf.Reset()
		Fprintf(&buf, "%d", spec.arg)
		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestEarlyPrintBufferDrain(t *testing.T) {
	defer func() {
		outputSink = nil
		earlyPrintBuffer.rIndex = 0
		earlyPrintBuffer.wIndex = 0
	}()

	outputSink = nil
	earlyPrintBuffer.rIndex = 0
	earlyPrintBuffer.wIndex = 0

	Printf("buffered %d bytes", 16)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if exp, got := "buffered 16 bytes", buf.String(); exp != got {
		t.Fatalf("expected early buffer to drain %q into the sink; got %q", exp, got)
	}

	// Subsequent output goes straight to the sink.
	buf.Reset()
	Printf("direct")
	if exp, got := "direct", buf.String(); exp != got {
		t.Fatalf("expected %q; got %q", exp, got)
	}
}
