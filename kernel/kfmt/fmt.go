// Package kfmt provides formatted output primitives for kernel code. Output
// generated before a console sink is registered accumulates in a fixed ring
// buffer and is drained into the sink once one becomes available.
package kfmt

import "io"

// maxNumBuf is large enough to format a 64-bit value in base 8.
const maxNumBuf = 24

var (
	errNoVerb       = []byte("%!(NOVERB)")
	errMissingArg   = []byte("%!(MISSING)")
	errExtraArg     = []byte("%!(EXTRA)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// earlyPrintBuffer captures Printf output generated before an output
	// sink is registered.
	earlyPrintBuffer ringBuffer

	// outputSink is the io.Writer where Printf sends its output. While
	// nil, output is redirected to earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the target for Printf calls to w and drains any output
// accumulated in the early print buffer into it. Passing nil reverts Printf
// output to the early print buffer.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// Printf formats its arguments and writes the result to the registered
// output sink. The supported verb subset is documented on Fprintf.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf formats its arguments and writes the result to w. It supports a
// subset of the fmt verbs:
//
//	%s  the uninterpreted bytes of a string or byte slice
//	%c  a single byte
//	%o  integer, base 8
//	%d  integer, base 10
//	%x  integer, base 16 with lower-case digits
//	%t  "true" or "false"
//
// An optional decimal width may precede the verb. Strings and base-10 values
// shorter than the width are left-padded with spaces; base-16 values are
// left-padded with zeroes.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextArg    int
		blockStart int
	)

	if w == nil {
		w = &earlyPrintBuffer
	}

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}

		if blockStart < i {
			w.Write([]byte(format[blockStart:i]))
		}

		// Scan the optional width and the verb that follows it.
		i++
		padLen := 0
		for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			padLen = padLen*10 + int(format[i]-'0')
		}

		if i >= len(format) {
			w.Write(errNoVerb)
			return
		}

		if format[i] == '%' {
			w.Write([]byte{'%'})
			blockStart = i + 1
			continue
		}

		if nextArg >= len(args) {
			w.Write(errMissingArg)
			blockStart = i + 1
			continue
		}

		fmtArg(w, format[i], padLen, args[nextArg])
		nextArg++
		blockStart = i + 1
	}

	if blockStart < len(format) {
		w.Write([]byte(format[blockStart:]))
	}

	if nextArg < len(args) {
		w.Write(errExtraArg)
	}
}

func fmtArg(w io.Writer, verb byte, padLen int, arg interface{}) {
	switch verb {
	case 's':
		switch t := arg.(type) {
		case string:
			fmtString(w, []byte(t), padLen)
		case []byte:
			fmtString(w, t, padLen)
		default:
			w.Write(errWrongArgType)
		}
	case 'c':
		if b, ok := toUint64(arg); ok {
			w.Write([]byte{byte(b)})
		} else {
			w.Write(errWrongArgType)
		}
	case 't':
		if b, ok := arg.(bool); ok {
			if b {
				w.Write(trueValue)
			} else {
				w.Write(falseValue)
			}
		} else {
			w.Write(errWrongArgType)
		}
	case 'o', 'd', 'x':
		v, ok := toUint64(arg)
		if !ok {
			w.Write(errWrongArgType)
			return
		}
		fmtUint(w, verb, v, padLen)
	default:
		w.Write(errNoVerb)
	}
}

func fmtString(w io.Writer, s []byte, padLen int) {
	for pad := padLen - len(s); pad > 0; pad-- {
		w.Write([]byte{' '})
	}
	w.Write(s)
}

func fmtUint(w io.Writer, verb byte, v uint64, padLen int) {
	var (
		buf  [maxNumBuf]byte
		base uint64
		pad  byte = ' '
	)

	switch verb {
	case 'o':
		base = 8
	case 'd':
		base = 10
	case 'x':
		base, pad = 16, '0'
	}

	i := len(buf)
	for {
		i--
		d := byte(v % base)
		if d < 10 {
			buf[i] = '0' + d
		} else {
			buf[i] = 'a' + d - 10
		}
		v /= base
		if v == 0 {
			break
		}
	}

	for digits := len(buf) - i; digits < padLen; digits++ {
		w.Write([]byte{pad})
	}

	w.Write(buf[i:])
}

func toUint64(arg interface{}) (uint64, bool) {
	switch t := arg.(type) {
	case uint8:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	case uint:
		return uint64(t), true
	case uintptr:
		return uint64(t), true
	case int8:
		return uint64(t), true
	case int16:
		return uint64(t), true
	case int32:
		return uint64(t), true
	case int64:
		return uint64(t), true
	case int:
		return uint64(t), true
	default:
		return 0, false
	}
}
