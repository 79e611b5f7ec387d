// Package report formats counter values into the serial line protocol and
// parses them back.
//
// A line is "Count Value: 0x" followed by eight lowercase, zero-padded hex
// digits and CRLF. Lines follow each other with no other delimiter.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prefix starts every line.
const Prefix = "Count Value: 0x"

// LineLen is the length of one line including CRLF.
const LineLen = len(Prefix) + 8 + 2

var (
	// ErrPrefix is returned when a line does not start with Prefix.
	ErrPrefix = errors.New("missing \"" + Prefix + "\" prefix")
	// ErrDigits is returned when the value is not exactly 8 hex digits.
	ErrDigits = errors.New("expected 8 hex digits")
)

const hexDigits = "0123456789abcdef"

// Reader supplies counter values. *chain.Counter satisfies it.
type Reader interface {
	Read() uint32
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func() uint32

// Read calls f.
func (f ReaderFunc) Read() uint32 { return f() }

// AppendLine appends the line for v to dst.
func AppendLine(dst []byte, v uint32) []byte {
	dst = append(dst, Prefix...)
	for shift := 28; shift >= 0; shift -= 4 {
		dst = append(dst, hexDigits[(v>>uint(shift))&0xF])
	}
	return append(dst, '\r', '\n')
}

// Line returns the line for v.
func Line(v uint32) string {
	return string(AppendLine(make([]byte, 0, LineLen), v))
}

// Parse extracts the value from a line. Surrounding whitespace, including the
// trailing CRLF, is ignored.
func Parse(line string) (uint32, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, Prefix) {
		return 0, ErrPrefix
	}
	digits := line[len(Prefix):]
	if len(digits) != 8 {
		return 0, fmt.Errorf("%w: got %d", ErrDigits, len(digits))
	}

	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrDigits, digits)
	}
	return uint32(v), nil
}

// Step reads one value, formats it into buf and writes it to w. It returns buf
// so the caller can reuse its storage, along with any write error.
func Step(r Reader, w io.Writer, buf []byte) ([]byte, error) {
	buf = AppendLine(buf[:0], r.Read())
	_, err := w.Write(buf)
	return buf, err
}

// Run repeats Step forever with no delay. The loop rate is bounded by the
// writer blocking on each byte. A write error drops that line and the loop
// carries on with the next read.
func Run(r Reader, w io.Writer) {
	buf := make([]byte, 0, LineLen)
	for {
		buf, _ = Step(r, w, buf)
	}
}
