// Package hexdump formats octet slices for failure messages, the Go
// counterpart of `crates/hexify` and the teacher's own "log the hex of what
// we just sent" habit (source/protocol/raknet.go's `log.Printf("... hex:
// %02X", ...)` calls).
package hexdump

import (
	"fmt"
	"strings"
)

const bytesPerLine = 16

// Format renders buf as an offset-prefixed, space-separated uppercase hex
// dump with an ASCII column, one line per 16 octets.
func Format(buf []byte) string {
	var b strings.Builder
	for offset := 0; offset < len(buf); offset += bytesPerLine {
		end := offset + bytesPerLine
		if end > len(buf) {
			end = len(buf)
		}
		line := buf[offset:end]
		fmt.Fprintf(&b, "%08X  %-47s  %s", offset, formatHexOctets(line), formatASCII(line))
		if end < len(buf) {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func formatHexOctets(line []byte) string {
	parts := make([]string, len(line))
	for i, octet := range line {
		parts[i] = fmt.Sprintf("%02X", octet)
	}
	return strings.Join(parts, " ")
}

func formatASCII(line []byte) string {
	var b strings.Builder
	for _, octet := range line {
		if octet >= 0x20 && octet < 0x7F {
			b.WriteByte(octet)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// Diff renders got and want as two labeled hex dumps, for test failure
// messages comparing an encountered buffer against an expected one.
func Diff(got, want []byte) string {
	return fmt.Sprintf("got:\n%s\nwant:\n%s", Format(got), Format(want))
}
