// Package frame implements the relay's line protocol.
//
// A frame is one newline-terminated line of the inbound byte stream with a
// single trailing carriage return removed. An address frame is a frame of
// the form <ip>:<port>:<payload>, where the payload runs to the end of the
// line and may itself contain colons.
package frame

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/marmos91/tcprelay/pkg/bufpool"
)

// Delimiter terminates every frame on the wire.
const Delimiter = '\n'

// MaxPort is the largest port a frame may address.
const MaxPort = 65535

// Diagnostics queued back to a sender.
const (
	// MalformedDiagnostic is sent when a frame does not parse as an address frame.
	MalformedDiagnostic = "invalid message format. use: IP:PORT:MESSAGE\n"

	// NotFoundDiagnostic is sent when no live connection matches the target address.
	NotFoundDiagnostic = "target client not found\n"
)

var (
	// ErrMissingSeparator is returned when a frame lacks the ip or port separator.
	ErrMissingSeparator = errors.New("missing ':' separator")

	// ErrInvalidPort is returned when the port field is not a base-10 integer
	// between 0 and MaxPort.
	ErrInvalidPort = errors.New("port is not a base-10 integer in range")
)

// Address is a successfully parsed frame.
type Address struct {
	IP      string
	Port    int
	Payload []byte
}

// Next removes the next non-empty frame from q.
//
// Every complete line up to and including the delimiter is consumed. Lines
// that are empty once the delimiter and an optional trailing '\r' are
// stripped are skipped. Returns false when no complete line remains; any
// partial line stays in q for a later call.
func Next(q *bufpool.Queue) ([]byte, bool) {
	for {
		idx := q.IndexByte(Delimiter)
		if idx < 0 {
			return nil, false
		}

		line := q.Next(idx + 1)
		line = line[:idx]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if len(line) == 0 {
			continue
		}
		return line, true
	}
}

// Drain extracts every complete frame currently held in q, in order.
func Drain(q *bufpool.Queue) [][]byte {
	var frames [][]byte
	for {
		f, ok := Next(q)
		if !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

// Parse splits a frame into target ip, target port and payload.
//
// The ip runs up to the first colon and the port up to the second. The port
// must be ASCII digits only, with no sign or spaces, and at most MaxPort.
// Everything after the second colon is the
// payload, returned verbatim.
func Parse(f []byte) (Address, error) {
	first := bytes.IndexByte(f, ':')
	if first < 0 {
		return Address{}, fmt.Errorf("parse frame: ip: %w", ErrMissingSeparator)
	}

	rest := f[first+1:]
	second := bytes.IndexByte(rest, ':')
	if second < 0 {
		return Address{}, fmt.Errorf("parse frame: port: %w", ErrMissingSeparator)
	}

	port, ok := parsePort(rest[:second])
	if !ok {
		return Address{}, fmt.Errorf("parse frame: %q: %w", rest[:second], ErrInvalidPort)
	}

	payload := make([]byte, len(rest)-second-1)
	copy(payload, rest[second+1:])

	return Address{
		IP:      string(f[:first]),
		Port:    port,
		Payload: payload,
	}, nil
}

func parsePort(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	port := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		port = port*10 + int(c-'0')
		if port > MaxPort {
			return 0, false
		}
	}
	return port, true
}
