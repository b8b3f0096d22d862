package relay

import (
	"errors"
	"io"
)

// ErrWouldBlock is returned by a Handle when the operation cannot make
// progress without blocking.
var ErrWouldBlock = errors.New("operation would block")

// Handle is the non-blocking OS resource owned by a connection table entry.
//
// Read returns (0, io.EOF) when the peer has closed its write side and
// (0, ErrWouldBlock) when no data is available. Write returns
// (0, ErrWouldBlock) when the send buffer is full. Close must make every
// later Read and Write fail rather than touch a recycled descriptor.
type Handle interface {
	io.ReadWriteCloser
}
