//go:build !linux

package relay

import "github.com/marmos91/tcprelay/pkg/adapter"

type socketHandle struct{ fd int }

func (h *socketHandle) FD() int                   { return h.fd }
func (h *socketHandle) Read([]byte) (int, error)  { return 0, adapter.ErrUnsupportedPlatform }
func (h *socketHandle) Write([]byte) (int, error) { return 0, adapter.ErrUnsupportedPlatform }
func (h *socketHandle) Close() error              { return nil }

func listenSocket(string, int, int) (int, string, error) {
	return -1, "", adapter.ErrUnsupportedPlatform
}

func acceptSocket(int) (*socketHandle, string, int, error) {
	return nil, "", 0, adapter.ErrUnsupportedPlatform
}

func closeSocket(int) error {
	return nil
}
