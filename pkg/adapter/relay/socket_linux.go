//go:build linux

package relay

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"
)

// listenSocket creates a non-blocking TCP listening socket with
// SO_REUSEADDR set and returns its descriptor and bound address.
func listenSocket(bindAddress string, port, backlog int) (int, string, error) {
	if bindAddress == "" {
		bindAddress = "0.0.0.0"
	}
	ip := net.ParseIP(bindAddress)
	if ip == nil {
		return -1, "", fmt.Errorf("invalid bind address %q", bindAddress)
	}

	var (
		family int
		sa     unix.Sockaddr
	)
	if ip4 := ip.To4(); ip4 != nil {
		family = unix.AF_INET
		addr := &unix.SockaddrInet4{Port: port}
		copy(addr.Addr[:], ip4)
		sa = addr
	} else {
		family = unix.AF_INET6
		addr := &unix.SockaddrInet6{Port: port}
		copy(addr.Addr[:], ip.To16())
		sa = addr
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, "", fmt.Errorf("failed to create socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, "", fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, "", fmt.Errorf("failed to bind %s: %w", net.JoinHostPort(bindAddress, strconv.Itoa(port)), err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, "", fmt.Errorf("failed to listen: %w", err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return -1, "", fmt.Errorf("failed to read bound address: %w", err)
	}
	boundIP, boundPort := sockaddrIPPort(bound)

	return fd, net.JoinHostPort(boundIP, strconv.Itoa(boundPort)), nil
}

// acceptSocket accepts one pending connection as a non-blocking handle.
// It returns ErrWouldBlock when the backlog is empty.
func acceptSocket(listenFD int) (*socketHandle, string, int, error) {
	for {
		nfd, sa, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == nil:
			ip, port := sockaddrIPPort(sa)
			return &socketHandle{fd: nfd}, ip, port, nil
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
			continue
		case errors.Is(err, unix.EAGAIN):
			return nil, "", 0, ErrWouldBlock
		default:
			return nil, "", 0, fmt.Errorf("accept: %w", err)
		}
	}
}

func closeSocket(fd int) error {
	return unix.Close(fd)
}

func sockaddrIPPort(sa unix.Sockaddr) (string, int) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:]).String(), a.Port
	case *unix.SockaddrInet6:
		ip := net.IP(a.Addr[:])
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), a.Port
		}
		return ip.String(), a.Port
	default:
		return "", 0
	}
}

// socketHandle is a Handle over a raw non-blocking socket descriptor.
// The read-write lock keeps Close from releasing the descriptor while a
// worker is inside a syscall on it, so a recycled descriptor number is never
// read or written by a stale task.
type socketHandle struct {
	mu     sync.RWMutex
	fd     int
	closed bool
}

func (h *socketHandle) FD() int {
	return h.fd
}

func (h *socketHandle) Read(p []byte) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, unix.EBADF
	}

	for {
		n, err := unix.Read(h.fd, p)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		case err != nil:
			return 0, err
		case n == 0:
			return 0, io.EOF
		default:
			return n, nil
		}
	}
}

func (h *socketHandle) Write(p []byte) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, unix.EBADF
	}

	for {
		n, err := unix.Write(h.fd, p)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		case err != nil:
			return 0, err
		default:
			return n, nil
		}
	}
}

func (h *socketHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return unix.Close(h.fd)
}
