//go:build linux

package relay

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

const (
	epollRead      = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLET
	epollReadWrite = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLOUT | unix.EPOLLET
)

// epollPoller implements Poller on top of epoll. An eventfd registered
// level-triggered serves as the wake-up channel.
type epollPoller struct {
	epfd   int
	wakeFD int
	raw    []unix.EpollEvent

	// mu keeps Wake off wakeFD once Close released it.
	mu     sync.Mutex
	closed bool
}

var errPollerClosed = errors.New("poller closed")

func newPoller(batch int) (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create epoll instance: %w", err)
	}

	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("failed to create wake eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFD)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &ev); err != nil {
		_ = unix.Close(wakeFD)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("failed to register wake eventfd: %w", err)
	}

	return &epollPoller{
		epfd:   epfd,
		wakeFD: wakeFD,
		raw:    make([]unix.EpollEvent, batch),
	}, nil
}

func epollMask(interest Interest) uint32 {
	if interest == InterestReadWrite {
		return epollReadWrite
	}
	return epollRead
}

func (p *epollPoller) Add(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll add fd %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll modify fd %d: %w", fd, err)
	}
	return nil
}

// Remove deregisters fd. A handle that is already closed or unknown is not
// an error.
func (p *epollPoller) Remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == nil || errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENOENT) {
		return nil
	}
	return fmt.Errorf("epoll remove fd %d: %w", fd, err)
}

func (p *epollPoller) Wait(events []Event) (int, error) {
	raw := p.raw
	if len(events) < len(raw) {
		raw = raw[:len(events)]
	}

	for {
		n, err := unix.EpollWait(p.epfd, raw, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("epoll wait: %w", err)
		}

		out := 0
		for i := 0; i < n; i++ {
			fd := int(raw[i].Fd)
			if fd == p.wakeFD {
				p.drainWake()
				events[out] = Event{FD: -1}
				out++
				continue
			}

			mask := raw[i].Events
			events[out] = Event{
				FD:       fd,
				Readable: mask&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
				Writable: mask&unix.EPOLLOUT != 0,
				Hangup:   mask&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
			}
			out++
		}
		return out, nil
	}
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakeFD, buf[:]); err != nil {
			return
		}
	}
}

func (p *epollPoller) Wake() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPollerClosed
	}

	one := [8]byte{1}
	if _, err := unix.Write(p.wakeFD, one[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("wake poller: %w", err)
	}
	return nil
}

func (p *epollPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	errWake := unix.Close(p.wakeFD)
	errEp := unix.Close(p.epfd)
	return multierr.Combine(errWake, errEp)
}
