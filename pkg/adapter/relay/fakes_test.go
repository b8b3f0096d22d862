package relay

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/marmos91/tcprelay/pkg/adapter"
	"github.com/marmos91/tcprelay/pkg/bufpool"
)

// fakeRegistrar records interest changes instead of talking to a poller.
type fakeRegistrar struct {
	mu       sync.Mutex
	interest map[int]Interest
	modifies int
	removed  []int
	addErr   error
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{interest: make(map[int]Interest)}
}

func (r *fakeRegistrar) Add(fd int, interest Interest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	r.interest[fd] = interest
	return nil
}

func (r *fakeRegistrar) Modify(fd int, interest Interest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modifies++
	r.interest[fd] = interest
	return nil
}

func (r *fakeRegistrar) Remove(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.interest, fd)
	r.removed = append(r.removed, fd)
	return nil
}

func (r *fakeRegistrar) get(fd int) (Interest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.interest[fd]
	return i, ok
}

func (r *fakeRegistrar) modifyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modifies
}

// fakeHandle is a scripted non-blocking socket.
//
// Reads pop queued chunks, then report EOF or readErr if set, else
// ErrWouldBlock. Writes accept up to writeBudget bytes in total (-1 for
// unlimited) and then report ErrWouldBlock, or fail with writeErr.
type fakeHandle struct {
	mu          sync.Mutex
	chunks      [][]byte
	eof         bool
	readErr     error
	out         bytes.Buffer
	writeBudget int
	writeErr    error
	closed      bool
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{writeBudget: -1}
}

func (h *fakeHandle) feed(chunks ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range chunks {
		h.chunks = append(h.chunks, []byte(c))
	}
}

func (h *fakeHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, errors.New("read on closed handle")
	}
	if len(h.chunks) > 0 {
		n := copy(p, h.chunks[0])
		if n < len(h.chunks[0]) {
			h.chunks[0] = h.chunks[0][n:]
		} else {
			h.chunks = h.chunks[1:]
		}
		return n, nil
	}
	if h.readErr != nil {
		return 0, h.readErr
	}
	if h.eof {
		return 0, io.EOF
	}
	return 0, ErrWouldBlock
}

func (h *fakeHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, errors.New("write on closed handle")
	}
	if h.writeErr != nil {
		return 0, h.writeErr
	}
	n := len(p)
	if h.writeBudget >= 0 {
		if h.writeBudget == 0 {
			return 0, ErrWouldBlock
		}
		n = min(n, h.writeBudget)
		h.writeBudget -= n
	}
	h.out.Write(p[:n])
	return n, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) written() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out.String()
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) setWriteBudget(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeBudget = n
}

// gatedHandle parks every Read and Write until the test sends the result on
// release. entered signals that a call is parked.
type gatedHandle struct {
	entered chan struct{}
	release chan error

	mu     sync.Mutex
	closed bool
}

func newGatedHandle() *gatedHandle {
	return &gatedHandle{
		entered: make(chan struct{}, 1),
		release: make(chan error),
	}
}

func (h *gatedHandle) Read(p []byte) (int, error) {
	h.entered <- struct{}{}
	return 0, <-h.release
}

func (h *gatedHandle) Write(p []byte) (int, error) {
	h.entered <- struct{}{}
	return 0, <-h.release
}

func (h *gatedHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *gatedHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// newTestTable returns a table over a fake registrar.
func newTestTable() (*Table, *fakeRegistrar) {
	reg := newFakeRegistrar()
	return NewTable(reg), reg
}

// addConn inserts a connection with a fake handle.
func addConn(t interface{ Fatalf(string, ...any) }, table *Table, id int, ip string, port int) *fakeHandle {
	h := newFakeHandle()
	c := &Connection{ID: ConnID(id), SessionID: "session", IP: ip, Port: port}
	if err := table.Insert(c, h); err != nil {
		t.Fatalf("insert %d: %v", id, err)
	}
	return h
}

// newTestAdapter builds an adapter around a fake-registrar table without a
// poller or listener, for driving read and write tasks directly.
func newTestAdapter(chunk int) (*Adapter, *fakeRegistrar) {
	table, reg := newTestTable()
	a := &Adapter{
		BaseAdapter: adapter.NewBaseAdapter(adapter.BaseConfig{}, Protocol),
		table:       table,
		scratch:     bufpool.NewPool(chunk),
		listenFD:    -1,
		done:        make(chan struct{}),
	}
	return a, reg
}

// entry returns the live entry for id, or nil.
func entry(table *Table, id int) *Connection {
	var c *Connection
	table.Do(func(v *View) { c = v.Get(ConnID(id)) })
	return c
}

// appendInbound appends raw to the inbound buffer of id and reports whether
// the connection was live.
func appendInbound(table *Table, id int, raw string) bool {
	ok := false
	table.Do(func(v *View) {
		if c := v.Get(ConnID(id)); c != nil {
			v.AppendInbound(c, []byte(raw))
			ok = true
		}
	})
	return ok
}

// outbound returns the pending outbound bytes of id.
func outbound(table *Table, id int) string {
	snap, _ := table.SnapshotOutbound(entry(table, id))
	return string(snap)
}

// fakePoller is a fakeRegistrar that also counts wake-ups.
type fakePoller struct {
	*fakeRegistrar
	wakes chan struct{}
}

func newFakePoller() *fakePoller {
	return &fakePoller{fakeRegistrar: newFakeRegistrar(), wakes: make(chan struct{}, 64)}
}

func (p *fakePoller) Wait([]Event) (int, error) {
	return 0, errors.New("not implemented")
}

func (p *fakePoller) Wake() error {
	select {
	case p.wakes <- struct{}{}:
	default:
	}
	return nil
}

func (p *fakePoller) Close() error { return nil }
