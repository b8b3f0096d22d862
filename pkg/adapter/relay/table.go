package relay

import (
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/tcprelay/internal/logger"
	"github.com/marmos91/tcprelay/internal/protocol/frame"
	"github.com/marmos91/tcprelay/pkg/adapter"
	"github.com/marmos91/tcprelay/pkg/bufpool"
)

// ConnID identifies a connection. It is the descriptor number of the
// connection's socket and is only meaningful while the entry is live.
type ConnID int

// Connection is the per-connection state held by the Table. The handle is
// fixed by Insert; every other field is guarded by the table lock.
//
// A task binds to the *Connection it claimed rather than to its ID, since the
// kernel recycles descriptor numbers. An entry is live while the table still
// maps its ID to that same pointer.
type Connection struct {
	ID          ConnID
	SessionID   string
	IP          string
	Port        int
	ConnectedAt time.Time

	handle   Handle
	inbound  bufpool.Queue
	outbound bufpool.Queue
	interest Interest

	// reading and writing mark a task of that kind in flight. A notification
	// that arrives meanwhile sets the matching again flag so the running task
	// loops instead of a second task racing it.
	reading    bool
	readAgain  bool
	writing    bool
	writeAgain bool
}

// Interest returns the readiness interest currently registered.
func (c *Connection) Interest() Interest {
	return c.interest
}

// OutboundLen returns the number of bytes waiting to be sent.
func (c *Connection) OutboundLen() int {
	return c.outbound.Len()
}

// InboundLen returns the number of received bytes not yet framed.
func (c *Connection) InboundLen() int {
	return c.inbound.Len()
}

// Table is the single source of truth for live connections. One mutex
// serializes every access to every entry.
//
// Invariant: an ID present in the table has a live handle registered with the
// poller. Removal deregisters, closes and erases, in that order, under the
// lock.
type Table struct {
	mu    sync.Mutex
	conns map[ConnID]*Connection
	reg   Registrar
}

// NewTable creates an empty table that keeps reg in sync with its entries.
func NewTable(reg Registrar) *Table {
	return &Table{
		conns: make(map[ConnID]*Connection),
		reg:   reg,
	}
}

// Insert registers c's handle for read readiness and adds c to the table.
// Registration happens under the lock so an early readiness event cannot
// observe a handle that is registered but not yet in the table.
func (t *Table) Insert(c *Connection, h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.reg.Add(int(c.ID), InterestRead); err != nil {
		return err
	}
	c.handle = h
	c.interest = InterestRead
	t.conns[c.ID] = c
	return nil
}

// Remove tears down c if it is still the live entry for its ID and reports
// whether it was. An entry already replaced by a newer connection on the
// same descriptor number is left alone.
func (t *Table) Remove(c *Connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.liveLocked(c) {
		return false
	}
	t.removeLocked(c.ID)
	return true
}

// Live reports whether c is still the entry registered under its ID.
func (t *Table) Live(c *Connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveLocked(c)
}

func (t *Table) liveLocked(c *Connection) bool {
	return c != nil && t.conns[c.ID] == c
}

func (t *Table) removeLocked(id ConnID) bool {
	c, ok := t.conns[id]
	if !ok {
		return false
	}

	if err := t.reg.Remove(int(id)); err != nil {
		logger.Warn("Failed to deregister connection", logger.KeyConnID, id, logger.KeyError, err)
	}
	if err := c.handle.Close(); err != nil {
		logger.Debug("Error closing connection", logger.KeyConnID, id, logger.KeyError, err)
	}
	c.inbound.Reset()
	c.outbound.Reset()
	delete(t.conns, id)
	return true
}

// CloseAll tears down every connection and returns how many were closed.
func (t *Table) CloseAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for id := range t.conns {
		if t.removeLocked(id) {
			n++
		}
	}
	return n
}

// Len returns the number of live connections.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// Peer returns the session id and "ip:port" of a live connection.
func (t *Table) Peer(id ConnID) (string, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conns[id]
	if !ok {
		return "", "", false
	}
	return c.SessionID, net.JoinHostPort(c.IP, strconv.Itoa(c.Port)), true
}

// BeginRead claims the read side of a connection and returns the claimed
// entry. It returns nil when the connection is gone or another read task is
// running; in the latter case that task is asked to drain once more.
func (t *Table) BeginRead(id ConnID) *Connection {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conns[id]
	if !ok {
		return nil
	}
	if c.reading {
		c.readAgain = true
		return nil
	}
	c.reading = true
	return c
}

// FinishRead releases the read side of c. It returns true when another
// notification arrived during the task, meaning the caller keeps the claim
// and drains again. Once c is no longer live it returns false and touches
// nothing.
func (t *Table) FinishRead(c *Connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.liveLocked(c) {
		return false
	}
	if c.readAgain {
		c.readAgain = false
		return true
	}
	c.reading = false
	return false
}

// BeginWrite claims the write side of a connection. See BeginRead.
func (t *Table) BeginWrite(id ConnID) *Connection {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conns[id]
	if !ok {
		return nil
	}
	if c.writing {
		c.writeAgain = true
		return nil
	}
	c.writing = true
	return c
}

// FinishWrite releases the write side of c. See FinishRead.
func (t *Table) FinishWrite(c *Connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.liveLocked(c) {
		return false
	}
	if c.writeAgain {
		c.writeAgain = false
		return true
	}
	c.writing = false
	return false
}

// SnapshotOutbound returns a copy of c's pending outbound bytes, or false
// once c is no longer live.
func (t *Table) SnapshotOutbound(c *Connection) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.liveLocked(c) {
		return nil, false
	}
	return c.outbound.Snapshot(), true
}

// ConsumeOutbound removes sent bytes from the head of c's live outbound
// buffer and returns how many remain. Bytes appended after the snapshot was
// taken are preserved. When the buffer drains, interest drops back to read
// only.
func (t *Table) ConsumeOutbound(c *Connection, sent int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.liveLocked(c) {
		return 0, false
	}

	c.outbound.Consume(sent)
	remaining := c.outbound.Len()
	if remaining == 0 {
		t.setInterestLocked(c, InterestRead)
	}
	return remaining, true
}

func (t *Table) setInterestLocked(c *Connection, interest Interest) {
	if c.interest == interest {
		return
	}
	if err := t.reg.Modify(int(c.ID), interest); err != nil {
		logger.Warn("Failed to modify connection interest",
			logger.KeyConnID, c.ID, "interest", interest.String(), logger.KeyError, err)
	}
	c.interest = interest
}

// Do runs fn with the table locked. fn must not call other Table methods.
func (t *Table) Do(fn func(v *View)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&View{t: t})
}

// Snapshot returns a copy of every entry, ordered by ID.
func (t *Table) Snapshot() []adapter.ConnectionInfo {
	t.mu.Lock()
	infos := make([]adapter.ConnectionInfo, 0, len(t.conns))
	for _, c := range t.conns {
		infos = append(infos, adapter.ConnectionInfo{
			ID:          int(c.ID),
			SessionID:   c.SessionID,
			RemoteIP:    c.IP,
			RemotePort:  c.Port,
			Inbound:     c.inbound.Len(),
			Outbound:    c.outbound.Len(),
			WriteArmed:  c.interest == InterestReadWrite,
			ConnectedAt: c.ConnectedAt,
		})
	}
	t.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// View is the locked table as seen from inside Do.
type View struct {
	t *Table
}

// Get returns the live connection with the given ID, or nil.
func (v *View) Get(id ConnID) *Connection {
	return v.t.conns[id]
}

// Live reports whether c is still the entry registered under its ID.
func (v *View) Live(c *Connection) bool {
	return v.t.liveLocked(c)
}

// AppendInbound appends received bytes to c's inbound buffer.
func (v *View) AppendInbound(c *Connection, p []byte) {
	c.inbound.Append(p)
}

// Lookup scans for the live connection whose observed peer address is
// exactly (ip, port). It returns nil when none matches.
func (v *View) Lookup(ip string, port int) *Connection {
	for _, c := range v.t.conns {
		if c.Port == port && c.IP == ip {
			return c
		}
	}
	return nil
}

// Frames removes and returns every complete frame in c's inbound buffer.
func (v *View) Frames(c *Connection) [][]byte {
	return frame.Drain(&c.inbound)
}

// QueueOutbound appends p to c's outbound buffer and arms write readiness.
// An empty p is a no-op.
func (v *View) QueueOutbound(c *Connection, p []byte) {
	if len(p) == 0 {
		return
	}
	c.outbound.Append(p)
	v.t.setInterestLocked(c, InterestReadWrite)
}
