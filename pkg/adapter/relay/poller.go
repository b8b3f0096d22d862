package relay

import "fmt"

// Interest is the readiness set a connection is registered for.
type Interest uint8

const (
	// InterestRead waits for inbound data only.
	InterestRead Interest = iota
	// InterestReadWrite additionally waits for the socket to become writable.
	InterestReadWrite
)

func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("Interest(%d)", uint8(i))
	}
}

// Event is one readiness notification harvested from the poller.
type Event struct {
	FD       int
	Readable bool
	Writable bool
	// Hangup reports an error or peer hang-up on the handle. The read path
	// discovers the concrete condition.
	Hangup bool
}

// Registrar changes the readiness interest of registered handles. The
// connection table calls it while holding its lock.
type Registrar interface {
	Add(fd int, interest Interest) error
	Modify(fd int, interest Interest) error
	Remove(fd int) error
}

// Poller is an edge-triggered readiness multiplexer.
//
// Notifications are delivered once per readiness transition, so whoever
// handles an event must drain the handle until it would block.
type Poller interface {
	Registrar

	// Wait blocks until at least one event is ready and fills events.
	// Interrupted waits are retried internally.
	Wait(events []Event) (int, error)

	// Wake makes a blocked Wait return. The returned events carry no FD.
	Wake() error

	// Close releases the poller.
	Close() error
}
