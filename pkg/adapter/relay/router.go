package relay

import (
	"github.com/marmos91/tcprelay/internal/protocol/frame"
	"github.com/marmos91/tcprelay/pkg/metrics"
)

var (
	malformedDiagnostic = []byte(frame.MalformedDiagnostic)
	notFoundDiagnostic  = []byte(frame.NotFoundDiagnostic)
)

// routeResult tallies the outcome of routing a batch of frames.
type routeResult struct {
	delivered int
	malformed int
	notFound  int
}

func (r routeResult) total() int {
	return r.delivered + r.malformed + r.notFound
}

// route delivers one raw frame received from sender. It must run inside
// Table.Do so the lookup and the append happen under one lock.
//
// A frame that does not parse queues the malformed diagnostic on the sender.
// A frame whose target matches no live peer address queues the not-found
// diagnostic on the sender. Otherwise the payload is appended to the
// destination as is, which may be the sender itself.
func route(v *View, sender *Connection, raw []byte) string {
	addr, err := frame.Parse(raw)
	if err != nil {
		v.QueueOutbound(sender, malformedDiagnostic)
		return metrics.OutcomeMalformed
	}

	dst := v.Lookup(addr.IP, addr.Port)
	if dst == nil {
		v.QueueOutbound(sender, notFoundDiagnostic)
		return metrics.OutcomeNotFound
	}

	v.QueueOutbound(dst, addr.Payload)
	return metrics.OutcomeDelivered
}

// routeAll extracts every complete frame buffered for sender and routes it.
func routeAll(v *View, sender *Connection) routeResult {
	var res routeResult
	for _, raw := range v.Frames(sender) {
		switch route(v, sender, raw) {
		case metrics.OutcomeDelivered:
			res.delivered++
		case metrics.OutcomeMalformed:
			res.malformed++
		case metrics.OutcomeNotFound:
			res.notFound++
		}
	}
	return res
}
