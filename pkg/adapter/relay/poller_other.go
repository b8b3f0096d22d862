//go:build !linux

package relay

import "github.com/marmos91/tcprelay/pkg/adapter"

func newPoller(int) (Poller, error) {
	return nil, adapter.ErrUnsupportedPlatform
}
