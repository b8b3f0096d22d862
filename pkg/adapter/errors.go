package adapter

import "errors"

var (
	// ErrUnsupportedPlatform is returned by adapters whose event loop has no
	// implementation for the running operating system.
	ErrUnsupportedPlatform = errors.New("adapter: readiness poller not supported on this platform")

	// ErrAlreadyServing is returned when Serve is called a second time.
	ErrAlreadyServing = errors.New("adapter: already serving")
)
