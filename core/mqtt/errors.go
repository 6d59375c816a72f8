package mqtt

import "errors"

// ErrClosed is returned when publishing on a closed transport.
var ErrClosed = errors.New("transport closed")
