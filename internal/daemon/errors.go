// SPDX-License-Identifier: MIT

package daemon

import "errors"

var (
	// ErrMissingSession is returned when an app is created without a session.
	ErrMissingSession = errors.New("session is required")

	// ErrMissingTransport is returned when an app is created without a transport.
	ErrMissingTransport = errors.New("transport is required")

	// ErrServerAlreadyStarted is returned by a second Server.Start.
	ErrServerAlreadyStarted = errors.New("server already started")

	// ErrServerNotStarted is returned when shutting down a server that never started.
	ErrServerNotStarted = errors.New("server not started")
)
