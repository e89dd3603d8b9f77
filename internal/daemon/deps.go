// SPDX-License-Identifier: MIT

package daemon

import (
	"github.com/jesopo/lykos/internal/boundary"
	"github.com/jesopo/lykos/internal/config"
	"github.com/jesopo/lykos/internal/health"
	"github.com/jesopo/lykos/internal/session"
	"github.com/jesopo/lykos/internal/transport"
	"github.com/rs/zerolog"
)

// Deps contains the long-lived subsystems App runs.
type Deps struct {
	Logger zerolog.Logger

	// Session and Transport are required.
	Session   *session.Session
	Transport *transport.Console

	// Boundary drains the diagnostic report queue when set.
	Boundary *boundary.Boundary

	// Config is watched for changes and reloaded on SIGHUP when set.
	Config *config.Holder

	// Server serves metrics and probes when set.
	Server *Server

	// SessionCheck tracks whether the session loop is up.
	SessionCheck *health.LoopChecker
}

// Validate checks the required dependencies.
func (d Deps) Validate() error {
	if d.Session == nil {
		return ErrMissingSession
	}
	if d.Transport == nil {
		return ErrMissingTransport
	}
	return nil
}
