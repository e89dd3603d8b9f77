// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldNick      = "nick"
	FieldRawNick   = "raw_nick"
	FieldAccount   = "account"
	FieldChannel   = "channel"

	// Dispatch fields
	FieldEvent     = "event_name"
	FieldComponent = "component"
	FieldCommand   = "command"
	FieldListener  = "listener"
	FieldPriority  = "priority"
	FieldVerdict   = "verdict"
	FieldStep      = "step"

	// Game fields
	FieldPhase     = "phase"
	FieldNextPhase = "next_phase"
	FieldMode      = "mode"
	FieldRole      = "role"
	FieldPlayers   = "players"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
