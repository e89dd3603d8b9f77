// SPDX-License-Identifier: MIT

package events

// Well-known event names.
const (
	DelPlayer            = "del_player"
	NewRole              = "new_role"
	SendRole             = "send_role"
	TransitionDayBegin   = "transition_day_begin"
	TransitionNightBegin = "transition_night_begin"
	NightKills           = "night_kills"
	Reset                = "reset"
	GetRoleMetadata      = "get_role_metadata"
	ChkNightDone         = "chk_nightdone"
	ChkWin               = "chk_win"
	Investigate          = "investigate"
	GetTeamAffiliation   = "get_team_affiliation"
)

// Data is the mutable payload shared by every listener of one dispatch.
type Data map[string]any

// Event is one in-flight dispatch. It is created by Dispatch and must not be
// retained by listeners after they return.
type Event struct {
	Name string
	Data Data
	// Args carries read-only dispatch arguments.
	Args any

	stopped   bool
	prevented bool
}

// Stop skips the remaining listeners of this dispatch.
func (e *Event) Stop() { e.stopped = true }

// Stopped reports whether a listener called Stop.
func (e *Event) Stopped() bool { return e.stopped }

// PreventDefault asks the dispatching caller to skip its default action.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Value returns Data[key] as T.
func Value[T any](e *Event, key string) (T, bool) {
	v, ok := e.Data[key].(T)
	return v, ok
}

// ArgsAs returns Args as T.
func ArgsAs[T any](e *Event) (T, bool) {
	v, ok := e.Args.(T)
	return v, ok
}
