// SPDX-License-Identifier: MIT

package command

import (
	"slices"

	"github.com/jesopo/lykos/internal/users"
)

// Verdict is the outcome of authorizing one registration.
type Verdict int

const (
	// Reject drops the message without any reply.
	Reject Verdict = iota
	// Notify tells the caller privately why the command was refused.
	Notify
	// Execute runs the handler.
	Execute
)

// String returns "reject", "notify" or "execute".
func (v Verdict) String() string {
	switch v {
	case Notify:
		return "notify"
	case Execute:
		return "execute"
	default:
		return "reject"
	}
}

// Step names the predicate that decided.
type Step string

const (
	StepOrigin     Step = "origin"
	StepAltChannel Step = "alt_channel"
	StepCatchAll   Step = "catch_all"
	StepPhase      Step = "phase"
	StepPlaying    Step = "playing"
	StepRoleGate   Step = "role_gate"
	StepSilenced   Step = "silenced"
	StepRole       Step = "role"
	StepOwner      Step = "owner"
	StepDenylist   Step = "denylist"
	StepAdmin      Step = "admin"
	StepFlag       Step = "flag"
	StepOpen       Step = "open"
)

// Decision is the result of the authorization chain for one registration.
type Decision struct {
	Command *Command
	Verdict Verdict
	Step    Step
	// Notice is the message key sent to the caller on Notify.
	Notice string
	// Audit is set when the execution must be written to the audit log first.
	Audit bool
	// NightCheck is set on role-path executions; after the handler returns
	// the router dispatches chk_nightdone if it is night.
	NightCheck bool
}

// State is the session view the chain reads.
type State interface {
	Phase() string
	IsPlaying(u *users.User) bool
	HasRole(u *users.User, role string) bool
	IsSilenced(u *users.User) bool
}

// Access resolves ownership, admin status, flags and denylists.
type Access interface {
	IsOwner(u *users.User) bool
	IsAdmin(u *users.User) bool
	// Flags is the union of flags attached to the caller's nick mask and account.
	Flags(u *users.User) string
	// Denied is the union of command names denied to the caller's nick mask and account.
	Denied(u *users.User) []string
}

type request struct {
	cmd    *Command
	msg    Message
	state  State
	access Access
	main   string

	holdsRole bool
	listed    bool
}

// predicate returns decided=false to pass to the next step.
type predicate func(*request) (Decision, bool)

var chain = []predicate{
	checkOrigin,
	checkAltChannel,
	checkCatchAll,
	checkPhase,
	checkPlaying,
	checkRoleGate,
	checkSilenced,
	checkRole,
	checkOwner,
	checkDenylist,
	checkAdmin,
	checkFlag,
}

// Authorize evaluates the chain for cmd. It has no side effects.
func Authorize(cmd *Command, msg Message, state State, access Access, mainChannel string) Decision {
	req := &request{cmd: cmd, msg: msg, state: state, access: access, main: mainChannel}
	for _, p := range chain {
		if d, ok := p(req); ok {
			d.Command = cmd
			return d
		}
	}
	return Decision{Command: cmd, Verdict: Execute, Step: StepOpen}
}

func reject(step Step) (Decision, bool) {
	return Decision{Verdict: Reject, Step: step}, true
}

func notify(step Step, key string) (Decision, bool) {
	return Decision{Verdict: Notify, Step: step, Notice: key}, true
}

func execute(step Step, audit bool) (Decision, bool) {
	return Decision{Verdict: Execute, Step: step, Audit: audit}, true
}

func pass() (Decision, bool) { return Decision{}, false }

func checkOrigin(r *request) (Decision, bool) {
	if (r.msg.Private && !r.cmd.Spec.PM) || (!r.msg.Private && !r.cmd.Spec.Chan) {
		return reject(StepOrigin)
	}
	return pass()
}

func checkAltChannel(r *request) (Decision, bool) {
	if r.msg.Private || r.msg.Target == r.main {
		return pass()
	}
	if r.cmd.Spec.Flag != "" || r.cmd.owner {
		return pass()
	}
	if r.cmd.isCatchAll() || !r.cmd.altAllowed {
		return reject(StepAltChannel)
	}
	return pass()
}

func checkCatchAll(r *request) (Decision, bool) {
	if r.cmd.isCatchAll() {
		return execute(StepCatchAll, false)
	}
	return pass()
}

func checkPhase(r *request) (Decision, bool) {
	if len(r.cmd.Spec.Phases) > 0 && !slices.Contains(r.cmd.Spec.Phases, r.state.Phase()) {
		return reject(StepPhase)
	}
	return pass()
}

func checkPlaying(r *request) (Decision, bool) {
	if r.cmd.Spec.Playing && !r.state.IsPlaying(r.msg.Source) {
		return reject(StepPlaying)
	}
	return pass()
}

func checkRoleGate(r *request) (Decision, bool) {
	for _, role := range r.cmd.Spec.Roles {
		if r.state.HasRole(r.msg.Source, role) {
			r.holdsRole = true
			break
		}
	}
	r.listed = r.cmd.Spec.Users.Has(r.msg.Source)

	restricted := len(r.cmd.Spec.Roles) > 0 || r.cmd.Spec.Users != nil
	if restricted && !r.holdsRole && !r.listed {
		return reject(StepRoleGate)
	}
	return pass()
}

func checkSilenced(r *request) (Decision, bool) {
	if r.cmd.Spec.Silenced && r.state.IsSilenced(r.msg.Source) {
		return notify(StepSilenced, "silenced")
	}
	return pass()
}

func checkRole(r *request) (Decision, bool) {
	if r.holdsRole || r.listed {
		return Decision{Verdict: Execute, Step: StepRole, NightCheck: true}, true
	}
	return pass()
}

func checkOwner(r *request) (Decision, bool) {
	if !r.cmd.owner {
		return pass()
	}
	if r.access.IsOwner(r.msg.Source) {
		return execute(StepOwner, true)
	}
	return notify(StepOwner, "not_owner")
}

func checkDenylist(r *request) (Decision, bool) {
	for _, denied := range r.access.Denied(r.msg.Source) {
		if slices.Contains(r.cmd.Aliases, denied) {
			return notify(StepDenylist, "invalid_permissions")
		}
	}
	return pass()
}

func checkAdmin(r *request) (Decision, bool) {
	if r.cmd.Spec.Flag == "" {
		return pass()
	}
	if r.access.IsAdmin(r.msg.Source) || r.access.IsOwner(r.msg.Source) {
		return execute(StepAdmin, true)
	}
	return pass()
}

func checkFlag(r *request) (Decision, bool) {
	flag := r.cmd.Spec.Flag
	if flag == "" {
		return pass()
	}
	for _, f := range r.access.Flags(r.msg.Source) {
		if string(f) == flag {
			return execute(StepFlag, true)
		}
	}
	return notify(StepFlag, "not_an_admin")
}
