// SPDX-License-Identifier: MIT

package session

import "github.com/jesopo/lykos/internal/users"

// Death reasons carried by DelPlayerArgs.
const (
	ReasonNight = "night"
	ReasonLynch = "lynch"
	ReasonQuit  = "quit"
)

// DelPlayerArgs are the arguments of del_player, dispatched before the
// player leaves the roster.
type DelPlayerArgs struct {
	Player *users.User
	Role   string
	Reason string
}

// NewRoleArgs are the arguments of new_role. The new role is Data["role"];
// listeners may rewrite it or prevent the change.
type NewRoleArgs struct {
	Player  *users.User
	OldRole string
}

// InvestigateArgs are the arguments of investigate. Data["role"] is the role
// the actor will see for Target.
type InvestigateArgs struct {
	Actor  *users.User
	Target *users.User
}

// TeamArgs are the arguments of get_team_affiliation. Data["same"] is the
// computed answer.
type TeamArgs struct {
	First  *users.User
	Second *users.User
}

// MetadataArgs are the arguments of get_role_metadata. For the
// "role_categories" kind each role listener sets Data[role] to a []string.
type MetadataArgs struct {
	Kind string
}

// MetadataRoleCategories is the get_role_metadata kind listing categories.
const MetadataRoleCategories = "role_categories"

// Data keys shared by the game flow events.
const (
	KeyVictims  = "victims"
	KeyWinner   = "winner"
	KeyActed    = "acted"
	KeyExpected = "expected"
	KeyRole     = "role"
	KeySame     = "same"
)
