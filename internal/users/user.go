// SPDX-License-Identifier: MIT

// Package users models chat participants and the ordered containers the game
// state keeps them in.
package users

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// User is a chat participant. Pointer identity is significant: the Registry
// hands out exactly one *User per folded nick.
type User struct {
	Nick    string
	Ident   string
	Host    string
	Account string
}

var (
	folderMu sync.Mutex
	folder   = cases.Fold()
)

// Fold returns the case-folded form used for nick comparisons.
func Fold(s string) string {
	folderMu.Lock()
	defer folderMu.Unlock()
	return folder.String(s)
}

// RawNick returns nick!ident@host.
func (u *User) RawNick() string {
	if u == nil {
		return ""
	}
	if u.Ident == "" && u.Host == "" {
		return u.Nick
	}
	return u.Nick + "!" + u.Ident + "@" + u.Host
}

// Key returns the folded nick used to index users.
func (u *User) Key() string {
	return Fold(u.Nick)
}

// Lower returns a copy with every identity component case-folded.
func (u *User) Lower() User {
	return User{
		Nick:    Fold(u.Nick),
		Ident:   Fold(u.Ident),
		Host:    Fold(u.Host),
		Account: Fold(u.Account),
	}
}

func (u *User) String() string {
	if u == nil {
		return "<nil>"
	}
	return u.Nick
}

// ParseRawNick splits nick!ident@host. Missing parts are left empty.
func ParseRawNick(raw string) User {
	var u User
	nick, rest, found := strings.Cut(raw, "!")
	u.Nick = nick
	if found {
		ident, host, _ := strings.Cut(rest, "@")
		u.Ident = ident
		u.Host = host
	}
	return u
}
