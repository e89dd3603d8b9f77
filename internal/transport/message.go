// SPDX-License-Identifier: MIT

package transport

import (
	"fmt"
	"strings"

	"github.com/jesopo/lykos/internal/users"
)

// Message is one inbound chat line. The source is carried raw; the session
// resolves it to a *users.User on its own goroutine.
type Message struct {
	RawSource string
	Account   string
	Target    string
	Private   bool
	Text      string
}

// ParseLine parses "nick!ident@host[;account] target text". A target equal
// to botNick marks a private message.
func ParseLine(line, botNick string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	source, rest, ok := strings.Cut(line, " ")
	if !ok || source == "" {
		return Message{}, fmt.Errorf("transport: malformed line %q", line)
	}
	target, text, _ := strings.Cut(rest, " ")
	if target == "" {
		return Message{}, fmt.Errorf("transport: missing target in %q", line)
	}

	raw, account, _ := strings.Cut(source, ";")
	if users.ParseRawNick(raw).Nick == "" {
		return Message{}, fmt.Errorf("transport: missing nick in %q", line)
	}
	return Message{
		RawSource: raw,
		Account:   account,
		Target:    target,
		Private:   users.Fold(target) == users.Fold(botNick),
		Text:      text,
	}, nil
}

// FormatLine renders an outbound line the way the console prints it.
func FormatLine(target, text string) string {
	return target + " " + text
}
