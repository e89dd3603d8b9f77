// SPDX-License-Identifier: MIT

package access

import (
	"regexp"
	"strings"

	"github.com/jesopo/lykos/internal/users"
)

// Mask is a nick!ident@host glob where '*' matches any run of characters
// (including '/' and '.') and '?' matches exactly one. Matching is
// case-insensitive.
type Mask struct {
	pattern string
	re      *regexp.Regexp
}

// CompileMask parses pattern.
func CompileMask(pattern string) (Mask, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range users.Fold(pattern) {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return Mask{}, err
	}
	return Mask{pattern: pattern, re: re}, nil
}

// IsMask reports whether s looks like a hostmask rather than an account name.
func IsMask(s string) bool {
	return strings.ContainsAny(s, "!@")
}

// Match reports whether rawNick matches the mask.
func (m Mask) Match(rawNick string) bool {
	if m.re == nil {
		return false
	}
	return m.re.MatchString(users.Fold(rawNick))
}

func (m Mask) String() string { return m.pattern }
