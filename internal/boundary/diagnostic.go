// SPDX-License-Identifier: MIT

package boundary

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

const maxFrames = 64

// Frame is one call frame of a failure.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s\n\t%s:%d", f.Function, f.File, f.Line)
}

const selfPrefix = "github.com/jesopo/lykos/internal/boundary."

// captureFrames records the stack of the calling goroutine. Called from a
// deferred recover it still sees the panicking frames.
func captureFrames() []Frame {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var out []Frame
	for {
		fr, more := frames.Next()
		if !skipFrame(fr.Function) {
			out = append(out, Frame{Function: fr.Function, File: fr.File, Line: fr.Line})
		}
		if !more {
			break
		}
	}
	return out
}

func skipFrame(fn string) bool {
	if strings.HasPrefix(fn, "runtime.") {
		return true
	}
	return strings.HasPrefix(fn, selfPrefix+"(*Boundary).") || fn == selfPrefix+"captureFrames"
}

// Diagnostic renders the failure with the given locals verbosity.
func (f *Failure) Diagnostic(verbosity int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Behavior failure in %s\n", f.Innermost())
	if f.Recovered {
		fmt.Fprintf(&sb, "panic: %s\n", f.ValueString())
	} else {
		fmt.Fprintf(&sb, "error: %s\n", f.ValueString())
	}
	if len(f.Sites) > 1 {
		sb.WriteString("Guarded calls (most recent call last):\n")
		for _, s := range f.Sites {
			fmt.Fprintf(&sb, "  %s\n", s)
		}
	}
	sb.WriteString("Call frames (most recent call first):\n")
	for _, fr := range f.Frames {
		fmt.Fprintf(&sb, "%s\n", fr)
	}

	if verbosity > 0 {
		sb.WriteString("\n")
		sb.WriteString(f.locals(verbosity))
	}
	return sb.String()
}

func (f *Failure) locals(verbosity int) string {
	var sb strings.Builder
	sites := f.Sites
	if verbosity < 2 && len(sites) > 0 {
		sites = sites[len(sites)-1:]
	}

	found := false
	for i, s := range sites {
		if len(s.Locals) == 0 {
			continue
		}
		if !found && verbosity > 1 {
			sb.WriteString("Local variables in all frames (most recent call last):\n")
		}
		found = true
		if verbosity > 1 {
			fmt.Fprintf(&sb, "Local variables from frame #%d (in %s):\n", i+1, s)
		} else {
			fmt.Fprintf(&sb, "Local variables from innermost frame (in %s):\n", s)
		}
		writeLocals(&sb, s.Locals)
	}
	if !found {
		return "No local variables found in all frames.\n"
	}
	return sb.String()
}

func writeLocals(sb *strings.Builder, locals map[string]any) {
	keys := make([]string, 0, len(locals))
	for k := range locals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, "%s = %s\n", k, renderValue(locals[k]))
	}
}

func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%v", t)
	}
}
