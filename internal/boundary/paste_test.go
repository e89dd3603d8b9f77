// SPDX-License-Identifier: MIT

package boundary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasteReporterPostsForm(t *testing.T) {
	var gotPath, gotAccept, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		assert.NoError(t, r.ParseForm())
		gotBody = r.PostForm.Get("c")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://paste.example/Xy","uuid":"u-1"}`))
	}))
	defer srv.Close()

	p := NewPasteReporter(srv.URL+"/", "[lykos]", time.Second)
	link, err := p.Report(context.Background(), "diagnostic text")
	require.NoError(t, err)

	assert.Equal(t, Link{URL: "https://paste.example/Xy", ID: "u-1"}, link)
	assert.True(t, strings.HasPrefix(gotPath, "/~lykos-error-"), gotPath)
	assert.Len(t, strings.TrimPrefix(gotPath, "/~lykos-error-"), 8)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "diagnostic text", gotBody)
}

func TestPasteReporterErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewPasteReporter(srv.URL, "lykos", time.Second).Report(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestPasteReporterRejectsEmptyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"uuid":"u-1"}`))
	}))
	defer srv.Close()

	_, err := NewPasteReporter(srv.URL, "lykos", time.Second).Report(context.Background(), "x")
	require.Error(t, err)
}

func TestPasteBotID(t *testing.T) {
	assert.Equal(t, "lykos-x", pasteBotID("[lykos]|x"))
	assert.Equal(t, "wolf-bot", pasteBotID("wolf--bot"))
	assert.Equal(t, "plain", pasteBotID("plain"))
}

type countingBreaker struct {
	calls int
	open  bool
}

func (b *countingBreaker) Execute(fn func() error) error {
	b.calls++
	if b.open {
		return assert.AnError
	}
	return fn()
}

func TestGuardedReporter(t *testing.T) {
	inner := &fakeReporter{link: Link{URL: "https://paste/x"}}
	br := &countingBreaker{}
	g := GuardedReporter{Reporter: inner, Breaker: br}

	link, err := g.Report(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "https://paste/x", link.URL)

	br.open = true
	_, err = g.Report(context.Background(), "y")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, inner.count())
	assert.Equal(t, 2, br.calls)
}
