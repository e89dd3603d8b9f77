// SPDX-License-Identifier: MIT

package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxPasteResponse = 64 << 10

var (
	nonIDChars = regexp.MustCompile(`[^A-Za-z0-9-]`)
	dashRuns   = regexp.MustCompile(`--+`)
)

// PasteReporter uploads diagnostics to a paste service as a form field "c"
// and expects a JSON {url, uuid} reply.
type PasteReporter struct {
	BaseURL string
	BotNick string
	Client  *http.Client
}

// NewPasteReporter creates a reporter with its own bounded HTTP client.
func NewPasteReporter(baseURL, botNick string, timeout time.Duration) *PasteReporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PasteReporter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		BotNick: botNick,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type pasteResponse struct {
	URL  string `json:"url"`
	UUID string `json:"uuid"`
}

// Report implements Reporter.
func (p *PasteReporter) Report(ctx context.Context, text string) (Link, error) {
	endpoint := fmt.Sprintf("%s/~%s-error-%s", p.BaseURL, pasteBotID(p.BotNick), uuid.NewString()[:8])
	form := url.Values{"c": {text}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Link{}, fmt.Errorf("build paste request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return Link{}, fmt.Errorf("paste request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Link{}, fmt.Errorf("paste service returned %s", resp.Status)
	}

	var out pasteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPasteResponse)).Decode(&out); err != nil {
		return Link{}, fmt.Errorf("decode paste response: %w", err)
	}
	if out.URL == "" {
		return Link{}, fmt.Errorf("paste response carries no url")
	}
	return Link{URL: out.URL, ID: out.UUID}, nil
}

func pasteBotID(nick string) string {
	id := nonIDChars.ReplaceAllString(nick, "-")
	id = dashRuns.ReplaceAllString(id, "-")
	return strings.Trim(id, "-")
}
