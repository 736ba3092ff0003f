// Package notify posts end-of-sweep summaries to Slack via an incoming
// webhook. Delivery is best effort; the sweep result never depends on it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smohades/reachcheck/internal/scheduler"
)

type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil when no webhook is configured; a nil *Slack is a
// valid no-op receiver for SweepDone.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil || s.Webhook == "" {
		return nil
	}
	body, _ := json.Marshal(slackPayload{Text: "*" + title + "*\n" + text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.New("slack non-2xx")
	}
	return nil
}

// SweepDone formats and sends the closing summary for one sweep.
func (s *Slack) SweepDone(ctx context.Context, stats scheduler.Stats) error {
	text := fmt.Sprintf(
		"items=%d success=%d failure=%d errors=%d sources_completed=%d skipped=%d elapsed=%s",
		stats.Items, stats.Success, stats.Failure, stats.Errors,
		stats.CompletedSources, stats.Skipped, stats.Elapsed.Round(time.Second),
	)
	return s.Send(ctx, "Reachability sweep finished", text)
}
