// Package sink delivers matched-event notifications over HTTP. Sinks are
// registered as named dispatch actions; the matching core itself performs
// no I/O.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"
)

// EventPayload is the data passed to sinks.
type EventPayload struct {
	PredicateID string `json:"predicateId"`
	Network     string `json:"network,omitempty"`
	EventType   string `json:"eventType"`
	BlockHeight uint64 `json:"blockHeight"`
	BlockHash   string `json:"blockHash,omitempty"`
	TxHash      string `json:"txHash,omitempty"`
	EventHash   string `json:"eventHash,omitempty"`
	Amount      string `json:"amount,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, payload EventPayload) error
}

type httpSender struct {
	url     string
	method  string
	render  *template.Template
	client  *http.Client
	headers map[string]string
	// wrapText wraps the rendered message in a {"text": ...} body, the
	// shape Slack and Teams webhooks expect. Generic webhooks get the
	// structured payload with the rendered message alongside.
	wrapText bool
}

// NewWebhookSender builds a generic HTTP sink.
func NewWebhookSender(url, method, tmpl string, headers map[string]string) (Sender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url required")
	}
	if method == "" {
		method = http.MethodPost
	}
	t, err := parseTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	return &httpSender{
		url:     url,
		method:  strings.ToUpper(method),
		render:  t,
		client:  defaultClient(),
		headers: headers,
	}, nil
}

// NewSlackSender builds a Slack-compatible webhook sink.
func NewSlackSender(url, tmpl string) (Sender, error) {
	return newTextSender(url, tmpl)
}

// NewTeamsSender builds a Teams-compatible webhook sink. Teams accepts the
// same {text: "..."} payload shape as Slack.
func NewTeamsSender(url, tmpl string) (Sender, error) {
	return newTextSender(url, tmpl)
}

func newTextSender(url, tmpl string) (Sender, error) {
	sender, err := NewWebhookSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}
	sender.(*httpSender).wrapText = true
	return sender, nil
}

func (s *httpSender) Send(ctx context.Context, payload EventPayload) error {
	bodyStr, err := executeTemplate(s.render, payload)
	if err != nil {
		return err
	}

	var body any
	if s.wrapText {
		body = map[string]string{"text": bodyStr}
	} else {
		body = struct {
			EventPayload
			Message string `json:"message"`
		}{EventPayload: payload, Message: bodyStr}
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sink http status %d", resp.StatusCode)
	}
	return nil
}

func parseTemplate(tmpl string) (*template.Template, error) {
	if tmpl == "" {
		tmpl = "MATCH {{.PredicateID}} {{.EventType}} {{.TxHash}}"
	}
	funcs := template.FuncMap{
		"pretty_json": func(v any) string {
			out, _ := json.MarshalIndent(v, "", "  ")
			return string(out)
		},
		"short_addr": func(addr string) string {
			if len(addr) <= 10 {
				return addr
			}
			return addr[:6] + "..." + addr[len(addr)-4:]
		},
	}
	return template.New("msg").Funcs(funcs).Parse(tmpl)
}

func executeTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func defaultClient() *http.Client {
	return &http.Client{
		Timeout: 8 * time.Second,
	}
}
