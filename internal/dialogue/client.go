// Package dialogue talks to the remote dialogue service.
package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"sherpa/internal/locale"
	"sherpa/internal/metrics"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 1 << 20

// Client handles communication with the dialogue service. It keeps no
// conversation state; every call is one HTTP request.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL whose requests time out after timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a client using a caller supplied HTTP client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Send posts one message on behalf of userName and returns the reply.
func (c *Client) Send(ctx context.Context, message, userName string) (*Reply, error) {
	start := time.Now()
	defer func() {
		metrics.DialogueDuration.Observe(time.Since(start).Seconds())
	}()

	var body chatResponse
	if err := c.postJSON(ctx, "chat", "/api/chat/", ChatRequest{Message: message, UserName: userName}, &body); err != nil {
		return nil, err
	}
	if body.Reply == nil {
		metrics.DialogueRequests.WithLabelValues("decode").Inc()
		return nil, &TransportError{Op: "chat", Err: errors.New("response has no reply field")}
	}

	metrics.DialogueRequests.WithLabelValues("ok").Inc()

	reply := &Reply{Text: *body.Reply}
	if lang, ok := locale.Parse(body.Lang); ok {
		reply.Lang = lang
	} else if body.Lang != "" {
		log.Debug().Str("lang", body.Lang).Msg("Ignoring unsupported reply language")
	}

	log.Debug().
		Int("reply_length", len(reply.Text)).
		Str("lang", string(reply.Lang)).
		Dur("latency", time.Since(start)).
		Msg("Dialogue reply received")

	return reply, nil
}

// SubmitContact posts the auxiliary contact form.
func (c *Client) SubmitContact(ctx context.Context, form ContactForm) error {
	var body contactResponse
	err := c.postJSON(ctx, "contact", "/api/contact/", form, &body)

	var terr *TransportError
	switch {
	case err == nil:
		metrics.ContactSubmissions.WithLabelValues("ok").Inc()
		return nil
	case errors.As(err, &terr) && terr.StatusCode != 0:
		metrics.ContactSubmissions.WithLabelValues("rejected").Inc()
	default:
		metrics.ContactSubmissions.WithLabelValues("failed").Inc()
	}
	return err
}

// HealthCheck verifies that the dialogue host is reachable. Any response
// below 500 counts as healthy since the service root has no route of its own.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return &TransportError{Op: "health", Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "health", Err: fmt.Errorf("dialogue service unreachable at %s: %w", c.baseURL, err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode >= http.StatusInternalServerError {
		return &TransportError{Op: "health", StatusCode: resp.StatusCode, Err: errors.New("service unhealthy")}
	}
	return nil
}

// postJSON sends payload and decodes a 2xx JSON answer into out. Every
// failure comes back as a *TransportError.
func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if op == "chat" {
			metrics.DialogueRequests.WithLabelValues("network").Inc()
		}
		return &TransportError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if op == "chat" {
			metrics.DialogueRequests.WithLabelValues("network").Inc()
		}
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if op == "chat" {
			metrics.DialogueRequests.WithLabelValues("status").Inc()
		}
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(statusDetail(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		if op == "chat" {
			metrics.DialogueRequests.WithLabelValues("decode").Inc()
		}
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// statusDetail extracts the service's error message, falling back to the
// raw (truncated) body.
func statusDetail(body []byte) string {
	var parsed contactResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "empty response"
	}
	return text
}
