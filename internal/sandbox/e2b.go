// Package sandbox runs model-authored Python in an E2B cloud sandbox.
package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	apiBase  = "https://api.e2b.app"
	template = "code-interpreter-v1"
	// Port the code-interpreter template serves its execute endpoint on.
	executePort = 49999
)

// Execution is the outcome of one code run.
type Execution struct {
	Stdout  []string
	Stderr  []string
	Results []ExecutionResult
	Error   string // Python traceback text, empty on success
}

// ExecutionResult is one rich output from the interpreter. PNG, JPEG
// and PDF hold base64 bytes; SVG, HTML, Markdown and JSON are text.
type ExecutionResult struct {
	Text     string
	PNG      string
	JPEG     string
	SVG      string
	PDF      string
	HTML     string
	Markdown string
	JSON     string
}

// Session is a live interpreter that keeps state between executions.
type Session interface {
	Execute(ctx context.Context, code string) (*Execution, error)
	Close()
}

// Provider creates sandbox sessions. The tool layer creates one lazily
// per turn and reuses it across calls.
type Provider interface {
	NewSession(ctx context.Context) (Session, error)
}

// Client talks to the E2B control plane.
type Client struct {
	apiKey string
	base   string
	hostFn func(sandboxID string) string
	client *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		base:   apiBase,
		hostFn: func(id string) string {
			return fmt.Sprintf("https://%d-%s.e2b.app", executePort, id)
		},
		client: &http.Client{Timeout: 600 * time.Second},
	}
}

// WithEndpoints overrides API and sandbox hosts, used in tests.
func (c *Client) WithEndpoints(base string, hostFn func(string) string) *Client {
	c.base = strings.TrimRight(base, "/")
	c.hostFn = hostFn
	return c
}

type createSandboxRequest struct {
	TemplateID string `json:"templateID"`
	TimeoutSec int    `json:"timeout"`
}

type createSandboxResponse struct {
	SandboxID string `json:"sandboxID"`
}

// NewSession provisions a sandbox from the code-interpreter template.
func (c *Client) NewSession(ctx context.Context) (Session, error) {
	payload, _ := json.Marshal(createSandboxRequest{TemplateID: template, TimeoutSec: 600})
	req, err := http.NewRequestWithContext(ctx, "POST", c.base+"/sandboxes", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("e2b: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("e2b: create sandbox: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("e2b: create sandbox: http %d: %s", resp.StatusCode, string(body))
	}

	var out createSandboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("e2b: decode create response: %w", err)
	}
	return &session{client: c, id: out.SandboxID}, nil
}

type session struct {
	client *Client
	id     string
}

// executeEvent is one NDJSON line from the interpreter's execute stream.
type executeEvent struct {
	Type     string          `json:"type"` // "stdout", "stderr", "result", "error"
	Text     string          `json:"text,omitempty"`
	PNG      string          `json:"png,omitempty"`
	JPEG     string          `json:"jpeg,omitempty"`
	SVG      string          `json:"svg,omitempty"`
	PDF      string          `json:"pdf,omitempty"`
	HTML     string          `json:"html,omitempty"`
	Markdown string          `json:"markdown,omitempty"`
	JSON     json.RawMessage `json:"json,omitempty"`
	Name     string          `json:"name,omitempty"`
	// error events
	Value     string `json:"value,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

func (s *session) Execute(ctx context.Context, code string) (*Execution, error) {
	payload, _ := json.Marshal(map[string]string{"code": code})
	req, err := http.NewRequestWithContext(ctx, "POST", s.client.hostFn(s.id)+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("e2b: execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.client.apiKey)

	resp, err := s.client.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("e2b: execute: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("e2b: execute: http %d: %s", resp.StatusCode, string(body))
	}

	exec := &Execution{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev executeEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "stdout":
			exec.Stdout = append(exec.Stdout, ev.Text)
		case "stderr":
			exec.Stderr = append(exec.Stderr, ev.Text)
		case "result":
			exec.Results = append(exec.Results, ExecutionResult{
				Text:     ev.Text,
				PNG:      ev.PNG,
				JPEG:     ev.JPEG,
				SVG:      ev.SVG,
				PDF:      ev.PDF,
				HTML:     ev.HTML,
				Markdown: ev.Markdown,
				JSON:     string(ev.JSON),
			})
		case "error":
			if ev.Traceback != "" {
				exec.Error = ev.Traceback
			} else {
				exec.Error = fmt.Sprintf("%s: %s", ev.Name, ev.Value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("e2b: read execute stream: %w", err)
	}
	return exec, nil
}

func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "DELETE", s.client.base+"/sandboxes/"+s.id, nil)
	if err != nil {
		return
	}
	req.Header.Set("X-API-Key", s.client.apiKey)
	if resp, err := s.client.client.Do(req); err == nil {
		resp.Body.Close()
	}
}

// Render flattens an execution into the text shown to the model.
// Plot outputs are described rather than inlined.
func (e *Execution) Render() string {
	var b strings.Builder
	if len(e.Stdout) > 0 {
		b.WriteString(strings.Join(e.Stdout, ""))
	}
	for _, r := range e.Results {
		if r.PNG != "" || r.JPEG != "" || r.SVG != "" {
			b.WriteString("\n[image: plot generated]")
		} else if r.Text != "" {
			b.WriteString("\n")
			b.WriteString(r.Text)
		}
	}
	if len(e.Stderr) > 0 {
		b.WriteString("\nstderr:\n")
		b.WriteString(strings.Join(e.Stderr, ""))
	}
	if e.Error != "" {
		b.WriteString("\nError:\n")
		b.WriteString(e.Error)
	}
	return strings.TrimSpace(b.String())
}

// Failed reports whether the run raised an exception.
func (e *Execution) Failed() bool { return e.Error != "" }
