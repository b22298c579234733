package agent

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nextlevelbuilder/verina/internal/msglog"
	"github.com/nextlevelbuilder/verina/internal/providers"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

// finalize runs the answer phase after stop_answer: one streaming model
// call without tools, artifact extraction in Research, then the
// complete envelope.
func (t *turn) finalize(ctx context.Context, prompt string) (*protocol.ChatResponse, error) {
	e := t.e
	e.log.Append(msglog.User(prompt))
	if err := e.log.Save(); err != nil {
		slog.Warn("transcript save failed", "session", e.sessionID, "error", err)
	}

	resp, err := e.provider.ChatStream(ctx, providers.ChatRequest{
		Messages: msglog.ToProvider(e.log.Messages),
		Model:    e.model(t.mode),
		Options:  map[string]interface{}{providers.OptTemperature: t.temperature()},
	}, func(chunk providers.StreamChunk) {
		if chunk.Content != "" {
			t.emit(protocol.Chunk(chunk.Content))
		}
	})
	if err != nil {
		return nil, err
	}

	e.log.Append(msglog.Assistant(resp.Content))
	if err := e.log.Save(); err != nil {
		slog.Warn("transcript save failed", "session", e.sessionID, "error", err)
	}

	assistantMessage := resp.Content
	var artifact *protocol.Artifact
	if t.mode == protocol.ModeAgent && e.stage == protocol.StageResearch {
		if html, prose, ok := extractArtifact(resp.Content); ok {
			if err := t.ws.Write("artifact.html", html, false); err != nil {
				slog.Warn("artifact write failed", "session", e.sessionID, "error", err)
			}
			artifact = &protocol.Artifact{
				Type:        "html_blog",
				Title:       artifactTitle(html),
				HTMLContent: html,
				FilePath:    filepath.Join(t.ws.Dir(), "artifact.html"),
				FileSizeKB:  float64(len(html)) / 1024,
			}
			assistantMessage = prose
			if assistantMessage == "" {
				assistantMessage = researchCompletedMessage
			}
		}
	}

	return t.complete(assistantMessage, artifact), nil
}

// complete builds the turn envelope and emits the terminal event.
func (t *turn) complete(assistantMessage string, artifact *protocol.Artifact) *protocol.ChatResponse {
	e := t.e
	now := time.Now()
	resp := &protocol.ChatResponse{
		ResponseID:       newResponseID(now),
		SessionID:        e.sessionID,
		UserID:           "default",
		UserMessage:      t.req.Message,
		AssistantMessage: assistantMessage,
		Mode:             t.mode,
		ThinkingSteps:    t.steps,
		UsedTools:        len(t.steps) > 0,
		HasCode:          t.toolsUsed["execute_python"],
		HasWebResults:    t.toolsUsed["web_search"],
		TotalTimeMS:      now.Sub(t.start).Milliseconds(),
		ModelUsed:        e.model(t.mode),
		Temperature:      t.temperature(),
		Timestamp:        protocol.Timestamp(now),
		PromptTokens:     t.promptTokens,
		Sources:          t.tracker.List(),
		Artifact:         artifact,
	}
	if t.mode == protocol.ModeAgent {
		resp.Stage = e.stage
	}
	t.emit(protocol.Complete(resp))
	return resp
}

var (
	htmlFenceRe = regexp.MustCompile("(?s)```html\\s*\\n(.*?)```")
	h1Re        = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
)

// extractArtifact pulls a self-contained HTML document out of the final
// answer. A fenced html code block wins; otherwise a bare document
// delimited by <!DOCTYPE html> ... </html> is accepted. The returned
// prose is the text preceding the document.
func extractArtifact(text string) (html, prose string, ok bool) {
	if m := htmlFenceRe.FindStringSubmatchIndex(text); m != nil {
		html = strings.TrimSpace(text[m[2]:m[3]])
		prose = strings.TrimSpace(text[:m[0]])
		return html, prose, html != ""
	}

	lower := strings.ToLower(text)
	start := strings.Index(lower, "<!doctype html>")
	if start < 0 {
		return "", "", false
	}
	end := strings.LastIndex(lower, "</html>")
	if end < start {
		return "", "", false
	}
	html = strings.TrimSpace(text[start : end+len("</html>")])
	prose = strings.TrimSpace(text[:start])
	return html, prose, true
}

// artifactTitle pulls the first h1 heading, stripped of markup.
func artifactTitle(html string) string {
	if m := h1Re.FindStringSubmatch(html); m != nil {
		title := strings.TrimSpace(tagRe.ReplaceAllString(m[1], ""))
		if title != "" {
			return title
		}
	}
	return defaultReportTitle
}
