package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/verina/internal/msglog"
	"github.com/nextlevelbuilder/verina/internal/providers"
)

// seedConversation fills the transcript with n user/assistant rounds
// after the system prompt.
func seedConversation(e *Engine, rounds int) {
	e.log.Append(msglog.System("sys"))
	for i := 0; i < rounds; i++ {
		e.log.Append(
			msglog.User(fmt.Sprintf("question %d", i)),
			msglog.Assistant(fmt.Sprintf("answer %d", i)),
		)
	}
}

func TestCompactRebuildsTranscript(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		textResponse("<overall_goal>compare databases</overall_goal>"),
		textResponse("Understood, I will continue from the summary."),
	}}
	e := newTestEngine(t, provider)
	seedConversation(e, 15)

	removed, err := e.Compact(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// 15 rounds, keep the 10 most recent user messages: rounds 0-4 are
	// summarized away.
	if removed != 10 {
		t.Errorf("removed = %d, want 10", removed)
	}

	msgs := e.log.Messages
	if msgs[0].Role != "system" || msgs[0].Text() != "sys" {
		t.Error("system prompt not preserved")
	}
	if !strings.HasPrefix(msgs[1].Text(), "📋 **[Context Summary - Previous Conversation]**") {
		t.Errorf("summary message = %q", msgs[1].Text())
	}
	if !strings.Contains(msgs[1].Text(), "compare databases") {
		t.Error("summary content missing")
	}
	if msgs[2].Role != "assistant" || msgs[2].Text() != "Understood, I will continue from the summary." {
		t.Errorf("confirmation = %+v", msgs[2])
	}
	if msgs[3].Text() != "question 5" {
		t.Errorf("recent span starts at %q, want question 5", msgs[3].Text())
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || last.Text() != "Good. Please continue your work." {
		t.Errorf("continue message = %+v", last)
	}

	// system + summary + confirmation + 10 recent rounds + continue.
	if want := 1 + 2 + 20 + 1; len(msgs) != want {
		t.Errorf("rebuilt length = %d, want %d", len(msgs), want)
	}
}

func TestCompactNoopWhenAlreadyCompact(t *testing.T) {
	provider := &scriptedProvider{}
	e := newTestEngine(t, provider)
	seedConversation(e, 5)

	removed, err := e.Compact(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if len(provider.requests) != 0 {
		t.Error("compaction called the model despite nothing to do")
	}
}

func TestCompactConfirmationFallback(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		textResponse("<overall_goal>goal</overall_goal>"),
		// Empty confirmation triggers the canned fallback.
		textResponse(""),
	}}
	e := newTestEngine(t, provider)
	seedConversation(e, 12)

	if _, err := e.Compact(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.log.Messages[2].Text() != compactionConfirmFallback {
		t.Errorf("confirmation = %q", e.log.Messages[2].Text())
	}
}
