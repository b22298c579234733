package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/verina/internal/msglog"
	"github.com/nextlevelbuilder/verina/internal/providers"
	"github.com/nextlevelbuilder/verina/internal/workspace"
)

const assistantMaxIterations = 10

const assistantSystemPrompt = `You are a friendly research buddy - think of yourself as a helpful colleague who's here to chat and collaborate.

**You're here to help with:**
- Reading and analyzing files from the workspace
- Giving second opinions on research direction
- Answering questions about content you've read
- Reviewing drafts and providing feedback

**Available tools:**
- file_read: Read workspace files (progress.md, notes.md, draft.md, cache/*.md, etc.)

**How to interact:**
- Be conversational and approachable - no formality needed
- When asked about a file, just read it with file_read
- Give honest, helpful feedback
- Remember our conversation as we go
- Don't hesitate to ask clarifying questions if something's unclear

Remember: You're a collaborator, not a servant. Feel free to push back, ask questions, or suggest alternatives. The goal is to have a natural back-and-forth conversation about the research.
`

// ResearchAssistantTool runs a nested read-only agent with its own
// conversation memory under workspace/conversations/<conv_id>/. Its job
// is to keep heavy article reading out of the main context.
type ResearchAssistantTool struct {
	provider providers.Provider
	model    string
	ws       *workspace.Workspace
}

func NewResearchAssistantTool(provider providers.Provider, model string, ws *workspace.Workspace) *ResearchAssistantTool {
	return &ResearchAssistantTool{provider: provider, model: model, ws: ws}
}

func (t *ResearchAssistantTool) Name() string { return "research_assistant" }

func (t *ResearchAssistantTool) Description() string {
	return "Chat with a friendly research buddy who can read and analyze workspace files for you. " +
		"Great for: getting a second opinion on articles, comparing multiple sources, reviewing your drafts, " +
		"or just bouncing ideas around. The buddy remembers your conversation (via conv_id), " +
		"so you can have a natural back-and-forth discussion. No need to be formal - just ask like you'd ask a colleague!"
}

func (t *ResearchAssistantTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"question": map[string]interface{}{
				"type": "string",
				"description": "Your question or request for the research assistant. " +
					"Can ask to read files, analyze content, provide guidance, review work, etc.",
			},
			"conv_id": map[string]interface{}{
				"type": "string",
				"description": "Conversation ID to continue previous dialogue. " +
					"Omit to start new conversation. " +
					"Returns conv_id in response for subsequent calls.",
			},
		},
		"required": []string{"question"},
	}
}

func (t *ResearchAssistantTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	question, _ := args["question"].(string)
	if question == "" {
		return ErrorResult("question is required")
	}
	convID, _ := args["conv_id"].(string)

	log, convID, errResult := t.openConversation(convID)
	if errResult != nil {
		return errResult
	}
	log.Append(msglog.User(question))

	fileRead := NewFileReadTool(t.ws)
	defs := []providers.ToolDefinition{{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        fileRead.Name(),
			Description: fileRead.Description(),
			Parameters:  fileRead.Parameters(),
		},
	}}

	var answer string
	for iteration := 0; iteration < assistantMaxIterations; iteration++ {
		resp, err := t.provider.Chat(ctx, providers.ChatRequest{
			Messages: msglog.ToProvider(log.Messages),
			Tools:    defs,
			Model:    t.model,
			Options:  map[string]interface{}{providers.OptTemperature: 0.7},
		})
		if err != nil {
			slog.Error("research_assistant model call failed", "conv_id", convID, "error", err)
			return ErrorResult(fmt.Sprintf("Research assistant error: %v", err)).WithError(err)
		}

		if len(resp.ToolCalls) == 0 {
			log.Append(msglog.Assistant(resp.Content))
			answer = resp.Content
			break
		}

		log.Append(msglog.AssistantToolCalls(resp.Content, msglog.FromProviderCalls(resp.ToolCalls)))

		for _, tc := range resp.ToolCalls {
			var resultStr string
			if tc.Name == fileRead.Name() {
				var callArgs map[string]interface{}
				if err := json.Unmarshal([]byte(tc.Arguments), &callArgs); err != nil {
					resultStr = fmt.Sprintf("Failed to parse tool arguments: %v", err)
				} else {
					result := fileRead.Execute(ctx, callArgs)
					resultStr = result.ForLLM
				}
			} else {
				resultStr = fmt.Sprintf("Unknown tool: %s", tc.Name)
			}
			log.Append(msglog.Tool(tc.ID, resultStr))
		}
	}

	if err := log.Save(); err != nil {
		slog.Warn("research_assistant: save conversation failed", "conv_id", convID, "error", err)
	}

	if answer == "" {
		return ErrorResult(fmt.Sprintf("Research assistant ran out of iterations without an answer (conv_id: %s)", convID))
	}

	return SilentResult(fmt.Sprintf("%s\n\n(conv_id: %s, %d messages)", answer, convID, len(log.Messages)))
}

func (t *ResearchAssistantTool) openConversation(convID string) (*msglog.Log, string, *Result) {
	if convID != "" {
		resolved, err := t.ws.Resolve(filepath.Join("conversations", convID, "messages.json"))
		if err != nil {
			return nil, "", ErrorResult(fmt.Sprintf("Invalid conv_id: %v", err))
		}
		log, err := msglog.Open(resolved)
		if err != nil || len(log.Messages) == 0 {
			return nil, "", ErrorResult(fmt.Sprintf("Conversation %s not found. Omit conv_id to start new conversation.", convID))
		}
		return log, convID, nil
	}

	convID = "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	resolved, err := t.ws.Resolve(filepath.Join("conversations", convID, "messages.json"))
	if err != nil {
		return nil, "", ErrorResult(fmt.Sprintf("Failed to create conversation: %v", err))
	}
	log, err := msglog.Open(resolved)
	if err != nil {
		return nil, "", ErrorResult(fmt.Sprintf("Failed to create conversation: %v", err))
	}
	log.Append(msglog.System(assistantSystemPrompt))
	return log, convID, nil
}
