package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/verina/internal/msglog"
	"github.com/nextlevelbuilder/verina/internal/providers"
	"github.com/nextlevelbuilder/verina/internal/tools"
)

const compactionMaxIterations = 10

const compactionAgentPrompt = `You are a conversation context compressor agent. Your job: compress old conversation history into a structured summary that allows the main agent to resume seamlessly.

<your_task>
You will be given old conversation messages to compress. Your goal is to extract and organize critical information into 5 structured sections using XML tags.

You can use tools to help you understand the context better (e.g., read workspace files to see what's been created).
</your_task>

<available_tools>
You have ONE tool available: file_read

**file_read(filename: str)**
- Reads a file from the workspace
- Parameter: filename - relative path to the file (e.g., "progress.md", "cache/article_name.md")
- Returns: File content as text

**When to use file_read**:
- You see file paths mentioned in the conversation
- You need to understand what's in progress.md, notes.md, or draft.md
- You want to check cached articles to better summarize findings

**ReAct workflow**:
1. Review conversation messages
2. If you need more context → call file_read tool(s)
3. After tool results, go back to step 1
4. When you have enough information → output your final answer

**Final answer**:
When you're ready to provide the summary, simply output your answer directly (without calling any tools):
- First: <scratchpad> with your analysis
- Then: 5 XML sections (overall_goal, file_system_state, key_knowledge, recent_actions, current_plan)

The absence of tool calls signals you're providing the final result.
</available_tools>

<thinking_process>
Before generating the final summary, use a private scratchpad to organize your thoughts:

1. **Scratchpad (private thinking space)**:
   - Wrap your analysis in <scratchpad>...</scratchpad>
   - Review the entire conversation history
   - Identify: user's goal, agent's strategy, tool outputs, file changes, unresolved issues
   - This is for YOUR thinking - be thorough and honest
   - Note: "private" means you can think freely without worrying about format

2. **Final Summary**:
   - After scratchpad, output the structured 5-section summary
   - The summary is what the main agent will see
</thinking_process>

<output_format>
Your complete output should be:

<scratchpad>
[Your private analysis here - review history, identify patterns, note key information]
</scratchpad>

Then output exactly 5 XML sections:

<overall_goal>
Extract from user's initial request. One clear sentence. What is the ultimate objective?
Example: "Compare top 5 production LLMs on cost, performance, and streaming support for $500/month budget"
</overall_goal>

<file_system_state>
ALL file operations with CREATED/MODIFIED/READ prefixes. Include what each file contains and navigation hints.
Format:
- CREATED: cache/article.md - Brief description of content
- MODIFIED: notes.md - What changed
- READ: progress.md - Key discovery from reading
- HINT: Where to find specific information
- STATUS: Overall workspace state
Preserve exact file paths. Map information locations.
</file_system_state>

<key_knowledge>
Hard facts, research insights, reasoning takeaways:
- Specific data points with numbers and units
- URLs, API endpoints, technical specs
- Discoveries and patterns
- Constraints and requirements
- Strategic decisions made and why
Focus on facts that affect next steps.
</key_knowledge>

<recent_actions>
Last 5-10 tool executions with FULL DETAILS:
- tool_name(exact_parameters) → specific_result
- Include: file paths, data extracted, errors
- Be comprehensive: agent resumes from here
</recent_actions>

<current_plan>
Next immediate steps and continuation strategy:
- Numbered action items
- Pending decisions or questions
- Overall strategy for continuation
</current_plan>
</output_format>

<critical_rules>
1. Use file_read if you need context, but not all files may be needed
2. Focus on FACTS and RESULTS in the conversation, not process descriptions
3. Be comprehensive in recent_actions - include full tool parameters and results
4. Preserve ALL file paths exactly as mentioned
5. Include specific numbers, URLs, data points
6. When ready to summarize: output final answer WITHOUT calling any tools
</critical_rules>

You are autonomous - decide what information you need and how to extract it.`

const compactionInstruction = "Summarize the above conversation using the 5-section XML format. Use file_read if needed."

const compactionConfirmFallback = "I understand the previous work and will continue from here."

const compactionContinue = "Good. Please continue your work."

func compactionSummaryMessage(summary string) string {
	return fmt.Sprintf("📋 **[Context Summary - Previous Conversation]**\n\n%s\n\n---\nPlease review the above summary and confirm your understanding of previous work.", summary)
}

// Compact shrinks the transcript by replacing everything between the
// system prompt and the Kth-most-recent user message with a structured
// summary, produced by a nested summarizer agent that can read the
// workspace. Returns the number of messages summarized away; zero means
// the transcript was already compact.
func (e *Engine) Compact(ctx context.Context) (int, error) {
	msgs := e.log.Messages
	if len(msgs) <= 3 {
		return 0, nil
	}

	systemEnd := 0
	for systemEnd < len(msgs) && msgs[systemEnd].Role == "system" {
		systemEnd++
	}

	keep := e.cfg.Context.KeepRecentUserMessages
	split := -1
	userCount := 0
	for i := len(msgs) - 1; i >= systemEnd; i-- {
		if msgs[i].Role == "user" {
			userCount++
			if userCount == keep {
				split = i
				break
			}
		}
	}
	if split < 0 || split <= systemEnd {
		return 0, nil
	}

	old := msgs[systemEnd:split]
	recent := msgs[split:]
	slog.Info("compacting transcript",
		"session", e.sessionID, "old", len(old), "recent", len(recent))

	summary, err := e.summarizeOld(ctx, old)
	if err != nil {
		return 0, err
	}

	summaryMsg := msglog.User(compactionSummaryMessage(summary))
	confirmation := e.confirmSummary(ctx, msgs[:systemEnd], summaryMsg)

	rebuilt := make([]msglog.Message, 0, systemEnd+len(recent)+3)
	rebuilt = append(rebuilt, msgs[:systemEnd]...)
	rebuilt = append(rebuilt, summaryMsg, msglog.Assistant(confirmation))
	rebuilt = append(rebuilt, recent...)
	rebuilt = append(rebuilt, msglog.User(compactionContinue))

	e.log.Reset(rebuilt)
	if err := e.log.Save(); err != nil {
		return 0, err
	}
	slog.Info("compaction complete",
		"session", e.sessionID, "before", len(msgs), "after", len(rebuilt))
	return len(old), nil
}

// summarizeOld runs the nested compaction agent over the old span.
// The agent may call file_read against the agent workspace before
// producing the summary.
func (e *Engine) summarizeOld(ctx context.Context, old []msglog.Message) (string, error) {
	fileRead := tools.NewFileReadTool(e.agentWS)
	defs := []providers.ToolDefinition{{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        fileRead.Name(),
			Description: fileRead.Description(),
			Parameters:  fileRead.Parameters(),
		},
	}}

	conv := make([]providers.Message, 0, len(old)+2)
	conv = append(conv, providers.Message{Role: "system", Content: compactionAgentPrompt})
	conv = append(conv, msglog.ToProvider(old)...)
	conv = append(conv, providers.Message{Role: "user", Content: compactionInstruction})

	for iteration := 0; iteration < compactionMaxIterations; iteration++ {
		resp, err := e.provider.Chat(ctx, providers.ChatRequest{
			Messages: conv,
			Tools:    defs,
			Model:    e.cfg.Models.Compaction,
			Options:  map[string]interface{}{providers.OptTemperature: 0.2},
		})
		if err != nil {
			return "", fmt.Errorf("compaction agent: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				return "", fmt.Errorf("compaction agent returned an empty summary")
			}
			return resp.Content, nil
		}

		conv = append(conv, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			var result string
			if tc.Name == fileRead.Name() {
				var args map[string]interface{}
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					result = fmt.Sprintf("Failed to parse tool arguments: %v", err)
				} else {
					result = fileRead.Execute(ctx, args).ForLLM
				}
			} else {
				result = fmt.Sprintf("Unknown tool: %s", tc.Name)
			}
			conv = append(conv, providers.Message{Role: "tool", Content: result, ToolCallID: tc.ID})
		}
	}
	return "", fmt.Errorf("compaction agent exceeded %d iterations without a summary", compactionMaxIterations)
}

// confirmSummary asks the main model to acknowledge the summary so the
// rebuilt transcript reads as a natural hand-off.
func (e *Engine) confirmSummary(ctx context.Context, system []msglog.Message, summary msglog.Message) string {
	conv := append(msglog.ToProvider(system), msglog.ToProvider([]msglog.Message{summary})...)
	resp, err := e.provider.Chat(ctx, providers.ChatRequest{
		Messages: conv,
		Model:    e.cfg.Models.Compaction,
		Options:  map[string]interface{}{providers.OptTemperature: 0.2},
	})
	if err != nil || resp.Content == "" {
		if err != nil {
			slog.Warn("summary confirmation failed, using fallback", "session", e.sessionID, "error", err)
		}
		return compactionConfirmFallback
	}
	return resp.Content
}
