package protocol

import "time"

// Mode selects the orchestration behavior for a turn.
const (
	ModeChat  = "chat"
	ModeAgent = "agent"
)

// Agent-mode stages.
const (
	StageHIL      = "hil"
	StageResearch = "research"
)

// ThinkingStep is one observed tool invocation, emitted for UI display.
type ThinkingStep struct {
	Step      int                    `json:"step"`
	Tool      string                 `json:"tool"`
	Input     map[string]interface{} `json:"input"`
	Output    string                 `json:"output"`
	Success   bool                   `json:"success"`
	Timestamp string                 `json:"timestamp"`
	Thinking  string                 `json:"thinking,omitempty"`
	URLs      []string               `json:"urls,omitempty"`
	HasCode   bool                   `json:"has_code"`
	HasImage  bool                   `json:"has_image"`
}

// Source is a citation target produced by the web-search tool.
// Indices are 1-based and dense within a single response.
type Source struct {
	Idx       int    `json:"idx"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet,omitempty"`
	Age       string `json:"age,omitempty"`
	CachePath string `json:"cache_path,omitempty"`
}

// Artifact is a self-contained HTML document produced in Agent/Research mode.
type Artifact struct {
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	HTMLContent string  `json:"html_content"`
	FilePath    string  `json:"file_path"`
	FileSizeKB  float64 `json:"file_size_kb"`
}

// ChatResponse is the envelope closing each turn.
type ChatResponse struct {
	ResponseID       string         `json:"response_id"`
	SessionID        string         `json:"session_id"`
	UserID           string         `json:"user_id"`
	UserMessage      string         `json:"user_message"`
	AssistantMessage string         `json:"assistant_message"`
	Mode             string         `json:"mode"`
	ThinkingSteps    []ThinkingStep `json:"thinking_steps,omitempty"`
	UsedTools        bool           `json:"used_tools"`
	HasCode          bool           `json:"has_code"`
	HasWebResults    bool           `json:"has_web_results"`
	TotalTimeMS      int64          `json:"total_time_ms"`
	ModelUsed        string         `json:"model_used"`
	Temperature      float64        `json:"temperature"`
	Timestamp        string         `json:"timestamp"`
	PromptTokens     int            `json:"prompt_tokens,omitempty"`
	Sources          []Source       `json:"sources,omitempty"`
	Artifact         *Artifact      `json:"artifact,omitempty"`
	Stage            string         `json:"stage,omitempty"`
}

// ChatRequest is a turn submission from a caller.
type ChatRequest struct {
	Message       string   `json:"message"`
	SessionID     string   `json:"session_id,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
}

// SessionSummary is a lightweight session record for history sidebars.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	DisplayName  string    `json:"display_name,omitempty"`
	FirstMessage string    `json:"first_message,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RFC-3339 UTC with second precision, used for all persisted timestamps.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
