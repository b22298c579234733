package agent

import (
	"strings"
	"time"

	"github.com/nextlevelbuilder/verina/internal/tools"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

// buildStep converts a tool execution into the step record emitted to
// observers. Success is derived from the output text so that bridged
// tools reporting failures in-band are classified the same way as
// local ones.
func buildStep(index int, name string, args map[string]interface{}, result *tools.Result, thinking string, now time.Time) protocol.ThinkingStep {
	output := result.ForLLM
	return protocol.ThinkingStep{
		Step:      index,
		Tool:      name,
		Input:     args,
		Output:    output,
		Success:   stepSuccess(output),
		Timestamp: protocol.Timestamp(now),
		Thinking:  thinking,
		URLs:      stepURLs(name, args),
		HasCode:   name == "execute_python",
		HasImage:  name == "execute_python" && stepHasImage(output),
	}
}

func stepSuccess(output string) bool {
	switch {
	case strings.HasPrefix(output, "Tool execution failed"),
		strings.HasPrefix(output, "Failed to"),
		strings.HasPrefix(output, "Tool '") && strings.Contains(output, "' not found"):
		return false
	}
	return true
}

func stepHasImage(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "image") || strings.Contains(lower, "plot")
}

// stepURLs collects URLs from web_search call arguments. A single
// "url" argument takes precedence over a "urls" list.
func stepURLs(name string, args map[string]interface{}) []string {
	if name != "web_search" {
		return nil
	}
	if u, ok := args["url"].(string); ok && u != "" {
		return []string{u}
	}
	var urls []string
	if list, ok := args["urls"].([]interface{}); ok {
		for _, v := range list {
			if u, ok := v.(string); ok && u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
