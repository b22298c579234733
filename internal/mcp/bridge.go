package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/verina/internal/tools"
)

// BridgeTool adapts one remote MCP tool to the local tool contract.
// It is exposed to the model as mcp_<server>_<tool>.
type BridgeTool struct {
	serverName string
	tool       mcpgo.Tool
	client     *mcpclient.Client
	timeout    time.Duration
	connected  *atomic.Bool
}

func NewBridgeTool(serverName string, tool mcpgo.Tool, client *mcpclient.Client, timeoutSec int, connected *atomic.Bool) *BridgeTool {
	return &BridgeTool{
		serverName: serverName,
		tool:       tool,
		client:     client,
		timeout:    time.Duration(timeoutSec) * time.Second,
		connected:  connected,
	}
}

func (t *BridgeTool) Name() string {
	return fmt.Sprintf("mcp_%s_%s", t.serverName, t.tool.Name)
}

// OriginalName returns the tool name as the server advertises it.
func (t *BridgeTool) OriginalName() string { return t.tool.Name }

func (t *BridgeTool) Description() string {
	if t.tool.Description != "" {
		return t.tool.Description
	}
	return fmt.Sprintf("Tool %s from MCP server %s", t.tool.Name, t.serverName)
}

func (t *BridgeTool) Parameters() map[string]interface{} {
	// The server's schema is authoritative; round-trip through JSON to
	// get the generic map shape the registry publishes.
	data, err := json.Marshal(t.tool.InputSchema)
	if err != nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	var params map[string]interface{}
	if err := json.Unmarshal(data, &params); err != nil || params == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return params
}

func (t *BridgeTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	if !t.connected.Load() {
		return tools.ErrorResult(fmt.Sprintf("Tool '%s' not found: server %s is disconnected", t.Name(), t.serverName))
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req := mcpgo.CallToolRequest{}
	req.Params.Name = t.tool.Name
	req.Params.Arguments = args

	result, err := t.client.CallTool(ctx, req)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("Tool execution failed: %v", err)).WithError(err)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "unknown error"
		}
		return tools.ErrorResult("Tool execution failed: " + text)
	}
	if text == "" {
		text = "(no output)"
	}
	return tools.NewResult(text)
}

func flattenContent(content []mcpgo.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
