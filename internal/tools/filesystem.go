package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/verina/internal/workspace"
)

// File tools confined to a session workspace. Paths are
// workspace-relative; anything resolving outside the root is rejected.

type FileReadTool struct {
	ws *workspace.Workspace
}

func NewFileReadTool(ws *workspace.Workspace) *FileReadTool { return &FileReadTool{ws: ws} }

func (t *FileReadTool) Name() string { return "file_read" }

func (t *FileReadTool) Description() string {
	return "Read a file from the workspace, e.g. cached articles under cache/ or your notes."
}

func (t *FileReadTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "Workspace-relative path to read",
			},
		},
		"required": []string{"filename"},
	}
}

func (t *FileReadTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["filename"].(string)
	if path == "" {
		return ErrorResult("filename is required")
	}
	content, err := t.ws.Read(path)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Failed to read %s: %v", path, err)).WithError(err)
	}
	return SilentResult(content)
}

type FileWriteTool struct {
	ws *workspace.Workspace
}

func NewFileWriteTool(ws *workspace.Workspace) *FileWriteTool { return &FileWriteTool{ws: ws} }

func (t *FileWriteTool) Name() string { return "file_write" }

func (t *FileWriteTool) Description() string {
	return "Write a file in the workspace. Overwrites by default; set append to add to the end."
}

func (t *FileWriteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "Workspace-relative path to write",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to write",
			},
			"append": map[string]interface{}{
				"type":        "boolean",
				"description": "Append instead of overwrite",
			},
		},
		"required": []string{"filename", "content"},
	}
}

func (t *FileWriteTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["filename"].(string)
	if path == "" {
		return ErrorResult("filename is required")
	}
	content, _ := args["content"].(string)
	appendMode, _ := args["append"].(bool)

	if err := t.ws.Write(path, content, appendMode); err != nil {
		return ErrorResult(fmt.Sprintf("Failed to write %s: %v", path, err)).WithError(err)
	}
	verb := "Wrote"
	if appendMode {
		verb = "Appended to"
	}
	return NewResult(fmt.Sprintf("%s %s (%d bytes)", verb, path, len(content)))
}

type FileListTool struct {
	ws *workspace.Workspace
}

func NewFileListTool(ws *workspace.Workspace) *FileListTool { return &FileListTool{ws: ws} }

func (t *FileListTool) Name() string { return "file_list" }

func (t *FileListTool) Description() string {
	return "List workspace files recursively with sizes."
}

func (t *FileListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list, default workspace root",
			},
		},
		"required": []string{},
	}
}

func (t *FileListTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	entries, err := t.ws.List(path)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Failed to list %s: %v", path, err)).WithError(err)
	}
	if len(entries) == 0 {
		return NewResult("(empty)")
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(&b, "%s/\n", e.Path)
		} else {
			fmt.Fprintf(&b, "%s (%d bytes)\n", e.Path, e.Size)
		}
	}
	return NewResult(strings.TrimSpace(b.String()))
}

type FileEditTool struct {
	ws *workspace.Workspace
}

func NewFileEditTool(ws *workspace.Workspace) *FileEditTool { return &FileEditTool{ws: ws} }

func (t *FileEditTool) Name() string { return "file_edit" }

func (t *FileEditTool) Description() string {
	return "Replace one exact occurrence of old_text with new_text in a workspace file. " +
		"Fails if the text is missing or matches more than once."
}

func (t *FileEditTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "Workspace-relative path to edit",
			},
			"old_text": map[string]interface{}{
				"type":        "string",
				"description": "Exact text to replace, must match exactly once",
			},
			"new_text": map[string]interface{}{
				"type":        "string",
				"description": "Replacement text",
			},
		},
		"required": []string{"filename", "old_text", "new_text"},
	}
}

func (t *FileEditTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	path, _ := args["filename"].(string)
	oldText, _ := args["old_text"].(string)
	newText, _ := args["new_text"].(string)
	if path == "" || oldText == "" {
		return ErrorResult("filename and old_text are required")
	}
	if err := t.ws.Edit(path, oldText, newText); err != nil {
		return ErrorResult(fmt.Sprintf("Failed to edit %s: %v", path, err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("Edited %s", path))
}
