package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/verina/internal/tools"
)

func TestExtractArtifact(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantHTML  string
		wantProse string
		wantOK    bool
	}{
		{
			name:      "fenced block",
			text:      "Overview text.\n\n```html\n<!DOCTYPE html>\n<html></html>\n```",
			wantHTML:  "<!DOCTYPE html>\n<html></html>",
			wantProse: "Overview text.",
			wantOK:    true,
		},
		{
			name:      "bare document",
			text:      "Summary first.\n<!DOCTYPE html>\n<html><body></body></html>",
			wantHTML:  "<!DOCTYPE html>\n<html><body></body></html>",
			wantProse: "Summary first.",
			wantOK:    true,
		},
		{
			name:      "lowercase doctype",
			text:      "<!doctype html><html></html>",
			wantHTML:  "<!doctype html><html></html>",
			wantProse: "",
			wantOK:    true,
		},
		{
			name:   "no artifact",
			text:   "Just a markdown answer with `code`.",
			wantOK: false,
		},
		{
			name:   "doctype without closing tag",
			text:   "<!DOCTYPE html><html>",
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, prose, ok := extractArtifact(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if html != tt.wantHTML {
				t.Errorf("html = %q, want %q", html, tt.wantHTML)
			}
			if prose != tt.wantProse {
				t.Errorf("prose = %q, want %q", prose, tt.wantProse)
			}
		})
	}
}

func TestArtifactTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"plain h1", "<html><h1>Quantum Computing</h1></html>", "Quantum Computing"},
		{"h1 with attributes and markup", `<h1 class="t">The <em>Big</em> Picture</h1>`, "The Big Picture"},
		{"no h1 falls back", "<html><h2>sub</h2></html>", "Research Report"},
		{"empty h1 falls back", "<h1></h1>", "Research Report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := artifactTitle(tt.html); got != tt.want {
				t.Errorf("artifactTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildStepClassification(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		tool        string
		output      string
		wantSuccess bool
		wantImage   bool
	}{
		{"normal output", "web_search", "Search results for...", true, false},
		{"execution failure", "execute_python", "Tool execution failed:\nboom", false, false},
		{"parse failure", "file_read", "Failed to parse tool arguments: x", false, false},
		{"unknown tool", "x", "Tool 'x' not found", false, false},
		{"plot output", "execute_python", "Generated files:\nanalysis/images/plot_001.png\n[image: plot generated]", true, true},
		{"image mention outside sandbox", "web_search", "Search results for image compression...", true, false},
		{"image mention in file read", "file_read", "The plot shows revenue growth.", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := buildStep(1, tt.tool, map[string]interface{}{}, &tools.Result{ForLLM: tt.output}, "", now)
			if step.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", step.Success, tt.wantSuccess)
			}
			if step.HasImage != tt.wantImage {
				t.Errorf("HasImage = %v, want %v", step.HasImage, tt.wantImage)
			}
			if (tt.tool == "execute_python") != step.HasCode {
				t.Errorf("HasCode = %v for tool %q", step.HasCode, tt.tool)
			}
		})
	}
}

func TestStepURLs(t *testing.T) {
	// A single url argument wins over the urls list.
	args := map[string]interface{}{
		"url":  "https://a.example",
		"urls": []interface{}{"https://b.example", "https://c.example"},
	}
	got := stepURLs("web_search", args)
	if strings.Join(got, ",") != "https://a.example" {
		t.Errorf("urls = %v, want single url argument", got)
	}

	got = stepURLs("web_search", map[string]interface{}{
		"urls": []interface{}{"https://b.example", "https://c.example"},
	})
	want := []string{"https://b.example", "https://c.example"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("urls = %v, want %v", got, want)
	}

	if got := stepURLs("web_search", map[string]interface{}{"query": "go release"}); got != nil {
		t.Errorf("query-only search produced urls %v", got)
	}
	if got := stepURLs("file_read", args); got != nil {
		t.Errorf("non-search tool produced urls %v", got)
	}
}

func TestContextUsage(t *testing.T) {
	got := contextUsage(150000, 400000)
	want := `<context_usage tokens="150000" limit="400000" usage="37.5%" />`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSystemPromptDate(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	for _, mode := range []string{"chat", "agent"} {
		got := systemPrompt(mode, now)
		if !strings.Contains(got, "2026-08-24") {
			t.Errorf("%s prompt missing date", mode)
		}
		if strings.Contains(got, "{current_date}") {
			t.Errorf("%s prompt keeps placeholder", mode)
		}
	}
}

func TestBlogPromptFallbacks(t *testing.T) {
	got := blogPrompt("", "")
	if !strings.Contains(got, "(draft.md is empty)") || !strings.Contains(got, "(notes.md is empty)") {
		t.Error("empty materials not marked")
	}
	got = blogPrompt("draft body", "notes body")
	if !strings.Contains(got, "draft body") || !strings.Contains(got, "notes body") {
		t.Error("materials not embedded")
	}
	if !strings.Contains(got, "```html") {
		t.Error("output format instruction missing")
	}
}
