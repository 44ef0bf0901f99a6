package util

import (
	"strings"
	"testing"
)

func render(t *testing.T, tmpl string, data map[string]interface{}) (string, error) {
	t.Helper()
	parsed, err := ParseTemplate("prompt", tmpl)
	if err != nil {
		return "", err
	}
	return ExecuteTemplate(parsed, data)
}

func TestExecuteTemplate_Basic(t *testing.T) {
	tmpl := "Word: {{.front_text}}\nCurrent back: {{.back_text}}"
	data := map[string]interface{}{
		"front_text": "serendipity",
		"back_text":  "意外发现",
	}

	result, err := render(t, tmpl, data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := "Word: serendipity\nCurrent back: 意外发现"
	if result != expected {
		t.Errorf("Expected '%s', got '%s'", expected, result)
	}
}

func TestExecuteTemplate_MissingKey(t *testing.T) {
	_, err := render(t, "Word: {{.word}}", map[string]interface{}{"front_text": "x"})
	if err == nil {
		t.Fatal("Expected error for missing key, got nil")
	}
	if !strings.Contains(err.Error(), "failed to execute template") {
		t.Errorf("Expected execute error, got: %v", err)
	}
}

func TestParseTemplate_InvalidSyntax(t *testing.T) {
	_, err := ParseTemplate("prompt", "Word: {{.front_text")
	if err == nil {
		t.Fatal("Expected error for invalid syntax, got nil")
	}
}

func TestParseTemplate_ForbiddenDirectives(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
	}{
		{"define", `{{define "x"}}hi{{end}}{{.front_text}}`},
		{"template", `{{template "x"}}`},
		{"block", `{{block "x" .}}hi{{end}}`},
		{"call with space", `{{ call .fn }}`},
		{"trim marker", `{{- define "x"}}{{end}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate("test", tt.tmpl)
			if err == nil {
				t.Fatalf("Expected forbidden directive error for %q", tt.tmpl)
			}
			if !strings.Contains(err.Error(), "forbidden directive") {
				t.Errorf("Expected forbidden directive error, got: %v", err)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long string", 7, "this is..."},
		{"你好世界你好世界", 4, "你好世界..."},
	}

	for _, tt := range tests {
		if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
