package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// forbiddenDirectives are template actions a config-supplied prompt may not use
var forbiddenDirectives = []string{"{{call", "{{define", "{{template", "{{block"}

// ParseTemplate parses a prompt template with strict options.
// Missing keys fail at execution time instead of rendering "<no value>".
func ParseTemplate(name, tmpl string) (*template.Template, error) {
	compact := strings.ReplaceAll(tmpl, "{{- ", "{{")
	compact = strings.ReplaceAll(compact, "{{ ", "{{")
	for _, directive := range forbiddenDirectives {
		if strings.Contains(compact, directive) {
			return nil, fmt.Errorf("template contains forbidden directive: %s", directive)
		}
	}

	t, err := template.New(name).
		Option("missingkey=error").
		Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return t, nil
}

// ExecuteTemplate renders a parsed template with the given data
func ExecuteTemplate(t *template.Template, data map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// TruncateString truncates a string to maxLen runes (Unicode-safe)
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
