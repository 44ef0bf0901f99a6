package util

import "testing"

func TestReasoningBlocks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains bool
		stripped string
	}{
		{
			name:     "think block before json",
			input:    "<think>\nthe learner wants a noun\n</think>\n\n{\"translate\": \"你好\"}",
			contains: true,
			stripped: "{\"translate\": \"你好\"}",
		},
		{
			name:     "thinking block",
			input:    "<Thinking>step by step</Thinking>Final answer",
			contains: true,
			stripped: "Final answer",
		},
		{
			name:     "reasoning block",
			input:    "<reasoning>check the tense</reasoning>went",
			contains: true,
			stripped: "went",
		},
		{
			name:     "chinese block",
			input:    "<思考>让我想想</思考>答案是42",
			contains: true,
			stripped: "答案是42",
		},
		{
			name:     "several blocks",
			input:    "<think>a</think>left <think>b</think>right",
			contains: true,
			stripped: "left right",
		},
		{
			name:     "unterminated block",
			input:    "<think>ran out of tokens while thinking",
			contains: true,
			stripped: "",
		},
		{
			name:     "tag mentioned inside answer",
			input:    "{\"note\": \"use <think> carefully\"}",
			contains: false,
			stripped: "{\"note\": \"use <think> carefully\"}",
		},
		{
			name:     "plain",
			input:    "  just an answer  ",
			contains: false,
			stripped: "just an answer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsThinkTags(tt.input); got != tt.contains {
				t.Errorf("ContainsThinkTags() = %v, want %v", got, tt.contains)
			}
			if got := StripThinkTags(tt.input); got != tt.stripped {
				t.Errorf("StripThinkTags() = %q, want %q", got, tt.stripped)
			}
		})
	}
}
