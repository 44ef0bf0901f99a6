package util

import (
	"regexp"
	"strings"
)

// reasoningBlocks match the scratchpad sections reasoning models put before an answer
var reasoningBlocks = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<think(?:ing)?>[\s\S]*?</think(?:ing)?>`),
	regexp.MustCompile(`(?i)<reasoning>[\s\S]*?</reasoning>`),
	regexp.MustCompile(`<思考>[\s\S]*?</思考>`),
}

// openReasoning matches a block that was cut off before its closing tag
var openReasoning = regexp.MustCompile(`(?i)^\s*<(?:think|thinking|reasoning)>`)

// ContainsThinkTags reports whether a response carries a reasoning block
func ContainsThinkTags(response string) bool {
	for _, re := range reasoningBlocks {
		if re.MatchString(response) {
			return true
		}
	}
	return openReasoning.MatchString(response)
}

// StripThinkTags removes reasoning blocks and their content. A response that
// opens a block and never closes it holds no answer and strips to "".
func StripThinkTags(response string) string {
	for _, re := range reasoningBlocks {
		response = re.ReplaceAllString(response, "")
	}
	if openReasoning.MatchString(response) {
		return ""
	}
	return strings.TrimSpace(response)
}
