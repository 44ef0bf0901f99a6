package orchestrator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lamim/cardforge/internal/util"
)

// ErrParse marks a response that could not be turned into field values
var ErrParse = errors.New("unparseable response")

// parseResponse extracts the profile's output fields from a raw response.
// Absent fields are left out of the returned map.
func (o *Orchestrator) parseResponse(logger *slog.Logger, raw string) (map[string]string, error) {
	if util.ContainsThinkTags(raw) {
		logger.Debug("Stripping reasoning tags from response")
	}
	cleaned := util.CleanResponse(raw, o.profile.OutputFormat)

	if !o.profile.Structured() {
		if cleaned == "" {
			return nil, fmt.Errorf("%w: empty text", ErrParse)
		}
		return map[string]string{o.profile.OutputFields[0]: cleaned}, nil
	}

	doc, err := decodeObject(cleaned)
	if err != nil {
		return nil, err
	}

	violations, err := o.profile.CheckResponse(doc)
	if err != nil {
		logger.Debug("Response shape check failed", "error", err)
	} else if len(violations) > 0 {
		o.metrics.IncrementShapeViolation(o.profile.Name)
		logger.Warn("Response does not match the expected shape", "violations", violations)
	}

	values := make(map[string]string, len(o.profile.OutputFields))
	for _, field := range o.profile.OutputFields {
		if v, ok := doc[field]; ok {
			values[field] = formatValue(v)
		}
	}
	return values, nil
}

// decodeObject decodes the first JSON object found in s
func decodeObject(s string) (map[string]interface{}, error) {
	payload := util.SanitizeJSON(util.ExtractJSONObject(s))
	if payload == "" {
		return nil, fmt.Errorf("%w: empty response", ErrParse)
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrParse, jsonKind(v))
	}
	return doc, nil
}

// formatValue renders a decoded JSON value as a cell: strings verbatim,
// everything else as compact JSON.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(buf.String())
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case []interface{}:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
