// Package profile turns declarative profile configuration into validated
// generation scenarios: a prompt template, the fields expected back from the
// model and the export columns they land in.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/xeipuuv/gojsonschema"

	"github.com/lamim/cardforge/internal/config"
	"github.com/lamim/cardforge/internal/util"
	"github.com/lamim/cardforge/pkg/models"
)

// Template placeholders
const (
	FrontKey = "front_text"
	BackKey  = "back_text"
)

const (
	frontProbe = "\x00front\x00"
	backProbe  = "\x00back\x00"
)

// Profile is a validated generation scenario
type Profile struct {
	Name         string
	Description  string
	SystemPrompt string
	OutputFormat string
	OutputFields []string
	FieldMapping map[string]string

	tmpl     *template.Template
	columns  []string
	usesBack bool
	schema   *gojsonschema.Schema
}

func newProfile(name string, pc config.ProfileConfig) (*Profile, error) {
	if strings.TrimSpace(pc.UserPromptTemplate) == "" {
		return nil, errors.New("user_prompt_template is empty")
	}
	if len(pc.OutputFields) == 0 {
		return nil, errors.New("output_fields is empty")
	}
	if len(pc.FieldMapping) == 0 {
		return nil, errors.New("field_mapping is empty")
	}
	if len(pc.UserPromptTemplate) > config.MaxTemplateSize {
		return nil, fmt.Errorf("user_prompt_template exceeds maximum size of %d bytes (got %d)",
			config.MaxTemplateSize, len(pc.UserPromptTemplate))
	}

	format := strings.ToLower(strings.TrimSpace(pc.OutputFormat))
	switch format {
	case "":
		format = config.OutputFormatJSON
	case config.OutputFormatJSON:
	case config.OutputFormatText:
		if len(pc.OutputFields) != 1 {
			return nil, fmt.Errorf("text profiles need exactly one output field (got %d)", len(pc.OutputFields))
		}
	default:
		return nil, fmt.Errorf("unsupported output_format %q (expected json or text)", pc.OutputFormat)
	}

	seen := make(map[string]bool, len(pc.OutputFields))
	for _, field := range pc.OutputFields {
		if strings.TrimSpace(field) == "" {
			return nil, errors.New("output_fields contains an empty name")
		}
		if seen[field] {
			return nil, fmt.Errorf("output field %q is listed twice", field)
		}
		seen[field] = true
	}

	tmpl, err := util.ParseTemplate(name, pc.UserPromptTemplate)
	if err != nil {
		return nil, err
	}
	probe, err := util.ExecuteTemplate(tmpl, map[string]interface{}{FrontKey: frontProbe, BackKey: backProbe})
	if err != nil {
		return nil, err
	}
	if !strings.Contains(probe, frontProbe) {
		return nil, fmt.Errorf("user_prompt_template must reference {{.%s}}", FrontKey)
	}

	p := &Profile{
		Name:         name,
		Description:  pc.Description,
		SystemPrompt: pc.SystemPrompt,
		OutputFormat: format,
		OutputFields: append([]string(nil), pc.OutputFields...),
		FieldMapping: make(map[string]string, len(pc.FieldMapping)),
		tmpl:         tmpl,
		usesBack:     strings.Contains(probe, backProbe),
	}
	for k, v := range pc.FieldMapping {
		p.FieldMapping[k] = v
	}

	p.columns, err = exportColumns(p, pc.AnkiFields)
	if err != nil {
		return nil, err
	}

	if p.Structured() {
		p.schema, err = responseSchema(p.OutputFields)
		if err != nil {
			return nil, fmt.Errorf("failed to build response schema: %w", err)
		}
	}

	return p, nil
}

func exportColumns(p *Profile, ankiFields []string) ([]string, error) {
	columns := []string{models.FrontTextColumn}
	seen := map[string]bool{models.FrontTextColumn: true}
	for _, field := range p.OutputFields {
		col := p.ColumnFor(field)
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}

	if len(ankiFields) == 0 {
		return columns, nil
	}

	ordered := make([]string, 0, len(ankiFields))
	used := make(map[string]bool, len(ankiFields))
	for _, col := range ankiFields {
		if !seen[col] || used[col] {
			return nil, fmt.Errorf("anki_fields %v must list exactly the export columns %v", ankiFields, columns)
		}
		used[col] = true
		ordered = append(ordered, col)
	}
	if len(ordered) != len(columns) {
		return nil, fmt.Errorf("anki_fields %v must list exactly the export columns %v", ankiFields, columns)
	}
	return ordered, nil
}

func responseSchema(fields []string) (*gojsonschema.Schema, error) {
	required := make([]interface{}, len(fields))
	for i, f := range fields {
		required[i] = f
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(map[string]interface{}{
		"type":     "object",
		"required": required,
	}))
}

// RenderPrompt fills the user prompt template for one record
func (p *Profile) RenderPrompt(rec models.InputRecord) (string, error) {
	return util.ExecuteTemplate(p.tmpl, map[string]interface{}{
		FrontKey: rec.Front,
		BackKey:  rec.Back,
	})
}

// ExportColumns returns the export column order, front_text included
func (p *Profile) ExportColumns() []string {
	return append([]string(nil), p.columns...)
}

// ColumnFor returns the export column of an output field.
// Unmapped fields export under their own name.
func (p *Profile) ColumnFor(field string) string {
	if col, ok := p.FieldMapping[field]; ok && col != "" {
		return col
	}
	return field
}

// Structured reports whether responses are decoded as JSON objects
func (p *Profile) Structured() bool {
	return p.OutputFormat == config.OutputFormatJSON
}

// UsesBackText reports whether the template references {{.back_text}}
func (p *Profile) UsesBackText() bool {
	return p.usesBack
}

// CheckResponse validates a decoded JSON response against the expected shape.
// It returns the violations found; an error means the document could not be checked.
func (p *Profile) CheckResponse(doc interface{}) ([]string, error) {
	if p.schema == nil {
		return nil, nil
	}
	result, err := p.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, re.String())
	}
	return violations, nil
}
