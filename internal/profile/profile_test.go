package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/cardforge/internal/config"
	"github.com/lamim/cardforge/pkg/models"
)

func vocabConfig() config.ProfileConfig {
	return config.ProfileConfig{
		Description:        "vocab",
		SystemPrompt:       "You are a lexicographer.",
		UserPromptTemplate: "Word: {{.front_text}}",
		OutputFields:       []string{"translate", "meta_info"},
		FieldMapping:       map[string]string{"translate": "Back", "meta_info": "Note"},
	}
}

func TestRegistry_GetValid(t *testing.T) {
	reg := NewRegistry(map[string]config.ProfileConfig{"vocab": vocabConfig()})

	p, err := reg.Get("vocab")
	require.NoError(t, err)
	assert.Equal(t, "vocab", p.Name)
	assert.Equal(t, config.OutputFormatJSON, p.OutputFormat)
	assert.True(t, p.Structured())
	assert.False(t, p.UsesBackText())
	assert.Equal(t, []string{"front_text", "Back", "Note"}, p.ExportColumns())
}

func TestRegistry_UnknownProfileListsAvailable(t *testing.T) {
	reg := NewRegistry(map[string]config.ProfileConfig{
		"vocab":   vocabConfig(),
		"enhance": config.DefaultProfiles()["enhance"],
	})

	_, err := reg.Get("grammar")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "enhance, vocab")
}

func TestRegistry_InvalidProfiles(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.ProfileConfig)
		want   string
	}{
		{"empty template", func(pc *config.ProfileConfig) { pc.UserPromptTemplate = "  " }, "user_prompt_template is empty"},
		{"empty output fields", func(pc *config.ProfileConfig) { pc.OutputFields = nil }, "output_fields is empty"},
		{"empty field mapping", func(pc *config.ProfileConfig) { pc.FieldMapping = nil }, "field_mapping is empty"},
		{"no front reference", func(pc *config.ProfileConfig) { pc.UserPromptTemplate = "Say hi" }, "must reference {{.front_text}}"},
		{"forbidden directive", func(pc *config.ProfileConfig) {
			pc.UserPromptTemplate = `{{define "x"}}{{end}}{{.front_text}}`
		}, "forbidden directive"},
		{"unknown placeholder", func(pc *config.ProfileConfig) { pc.UserPromptTemplate = "{{.front_text}} {{.word}}" }, "word"},
		{"bad format", func(pc *config.ProfileConfig) { pc.OutputFormat = "xml" }, "unsupported output_format"},
		{"text with two fields", func(pc *config.ProfileConfig) { pc.OutputFormat = "text" }, "exactly one output field"},
		{"duplicate field", func(pc *config.ProfileConfig) { pc.OutputFields = []string{"translate", "translate"} }, "listed twice"},
		{"oversized template", func(pc *config.ProfileConfig) {
			pc.UserPromptTemplate = "{{.front_text}}" + strings.Repeat("x", config.MaxTemplateSize)
		}, "exceeds maximum size"},
		{"anki fields mismatch", func(pc *config.ProfileConfig) { pc.AnkiFields = []string{"front_text", "Back"} }, "anki_fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := vocabConfig()
			tt.mutate(&pc)
			reg := NewRegistry(map[string]config.ProfileConfig{"broken": pc})

			_, err := reg.Get("broken")
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)

			// Invalid profiles are still listed
			assert.Equal(t, []string{"broken"}, reg.List())
		})
	}
}

func TestRegistry_Describe(t *testing.T) {
	broken := vocabConfig()
	broken.Description = "half finished"
	broken.OutputFields = nil

	reg := NewRegistry(map[string]config.ProfileConfig{
		"vocab":  vocabConfig(),
		"broken": broken,
	})

	descs := reg.Describe()
	require.Len(t, descs, 2)

	assert.Equal(t, "broken", descs[0].Name)
	assert.Equal(t, "half finished", descs[0].Description)
	assert.Error(t, descs[0].Err)
	assert.Empty(t, descs[0].Columns)

	assert.Equal(t, "vocab", descs[1].Name)
	assert.NoError(t, descs[1].Err)
	assert.Equal(t, []string{"front_text", "Back", "Note"}, descs[1].Columns)
}

func TestExportColumns(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		mapping map[string]string
		anki    []string
		want    []string
	}{
		{
			name:    "mapped in field order",
			fields:  []string{"translate", "meta_info"},
			mapping: map[string]string{"translate": "Back", "meta_info": "Note"},
			want:    []string{"front_text", "Back", "Note"},
		},
		{
			name:    "unmapped field keeps its name",
			fields:  []string{"translate", "example"},
			mapping: map[string]string{"translate": "Back"},
			want:    []string{"front_text", "Back", "example"},
		},
		{
			name:    "duplicate columns collapse",
			fields:  []string{"a", "b", "c"},
			mapping: map[string]string{"a": "Back", "b": "Back", "c": "Note"},
			want:    []string{"front_text", "Back", "Note"},
		},
		{
			name:    "anki fields reorder",
			fields:  []string{"translate", "meta_info"},
			mapping: map[string]string{"translate": "Back", "meta_info": "Note"},
			anki:    []string{"Note", "front_text", "Back"},
			want:    []string{"Note", "front_text", "Back"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := vocabConfig()
			pc.OutputFields = tt.fields
			pc.FieldMapping = tt.mapping
			pc.AnkiFields = tt.anki

			p, err := NewRegistry(map[string]config.ProfileConfig{"p": pc}).Get("p")
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.ExportColumns())
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	reg := NewRegistry(config.DefaultProfiles())

	enhance, err := reg.Get("enhance")
	require.NoError(t, err)
	assert.True(t, enhance.UsesBackText())
	assert.False(t, enhance.Structured())

	prompt, err := enhance.RenderPrompt(models.InputRecord{Front: "apple", Back: "苹果"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Front: apple")
	assert.Contains(t, prompt, "Current back: 苹果")

	vocab, err := reg.Get("vocab")
	require.NoError(t, err)
	prompt, err = vocab.RenderPrompt(models.InputRecord{Front: "take off"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Expression: take off")
}

func TestCheckResponse(t *testing.T) {
	p, err := NewRegistry(map[string]config.ProfileConfig{"vocab": vocabConfig()}).Get("vocab")
	require.NoError(t, err)

	violations, err := p.CheckResponse(map[string]interface{}{"translate": "你好", "meta_info": "问候语"})
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = p.CheckResponse(map[string]interface{}{"translate": "你好"})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "meta_info")

	violations, err = p.CheckResponse([]interface{}{"not", "an", "object"})
	require.NoError(t, err)
	assert.NotEmpty(t, violations)
}

func TestCheckResponse_TextProfile(t *testing.T) {
	p, err := NewRegistry(config.DefaultProfiles()).Get("enhance")
	require.NoError(t, err)

	violations, err := p.CheckResponse("anything")
	require.NoError(t, err)
	assert.Empty(t, violations)
}
