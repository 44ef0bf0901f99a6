package config

// Output formats a profile can expect from the backend
const (
	OutputFormatJSON = "json"
	OutputFormatText = "text"
)

// Defaults for run-wide and per-provider settings
const (
	DefaultProvider           = "gemini"
	DefaultActiveProfile      = "vocab"
	DefaultInputFile          = "input.txt"
	DefaultOutputFile         = "anki_cards.txt"
	DefaultOutputEncoding     = "utf-8"
	DefaultCacheFile          = "generation_cache.csv"
	DefaultLogFile            = "cardforge.log"
	DefaultRequestDelay       = 1.0
	DefaultMaxRetries         = 3
	DefaultRetryBackoffBase   = 2.0
	DefaultSaveInterval       = 10
	DefaultTemperature        = 0.7
	DefaultMaxOutputTokens    = 4096
	DefaultHTTPTimeoutSeconds = 120
)

// Default returns a configuration populated with default global settings.
// Providers and profiles are left empty for the config file to fill.
func Default() *Config {
	return &Config{
		Global: GlobalConfig{
			Provider:         DefaultProvider,
			ActiveProfile:    DefaultActiveProfile,
			InputFile:        DefaultInputFile,
			OutputFile:       DefaultOutputFile,
			OutputEncoding:   DefaultOutputEncoding,
			CacheFile:        DefaultCacheFile,
			LogFile:          DefaultLogFile,
			RequestDelay:     DefaultRequestDelay,
			MaxRetries:       DefaultMaxRetries,
			RetryBackoffBase: DefaultRetryBackoffBase,
			SaveInterval:     DefaultSaveInterval,
		},
	}
}

// DefaultProfiles returns the built-in profiles used when a config defines none
func DefaultProfiles() map[string]ProfileConfig {
	return map[string]ProfileConfig{
		"vocab": {
			Description:  "English word or phrase → Chinese translation with usage notes",
			SystemPrompt: GetDefaultVocabSystemPrompt(),
			UserPromptTemplate: `Create a flashcard for the English expression below.

Expression: {{.front_text}}

Return ONLY a JSON object with these keys:
{"translate": "<concise Chinese translation>", "meta_info": "<part of speech, one example sentence and its translation>"}`,
			OutputFormat: OutputFormatJSON,
			OutputFields: []string{"translate", "meta_info"},
			FieldMapping: map[string]string{
				"translate": "Back",
				"meta_info": "Note",
			},
		},
		"enhance": {
			Description:  "Rewrite the back of an existing card into a richer explanation",
			SystemPrompt: GetDefaultEnhanceSystemPrompt(),
			UserPromptTemplate: `Improve the back side of this flashcard.

Front: {{.front_text}}
Current back: {{.back_text}}

Keep every correct fact, fix mistakes, add one short example. Return only the new back text.`,
			OutputFormat: OutputFormatText,
			OutputFields: []string{"enhanced_back"},
			FieldMapping: map[string]string{
				"enhanced_back": "Back",
			},
		},
	}
}

// GetDefaultVocabSystemPrompt returns the system prompt of the built-in vocabulary profile
func GetDefaultVocabSystemPrompt() string {
	return `You are a bilingual lexicographer who writes precise, learner-friendly flashcards.
Answers are short, accurate and free of filler. Never wrap the JSON in explanations.`
}

// GetDefaultEnhanceSystemPrompt returns the system prompt of the built-in enhancement profile
func GetDefaultEnhanceSystemPrompt() string {
	return `You are an experienced language teacher improving existing flashcards.
Write plain text suitable for the back of a card. Do not add headings or markdown fences.`
}
