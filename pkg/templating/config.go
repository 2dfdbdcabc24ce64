package templating

// TemplateConfig holds all configuration options for the templating engine.
type TemplateConfig struct {
	// TemplateDir is the directory holding the *.tmpl files. A missing
	// directory simply yields no named templates.
	TemplateDir string `json:"template_dir"`

	// MaxReplies caps the count passed to the replies function.
	MaxReplies int `json:"max_replies"`

	// MaxParagraphs caps the paragraph and sentence counts of the paragraphs function.
	MaxParagraphs int `json:"max_paragraphs"`
}

// DefaultConfig returns a TemplateConfig with safe default values.
func DefaultConfig() TemplateConfig {
	return TemplateConfig{
		TemplateDir:   "./data/templates",
		MaxReplies:    100,
		MaxParagraphs: 20,
	}
}
