// Package llm holds the model clients and the task router that turns job text
// and profile facts into structured analysis, documents, patches and answers.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for short answers and small structured outputs
	TierLite ModelTier = "lite"
	// TierStandard is for extraction into structured JSON
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form writing
	TierAdvanced ModelTier = "advanced"
)

// Provider names a model backend
type Provider string

const (
	// ProviderGemini is the hosted Google Gemini backend
	ProviderGemini Provider = "gemini"
	// ProviderLocal is any OpenAI-compatible server (Ollama, vLLM, LM Studio)
	ProviderLocal Provider = "local"
)

// ParseProvider maps a settings value to a provider; unknown values select Gemini.
func ParseProvider(s string) Provider {
	if Provider(s) == ProviderLocal {
		return ProviderLocal
	}
	return ProviderGemini
}

// Config holds the model configuration for one provider
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the default Gemini configuration
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// LocalConfig serves every tier from a single local model.
func LocalConfig(model string) *Config {
	return &Config{
		Provider: ProviderLocal,
		Models: map[ModelTier]string{
			TierLite:     model,
			TierStandard: model,
			TierAdvanced: model,
		},
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of c with model set for tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider: c.Provider,
		Models:   make(map[ModelTier]string, len(c.Models)+1),
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
