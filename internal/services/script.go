package services

import "context"

// ---------------------------------------------------------------------------
// ScriptService — common interface for text-generation providers
// OpenAI is the primary provider; Gemini serves as fallback when only a
// Gemini key is configured. The pipeline uses whichever is available
// without knowing the underlying provider.
// ---------------------------------------------------------------------------

// ScriptRequest carries the narration configuration. All fields default when
// empty (motivational theme, 60 seconds, casual style, English).
type ScriptRequest struct {
	Prompt   string
	Theme    string
	Duration string
	Style    string
	Language string
	MinChars int
	MaxChars int
}

// ApplyDefaults fills unset fields with the stock configuration.
func (r *ScriptRequest) ApplyDefaults() {
	if r.Theme == "" {
		r.Theme = "motivational"
	}
	if r.Duration == "" {
		r.Duration = "60 seconds"
	}
	if r.Style == "" {
		r.Style = "casual and engaging"
	}
	if r.Language == "" {
		r.Language = "English"
	}
	if r.MinChars == 0 {
		r.MinChars = 300
	}
	if r.MaxChars == 0 {
		r.MaxChars = 400
	}
}

// ScriptResult is the common response type from any script provider.
type ScriptResult struct {
	Text       string
	TokensUsed int
}

// VideoMetadata is a generated title/description pair for publishing.
type VideoMetadata struct {
	Title       string
	Description string
}

// ScriptService is the interface that any text-generation provider must implement.
type ScriptService interface {
	// GenerateScript produces a short narration script for the request.
	GenerateScript(ctx context.Context, req ScriptRequest) (*ScriptResult, error)

	// GenerateVideoMetadata derives an upload title and description from a
	// finished narration script.
	GenerateVideoMetadata(ctx context.Context, script string) (*VideoMetadata, error)
}

// EstimateScriptCost converts a token count to a rough dollar figure,
// rounded to cents.
func EstimateScriptCost(tokensUsed int) float64 {
	cents := float64(tokensUsed) * 0.002 * 100
	return float64(int(cents+0.5)) / 100
}
