package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Gemini script generation — fallback text provider
// Used when no OpenAI key is configured but a Gemini key is. Implements the
// same ScriptService interface so the pipeline is provider-agnostic.
// ---------------------------------------------------------------------------

const geminiScriptModel = "gemini-2.0-flash"

type GeminiService struct {
	apiKey string
	model  string
}

var _ ScriptService = (*GeminiService)(nil)

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{
		apiKey: apiKey,
		model:  geminiScriptModel,
	}
}

func (s *GeminiService) newClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// GenerateScript produces a narration script using the same prompt pair as
// the OpenAI provider, sent as a system instruction plus user turn.
func (s *GeminiService) GenerateScript(ctx context.Context, req ScriptRequest) (*ScriptResult, error) {
	req.ApplyDefaults()

	client, err := s.newClient(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("[Gemini] Generating script (theme=%s, duration=%s, band=%d-%d chars)",
		req.Theme, req.Duration, req.MinChars, req.MaxChars)

	resp, err := client.Models.GenerateContent(ctx, s.model,
		genai.Text(buildScriptUserPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(buildScriptSystemPrompt(req), genai.RoleUser),
			Temperature:       genai.Ptr[float32](scriptTemperature),
			MaxOutputTokens:   scriptMaxTokens,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("gemini returned an empty script")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	log.Printf("[Gemini] Script generated (%d chars, %d tokens)", len(text), tokens)

	return &ScriptResult{
		Text:       text,
		TokensUsed: tokens,
	}, nil
}

// GenerateVideoMetadata mirrors the OpenAI provider's constrained-format call.
func (s *GeminiService) GenerateVideoMetadata(ctx context.Context, script string) (*VideoMetadata, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("script is required for metadata generation")
	}

	client, err := s.newClient(ctx)
	if err != nil {
		return nil, err
	}

	system := "You write video titles and descriptions for short motivational videos. " +
		"Respond with exactly two lines:\n" +
		"TITLE: <a catchy title, at most 90 characters>\n" +
		"DESCRIPTION: <one or two engaging sentences>\n" +
		"No markdown, no hashtags, no extra lines."

	resp, err := client.Models.GenerateContent(ctx, s.model,
		genai.Text(fmt.Sprintf("Write a title and description for a video narrated by this script:\n\n%s", script)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			Temperature:       genai.Ptr[float32](metadataTemperature),
			MaxOutputTokens:   metadataMaxTokens,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini metadata request failed: %w", err)
	}

	meta, err := ParseVideoMetadata(resp.Text())
	if err != nil {
		return nil, err
	}

	log.Printf("[Gemini] Metadata generated (title=%q)", meta.Title)
	return meta, nil
}
