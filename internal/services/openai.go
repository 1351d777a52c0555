package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	scriptModel         = openai.GPT3Dot5Turbo
	scriptMaxTokens     = 200 // keeps scripts short enough for the TTS quota
	scriptTemperature   = 0.8
	metadataModel       = openai.GPT3Dot5Turbo
	metadataMaxTokens   = 300
	metadataTemperature = 0.7
)

type OpenAIService struct {
	client *openai.Client
}

// Ensure OpenAIService implements ScriptService at compile time.
var _ ScriptService = (*OpenAIService)(nil)

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
	}
}

// NewOpenAIServiceWithBaseURL is used by tests to point the client at a stub.
func NewOpenAIServiceWithBaseURL(apiKey, baseURL string) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIService{
		client: openai.NewClientWithConfig(cfg),
	}
}

// GenerateScript produces a short narration script. The prompt pair encodes
// strict length targets — character count is the proxy for spoken duration —
// and forbids any formatting, since the text goes straight to speech synthesis.
func (s *OpenAIService) GenerateScript(ctx context.Context, req ScriptRequest) (*ScriptResult, error) {
	req.ApplyDefaults()

	systemPrompt := buildScriptSystemPrompt(req)
	userPrompt := buildScriptUserPrompt(req)

	log.Printf("[OpenAI] Generating script (theme=%s, duration=%s, band=%d-%d chars)",
		req.Theme, req.Duration, req.MinChars, req.MaxChars)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: scriptModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   scriptMaxTokens,
		Temperature: scriptTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, fmt.Errorf("openai returned an empty script")
	}

	log.Printf("[OpenAI] Script generated (%d chars, %d tokens)", len(text), resp.Usage.TotalTokens)

	return &ScriptResult{
		Text:       text,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// GenerateVideoMetadata asks for an upload title and description in a
// constrained TITLE:/DESCRIPTION: format the caller can parse reliably.
func (s *OpenAIService) GenerateVideoMetadata(ctx context.Context, script string) (*VideoMetadata, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("script is required for metadata generation")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: metadataModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You write video titles and descriptions for short motivational videos. " +
					"Respond with exactly two lines:\n" +
					"TITLE: <a catchy title, at most 90 characters>\n" +
					"DESCRIPTION: <one or two engaging sentences>\n" +
					"No markdown, no hashtags, no extra lines.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Write a title and description for a video narrated by this script:\n\n%s", script),
			},
		},
		MaxTokens:   metadataMaxTokens,
		Temperature: metadataTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("openai metadata request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	meta, err := ParseVideoMetadata(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	log.Printf("[OpenAI] Metadata generated (title=%q)", meta.Title)
	return meta, nil
}

// ParseVideoMetadata extracts the TITLE:/DESCRIPTION: pair from a constrained
// collaborator response. Extra lines are folded into the description.
func ParseVideoMetadata(raw string) (*VideoMetadata, error) {
	meta := &VideoMetadata{}
	var descLines []string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "TITLE:"):
			meta.Title = strings.TrimSpace(strings.TrimPrefix(line, "TITLE:"))
		case strings.HasPrefix(line, "DESCRIPTION:"):
			descLines = append(descLines, strings.TrimSpace(strings.TrimPrefix(line, "DESCRIPTION:")))
		case line != "" && len(descLines) > 0:
			descLines = append(descLines, line)
		}
	}

	meta.Description = strings.Join(descLines, " ")

	if meta.Title == "" {
		return nil, fmt.Errorf("metadata response missing TITLE line: %q", truncateString(raw, 200))
	}

	return meta, nil
}

func buildScriptSystemPrompt(req ScriptRequest) string {
	return fmt.Sprintf(`You are an expert at writing voiceover scripts for short motivational videos.
Write text that is:
- CONCISE and direct (%d-%d characters maximum)
- Fluid and natural when read aloud
- Emotionally engaging and motivational
- Suitable for social media
- Written in a %s tone
- Written in %s
- Paced for roughly %s of narration
- WITHOUT titles, headings, or markdown formatting
- ONLY continuous prose meant to be read as narration`,
		req.MinChars, req.MaxChars, req.Style, req.Language, req.Duration)
}

func buildScriptUserPrompt(req ScriptRequest) string {
	return fmt.Sprintf(`Write a CONCISE motivational narration script on the theme: %s

Based on the following context or idea: %s

IMPORTANT:
- MAXIMUM %d CHARACTERS (keep it short)
- Output ONLY the continuous prose, no titles, no formatting, no markdown
- The text must flow naturally when read aloud
- Be direct, impactful, and motivational
- The text will be converted to audio, so prioritize smooth spoken delivery
- Do not use asterisks, hashtags, numbered lists, or any special formatting`,
		req.Theme, req.Prompt, req.MaxChars)
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
