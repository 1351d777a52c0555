package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
	"unicode/utf8"

	"github.com/dailydream/studio/internal/retry"
)

// ---------------------------------------------------------------------------
// ElevenLabs Text-to-Speech Service
// Converts narration scripts into speech audio. The API key is validated with
// a lightweight probe before synthesis; transient failures retry with a
// budget and timeout scaled to the text length.
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io"

	// eleven_multilingual_v2 handles every language the script generator
	// can be asked for.
	elevenLabsModel = "eleven_multilingual_v2"

	// Rachel — clear narration voice
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM"

	elevenLabsProbeTimeout = 10 * time.Second

	// Text above this length gets the larger retry budget and slower backoff
	longTextThreshold = 5000

	synthesisMaxBackoff = 15 * time.Second
)

// SynthesisError carries the collaborator's status and decoded detail so
// callers can distinguish auth, quota, and malformed-request failures.
type SynthesisError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *SynthesisError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

type SynthesisResult struct {
	FilePath string
	ByteSize int64
	VoiceID  string
}

type ElevenLabsService struct {
	baseURL string
	voiceID string
	modelID string
	client  *http.Client
}

func NewElevenLabsService() *ElevenLabsService {
	return &ElevenLabsService{
		baseURL: elevenLabsBaseURL,
		voiceID: elevenLabsDefaultVoice,
		modelID: elevenLabsModel,
		// Per-request deadlines come from the retry policy's attempt context
		client: &http.Client{},
	}
}

// NewElevenLabsServiceWithBaseURL is used by tests to point the client at a stub.
func NewElevenLabsServiceWithBaseURL(baseURL string) *ElevenLabsService {
	s := NewElevenLabsService()
	s.baseURL = baseURL
	return s
}

// ValidateAPIKey probes GET /v1/user with the supplied key. It distinguishes
// an invalid key, a rate-limited account, and network-class failures.
func (s *ElevenLabsService) ValidateAPIKey(ctx context.Context, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, elevenLabsProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/v1/user", nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ElevenLabs key validation failed (network): %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return &SynthesisError{
			StatusCode: resp.StatusCode,
			Message:    "ElevenLabs API authentication failed, please check your API key",
			Detail:     readErrorDetail(resp.Body),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &SynthesisError{
			StatusCode: resp.StatusCode,
			Message:    "ElevenLabs API rate limit exceeded",
			Detail:     readErrorDetail(resp.Body),
		}
	default:
		return &SynthesisError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("ElevenLabs key validation returned status %d", resp.StatusCode),
			Detail:     readErrorDetail(resp.Body),
		}
	}
}

// textLength counts characters rather than bytes so non-ASCII scripts scale
// the timeout and retry budget the same way ASCII ones do.
func textLength(text string) int {
	return utf8.RuneCountInString(text)
}

// SynthesisTimeout maps text length to a request deadline. Longer scripts
// take proportionally longer to synthesize, in steps.
func SynthesisTimeout(textLen int) time.Duration {
	switch {
	case textLen <= 1000:
		return 30 * time.Second
	case textLen <= 3000:
		return 60 * time.Second
	case textLen <= 6000:
		return 120 * time.Second
	case textLen <= 10000:
		return 180 * time.Second
	default:
		return 300 * time.Second
	}
}

// SynthesisPolicy builds the retry policy for a text of the given length:
// 3 attempts with a 1s base delay, widened to 5 attempts and 2s for long
// text, capped at 15s between attempts.
func SynthesisPolicy(textLen int) retry.Policy {
	p := retry.Policy{
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          synthesisMaxBackoff,
		PerAttemptTimeout: SynthesisTimeout(textLen),
	}
	if textLen > longTextThreshold {
		p.MaxAttempts = 5
		p.BaseDelay = 2 * time.Second
	}
	return p
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// SynthesizeToFile converts text to speech and writes the MP3 response to
// outputPath. The key is validated first; synthesis then runs under the
// length-scaled retry policy. Auth, permission, and malformed-request
// failures are terminal and never retried.
func (s *ElevenLabsService) SynthesizeToFile(ctx context.Context, text, outputPath, apiKey string) (*SynthesisResult, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required for audio generation")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key is required")
	}

	log.Printf("[ElevenLabs] Validating API key...")
	if err := s.ValidateAPIKey(ctx, apiKey); err != nil {
		return nil, err
	}

	textLen := textLength(text)
	policy := SynthesisPolicy(textLen)
	log.Printf("[ElevenLabs] Generating speech (voice=%s, model=%s, textLen=%d, attempts=%d, timeout=%v)",
		s.voiceID, s.modelID, textLen, policy.MaxAttempts, policy.PerAttemptTimeout)

	var audioData []byte
	err := policy.Do(ctx, "speech synthesis", func(ctx context.Context) error {
		data, err := s.synthesize(ctx, text, apiKey)
		if err != nil {
			return err
		}
		audioData = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(outputPath, audioData, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	log.Printf("[ElevenLabs] Audio saved to %s (%dKB)", outputPath, len(audioData)/1024)

	return &SynthesisResult{
		FilePath: outputPath,
		ByteSize: int64(len(audioData)),
		VoiceID:  s.voiceID,
	}, nil
}

// synthesize performs one synthesis attempt. Terminal collaborator failures
// are wrapped with retry.Abort so the policy stops immediately.
func (s *ElevenLabsService) synthesize(ctx context.Context, text, apiKey string) ([]byte, error) {
	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: s.modelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       0.75,
			SimilarityBoost: 0.8,
			Style:           0.5,
			UseSpeakerBoost: true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, retry.Abort(fmt.Errorf("failed to marshal synthesis request: %w", err))
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.baseURL, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, retry.Abort(fmt.Errorf("failed to create synthesis request: %w", err))
	}

	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		synErr := classifySynthesisError(resp.StatusCode, readErrorDetail(resp.Body))
		if retry.RetryableStatus(resp.StatusCode) {
			return nil, synErr
		}
		return nil, retry.Abort(synErr)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ElevenLabs audio response: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned empty audio")
	}

	return audioData, nil
}

// classifySynthesisError layers a human-readable message per status class on
// top of the collaborator's own diagnostic payload.
func classifySynthesisError(status int, detail string) *SynthesisError {
	var message string
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		message = "ElevenLabs API authentication failed, please check your API key"
	case http.StatusTooManyRequests:
		message = "ElevenLabs API rate limit exceeded"
	case http.StatusUnprocessableEntity:
		message = "Invalid request to ElevenLabs"
	default:
		message = fmt.Sprintf("ElevenLabs API error (%d)", status)
	}
	return &SynthesisError{StatusCode: status, Message: message, Detail: detail}
}

// readErrorDetail extracts the detail message from an ElevenLabs error body.
// The payload nests the message differently across endpoints, so a few
// shapes are tried before falling back to the raw body.
func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Detail) > 0 {
		var asString string
		if json.Unmarshal(payload.Detail, &asString) == nil {
			return asString
		}
		var asObject struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		}
		if json.Unmarshal(payload.Detail, &asObject) == nil {
			if asObject.Message != "" {
				return asObject.Message
			}
			if asObject.Status != "" {
				return asObject.Status
			}
		}
	}

	var flat struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &flat); err == nil && flat.Message != "" {
		return flat.Message
	}

	return string(raw)
}
