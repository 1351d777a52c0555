package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatCompletionStub(t *testing.T, content string, totalTokens int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		resp := map[string]interface{}{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"total_tokens": totalTokens},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestGenerateScript(t *testing.T) {
	server := newChatCompletionStub(t, "  Every day is a fresh start. Take it.  ", 55)
	defer server.Close()

	svc := NewOpenAIServiceWithBaseURL("sk-test", server.URL+"/v1")
	result, err := svc.GenerateScript(context.Background(), ScriptRequest{Prompt: "fresh starts"})
	require.NoError(t, err)

	assert.Equal(t, "Every day is a fresh start. Take it.", result.Text, "response is trimmed")
	assert.Equal(t, 55, result.TokensUsed)
}

func TestGenerateScript_EmptyResponse(t *testing.T) {
	server := newChatCompletionStub(t, "   ", 5)
	defer server.Close()

	svc := NewOpenAIServiceWithBaseURL("sk-test", server.URL+"/v1")
	_, err := svc.GenerateScript(context.Background(), ScriptRequest{Prompt: "x"})
	assert.ErrorContains(t, err, "empty script")
}

func TestGenerateVideoMetadata(t *testing.T) {
	server := newChatCompletionStub(t, "TITLE: Rise Again\nDESCRIPTION: A short film about persistence.", 30)
	defer server.Close()

	svc := NewOpenAIServiceWithBaseURL("sk-test", server.URL+"/v1")
	meta, err := svc.GenerateVideoMetadata(context.Background(), "some narration")
	require.NoError(t, err)
	assert.Equal(t, "Rise Again", meta.Title)
	assert.Equal(t, "A short film about persistence.", meta.Description)
}

func TestGenerateVideoMetadata_EmptyScript(t *testing.T) {
	svc := NewOpenAIService("sk-test")
	_, err := svc.GenerateVideoMetadata(context.Background(), "   ")
	assert.ErrorContains(t, err, "script is required")
}

func TestParseVideoMetadata(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		title   string
		desc    string
		wantErr bool
	}{
		{
			name:  "standard two lines",
			raw:   "TITLE: Hello\nDESCRIPTION: World",
			title: "Hello",
			desc:  "World",
		},
		{
			name:  "extra lines fold into description",
			raw:   "TITLE: Hello\nDESCRIPTION: First part.\nSecond part.",
			title: "Hello",
			desc:  "First part. Second part.",
		},
		{
			name:  "whitespace around lines",
			raw:   "  TITLE: Spaced  \n  DESCRIPTION: Out  ",
			title: "Spaced",
			desc:  "Out",
		},
		{
			name:    "missing title",
			raw:     "DESCRIPTION: no title here",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := ParseVideoMetadata(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.title, meta.Title)
			assert.Equal(t, tt.desc, meta.Description)
		})
	}
}

func TestScriptRequestApplyDefaults(t *testing.T) {
	req := ScriptRequest{Prompt: "p"}
	req.ApplyDefaults()

	assert.Equal(t, "motivational", req.Theme)
	assert.Equal(t, "60 seconds", req.Duration)
	assert.Equal(t, "casual and engaging", req.Style)
	assert.Equal(t, "English", req.Language)
	assert.Equal(t, 300, req.MinChars)
	assert.Equal(t, 400, req.MaxChars)

	custom := ScriptRequest{Theme: "focus", Language: "Spanish", MaxChars: 500}
	custom.ApplyDefaults()
	assert.Equal(t, "focus", custom.Theme)
	assert.Equal(t, "Spanish", custom.Language)
	assert.Equal(t, 500, custom.MaxChars)
	assert.Equal(t, 300, custom.MinChars)
}

func TestEstimateScriptCost(t *testing.T) {
	assert.Equal(t, 0.0, EstimateScriptCost(0))
	assert.Equal(t, 0.2, EstimateScriptCost(100))
	assert.Equal(t, 2.0, EstimateScriptCost(1000))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "lon...", truncateString("longer text", 3))
}
