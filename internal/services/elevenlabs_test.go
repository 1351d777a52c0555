package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesisTimeout(t *testing.T) {
	tests := []struct {
		textLen int
		want    time.Duration
	}{
		{500, 30 * time.Second},
		{1000, 30 * time.Second},
		{1001, 60 * time.Second},
		{3000, 60 * time.Second},
		{5999, 120 * time.Second},
		{7000, 180 * time.Second},
		{10000, 180 * time.Second},
		{20000, 300 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SynthesisTimeout(tt.textLen), "textLen=%d", tt.textLen)
	}
}

func TestTextLength_CountsCharactersNotBytes(t *testing.T) {
	assert.Equal(t, 11, textLength("Keep going."))
	assert.Equal(t, 9, textLength("animación"))
	assert.Equal(t, 1200, textLength(strings.Repeat("å", 1200)))

	// A 1200-character non-ASCII script stays in the short-text tier even
	// though it is 2400 bytes long.
	assert.Equal(t, 3, SynthesisPolicy(textLength(strings.Repeat("å", 1200))).MaxAttempts)
	assert.Equal(t, 60*time.Second, SynthesisTimeout(textLength(strings.Repeat("å", 1200))))
}

func TestSynthesisPolicy(t *testing.T) {
	short := SynthesisPolicy(400)
	assert.Equal(t, 3, short.MaxAttempts)
	assert.Equal(t, 1*time.Second, short.BaseDelay)
	assert.Equal(t, 30*time.Second, short.PerAttemptTimeout)

	long := SynthesisPolicy(6000)
	assert.Equal(t, 5, long.MaxAttempts)
	assert.Equal(t, 2*time.Second, long.BaseDelay)
	assert.Equal(t, 120*time.Second, long.PerAttemptTimeout)

	// Budget widens strictly above the threshold, not at it
	assert.Equal(t, 3, SynthesisPolicy(5000).MaxAttempts)
	assert.Equal(t, 5, SynthesisPolicy(5001).MaxAttempts)
}

// newSynthServer stubs the user probe plus the synthesis endpoint.
func newSynthServer(t *testing.T, synth http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/text-to-speech/", synth)
	return httptest.NewServer(mux)
}

func TestSynthesizeToFile(t *testing.T) {
	audio := []byte("mp3 bytes")
	server := newSynthServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get("xi-api-key"))
		assert.True(t, strings.HasSuffix(r.URL.Path, elevenLabsDefaultVoice))
		w.Write(audio)
	})
	defer server.Close()

	svc := NewElevenLabsServiceWithBaseURL(server.URL)
	out := filepath.Join(t.TempDir(), "narration.mp3")

	result, err := svc.SynthesizeToFile(context.Background(), "Keep going.", out, "key-123")
	require.NoError(t, err)
	assert.Equal(t, int64(len(audio)), result.ByteSize)
	assert.Equal(t, elevenLabsDefaultVoice, result.VoiceID)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, audio, data)
}

func TestSynthesizeToFile_RetriesTransientFailure(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			var calls atomic.Int32
			server := newSynthServer(t, func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.WriteHeader(status)
					return
				}
				w.Write([]byte("audio"))
			})
			defer server.Close()

			svc := NewElevenLabsServiceWithBaseURL(server.URL)
			out := filepath.Join(t.TempDir(), "narration.mp3")

			_, err := svc.SynthesizeToFile(context.Background(), "Keep going.", out, "key")
			require.NoError(t, err)
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestSynthesizeToFile_AuthFailureIsTerminal(t *testing.T) {
	var calls atomic.Int32
	server := newSynthServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": {"message": "bad key", "status": "invalid_api_key"}}`))
	})
	defer server.Close()

	svc := NewElevenLabsServiceWithBaseURL(server.URL)
	out := filepath.Join(t.TempDir(), "narration.mp3")

	_, err := svc.SynthesizeToFile(context.Background(), "Keep going.", out, "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.Equal(t, int32(1), calls.Load(), "terminal failures must not retry")
}

func TestSynthesizeToFile_EmptyInputs(t *testing.T) {
	svc := NewElevenLabsService()

	_, err := svc.SynthesizeToFile(context.Background(), "", "out.mp3", "key")
	assert.ErrorContains(t, err, "text is required")

	_, err = svc.SynthesizeToFile(context.Background(), "hi", "out.mp3", "")
	assert.ErrorContains(t, err, "API key is required")
}

func TestValidateAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/user", r.URL.Path)
		switch r.Header.Get("xi-api-key") {
		case "good":
			w.WriteHeader(http.StatusOK)
		case "limited":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	svc := NewElevenLabsServiceWithBaseURL(server.URL)

	assert.NoError(t, svc.ValidateAPIKey(context.Background(), "good"))

	err := svc.ValidateAPIKey(context.Background(), "bad")
	var synErr *SynthesisError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, http.StatusUnauthorized, synErr.StatusCode)

	err = svc.ValidateAPIKey(context.Background(), "limited")
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, http.StatusTooManyRequests, synErr.StatusCode)
}

func TestClassifySynthesisError(t *testing.T) {
	assert.Contains(t, classifySynthesisError(401, "").Message, "authentication")
	assert.Contains(t, classifySynthesisError(403, "").Message, "authentication")
	assert.Contains(t, classifySynthesisError(429, "").Message, "rate limit")
	assert.Contains(t, classifySynthesisError(422, "").Message, "Invalid request")
	assert.Contains(t, classifySynthesisError(500, "").Message, "500")
}

func TestReadErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail": "quota exceeded"}`, "quota exceeded"},
		{"object detail", `{"detail": {"message": "bad voice", "status": "x"}}`, "bad voice"},
		{"object detail status only", `{"detail": {"status": "voice_not_found"}}`, "voice_not_found"},
		{"flat message", `{"message": "nope"}`, "nope"},
		{"raw fallback", `plain text error`, "plain text error"},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readErrorDetail(strings.NewReader(tt.body)))
		})
	}
}
