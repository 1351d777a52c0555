package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailydream/studio/internal/config"
	"github.com/dailydream/studio/internal/models"
	"github.com/dailydream/studio/internal/outputs"
	"github.com/dailydream/studio/internal/services"
)

type stubProvider struct {
	script string
	fail   bool
}

func (s *stubProvider) GenerateScript(_ context.Context, _ services.ScriptRequest) (*services.ScriptResult, error) {
	if s.fail {
		return nil, assert.AnError
	}
	return &services.ScriptResult{Text: s.script, TokensUsed: 21}, nil
}

func (s *stubProvider) GenerateVideoMetadata(_ context.Context, _ string) (*services.VideoMetadata, error) {
	return &services.VideoMetadata{Title: "Stub Title", Description: "Stub description."}, nil
}

func newTestHandler(t *testing.T) (*Handler, *outputs.Store) {
	t.Helper()
	cfg := &config.Config{
		OutputDir:      t.TempDir(),
		TempDir:        t.TempDir(),
		RetentionHours: 24,
	}
	store := outputs.NewStore(cfg.OutputDir)
	h := NewHandler(cfg, nil, nil, store, nil,
		services.NewFFmpegService(), services.NewElevenLabsService(), services.NewYouTubeService())
	return h, store
}

func serve(h *Handler, apiKey string, req *http.Request) *httptest.ResponseRecorder {
	router := NewRouter(h, RouterConfig{BackendAPIKey: apiKey})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, "", httptest.NewRequest("GET", "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "ffmpegAvailable")
	assert.Contains(t, body, "timestamp")
}

func TestAPIKeyAuth(t *testing.T) {
	h, _ := newTestHandler(t)

	// Missing key
	rec := serve(h, "secret", httptest.NewRequest("GET", "/api/files", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key
	req := httptest.NewRequest("GET", "/api/files", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = serve(h, "secret", req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Correct key via header
	req = httptest.NewRequest("GET", "/api/files", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = serve(h, "secret", req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Correct key via bearer token
	req = httptest.NewRequest("GET", "/api/files", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = serve(h, "secret", req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays public
	rec = serve(h, "secret", httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateScript(t *testing.T) {
	h, _ := newTestHandler(t)
	h.scriptProviderFor = func(openaiKey, _ string) services.ScriptService {
		if openaiKey == "" {
			return nil
		}
		return &stubProvider{script: "You are stronger than you think."}
	}

	body := jsonBody(t, models.GenerateScriptRequest{Prompt: "strength", OpenAIAPIKey: "sk-x"})
	rec := serve(h, "", httptest.NewRequest("POST", "/api/generate-script", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.GenerateScriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "You are stronger than you think.", resp.Script)
	assert.Equal(t, 21, resp.Metadata.TokensUsed)
	assert.Equal(t, "motivational", resp.Options.Theme)
	assert.Equal(t, "English", resp.Options.Language)
	assert.Nil(t, resp.GeneratedAudio, "no audio preview without an ElevenLabs key")
}

func TestPreviewAudioFilename_Unique(t *testing.T) {
	a := previewAudioFilename()
	b := previewAudioFilename()

	assert.Regexp(t, `^script-audio-\d+-[0-9a-f]{8}\.mp3$`, a)
	assert.NotEqual(t, a, b, "same-second previews must not collide")
}

func TestGenerateScript_NoProviderKey(t *testing.T) {
	h, _ := newTestHandler(t)

	body := jsonBody(t, models.GenerateScriptRequest{Prompt: "x"})
	rec := serve(h, "", httptest.NewRequest("POST", "/api/generate-script", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "API key is required")
}

func TestGenerateScript_InvalidBody(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, "", httptest.NewRequest("POST", "/api/generate-script", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCombineVideos_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	// No videos
	body := jsonBody(t, models.CombineVideosRequest{AccessToken: "tok"})
	rec := serve(h, "", httptest.NewRequest("POST", "/api/combine-videos", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "At least one video")

	// No access token
	body = jsonBody(t, models.CombineVideosRequest{Videos: []models.ClipRef{{ID: "a"}}})
	rec = serve(h, "", httptest.NewRequest("POST", "/api/combine-videos", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access token")
}

func TestSubmitJob_WithoutQueue(t *testing.T) {
	h, _ := newTestHandler(t)

	body := jsonBody(t, models.CombineVideosRequest{Videos: []models.ClipRef{{ID: "a"}}, AccessToken: "t"})
	rec := serve(h, "", httptest.NewRequest("POST", "/api/jobs", body))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetJob_WithoutDatabase(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, "", httptest.NewRequest("GET", "/api/jobs/6e7e2a3c-0a41-4a57-9d69-5c3a24b6f111", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDownload(t *testing.T) {
	h, store := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "final.mp4"), []byte("video!"), 0o644))

	rec := serve(h, "", httptest.NewRequest("GET", "/api/download/final.mp4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="final.mp4"`)
	assert.Equal(t, "video!", rec.Body.String())
}

func TestDownload_Missing(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, "", httptest.NewRequest("GET", "/api/download/nope.mp4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListFiles(t *testing.T) {
	h, store := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "a.mp4"), []byte("vid"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "b.mp3"), []byte("aud"), 0o644))

	rec := serve(h, "", httptest.NewRequest("GET", "/api/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ListFilesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Files, 2)
	assert.Equal(t, 1, resp.Summary.VideoFiles)
	assert.Equal(t, 1, resp.Summary.AudioFiles)
}

func TestDeleteFile(t *testing.T) {
	h, store := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "a.mp4"), []byte("vid"), 0o644))

	rec := serve(h, "", httptest.NewRequest("DELETE", "/api/files/a.mp4", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, "", httptest.NewRequest("DELETE", "/api/files/a.mp4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCleanup(t *testing.T) {
	h, store := newTestHandler(t)

	oldPath := filepath.Join(store.Dir(), "old.mp4")
	require.NoError(t, os.WriteFile(oldPath, []byte("stale video"), 0o644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "fresh.mp4"), []byte("new"), 0o644))

	body := jsonBody(t, map[string]float64{"olderThanHours": 24})
	rec := serve(h, "", httptest.NewRequest("POST", "/api/cleanup", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CleanupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Summary.FilesDeleted)
}

func TestCleanup_ZeroHoursDeletesEverything(t *testing.T) {
	h, store := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "fresh.mp4"), []byte("new"), 0o644))

	body := jsonBody(t, map[string]float64{"olderThanHours": 0})
	rec := serve(h, "", httptest.NewRequest("POST", "/api/cleanup", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CleanupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Summary.FilesDeleted)

	_, statErr := os.Stat(filepath.Join(store.Dir(), "fresh.mp4"))
	assert.True(t, os.IsNotExist(statErr), "an explicit 0 must remove fresh files too")
}

func TestCleanup_NegativeHoursRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	body := jsonBody(t, map[string]float64{"olderThanHours": -1})
	rec := serve(h, "", httptest.NewRequest("POST", "/api/cleanup", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleanup_DefaultsToRetentionWindow(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, "", httptest.NewRequest("POST", "/api/cleanup", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CleanupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Summary.FilesDeleted)
}

func TestUploadToYouTube_Validation(t *testing.T) {
	h, store := newTestHandler(t)

	// Missing filename
	rec := serve(h, "", httptest.NewRequest("POST", "/api/upload-to-youtube", jsonBody(t, models.UploadToYouTubeRequest{})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing credentials
	rec = serve(h, "", httptest.NewRequest("POST", "/api/upload-to-youtube", jsonBody(t, models.UploadToYouTubeRequest{
		Filename: "a.mp4",
	})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "credentials")

	// File not in output directory
	rec = serve(h, "", httptest.NewRequest("POST", "/api/upload-to-youtube", jsonBody(t, models.UploadToYouTubeRequest{
		Filename:           "missing.mp4",
		Title:              "T",
		YouTubeCredentials: &models.YouTubeCredentials{ClientID: "c", ClientSecret: "s", RefreshToken: "r"},
	})))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing title with no script to generate one from
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "v.mp4"), []byte("vid"), 0o644))
	rec = serve(h, "", httptest.NewRequest("POST", "/api/upload-to-youtube", jsonBody(t, models.UploadToYouTubeRequest{
		Filename:           "v.mp4",
		YouTubeCredentials: &models.YouTubeCredentials{ClientID: "c", ClientSecret: "s", RefreshToken: "r"},
	})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title is required")
}
