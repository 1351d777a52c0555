package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dailydream/studio/internal/config"
	"github.com/dailydream/studio/internal/db"
	"github.com/dailydream/studio/internal/models"
	"github.com/dailydream/studio/internal/outputs"
	"github.com/dailydream/studio/internal/pipeline"
	"github.com/dailydream/studio/internal/queue"
	"github.com/dailydream/studio/internal/services"
)

type Handler struct {
	cfg      *config.Config
	db       *db.DB
	queue    *queue.Queue
	outputs  *outputs.Store
	pipeline *pipeline.Pipeline
	ffmpeg   *services.FFmpegService
	tts      *services.ElevenLabsService
	youtube  *services.YouTubeService

	// scriptProviderFor is swappable in tests
	scriptProviderFor func(openaiKey, geminiKey string) services.ScriptService
}

func NewHandler(
	cfg *config.Config,
	database *db.DB,
	q *queue.Queue,
	store *outputs.Store,
	p *pipeline.Pipeline,
	ffmpegSvc *services.FFmpegService,
	ttsSvc *services.ElevenLabsService,
	youtubeSvc *services.YouTubeService,
) *Handler {
	return &Handler{
		cfg:               cfg,
		db:                database,
		queue:             q,
		outputs:           store,
		pipeline:          p,
		ffmpeg:            ffmpegSvc,
		tts:               ttsSvc,
		youtube:           youtubeSvc,
		scriptProviderFor: defaultScriptProvider,
	}
}

func defaultScriptProvider(openaiKey, geminiKey string) services.ScriptService {
	if openaiKey != "" {
		return services.NewOpenAIService(openaiKey)
	}
	if geminiKey != "" {
		return services.NewGeminiService(geminiKey)
	}
	return nil
}

func pick(requestKey, serverKey string) string {
	if requestKey != "" {
		return requestKey
	}
	return serverKey
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"ffmpegAvailable": h.ffmpeg.Available(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// GenerateScript handles POST /api/generate-script. When an ElevenLabs key
// accompanies the request, a spoken preview is synthesized alongside the text.
func (h *Handler) GenerateScript(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	provider := h.scriptProviderFor(
		pick(req.OpenAIAPIKey, h.cfg.OpenAIKey),
		pick(req.GeminiAPIKey, h.cfg.GeminiKey),
	)
	if provider == nil {
		respondError(w, http.StatusBadRequest, "An OpenAI or Gemini API key is required")
		return
	}

	scriptReq := services.ScriptRequest{
		Prompt:   req.Prompt,
		Theme:    req.Theme,
		Duration: req.Duration,
		Style:    req.Style,
		Language: req.Language,
	}
	scriptReq.ApplyDefaults()

	result, err := provider.GenerateScript(r.Context(), scriptReq)
	if err != nil {
		log.Printf("[API] Script generation failed: %v", err)
		respondError(w, http.StatusBadGateway, "Script generation failed")
		return
	}

	resp := models.GenerateScriptResponse{
		Success:   true,
		RequestID: uuid.New(),
		Script:    result.Text,
		Options: models.ScriptOptions{
			Theme:    scriptReq.Theme,
			Duration: scriptReq.Duration,
			Style:    scriptReq.Style,
			Language: scriptReq.Language,
		},
		Metadata: models.ScriptMetadata{
			TokensUsed:    result.TokensUsed,
			EstimatedCost: services.EstimateScriptCost(result.TokensUsed),
			GeneratedAt:   time.Now().UTC(),
		},
	}

	// Audio preview is best-effort: a synthesis failure never loses the script
	if elevenKey := pick(req.ElevenLabsAPIKey, h.cfg.ElevenLabsKey); elevenKey != "" {
		filename := previewAudioFilename()
		synth, err := h.tts.SynthesizeToFile(r.Context(), result.Text, filepath.Join(h.outputs.Dir(), filename), elevenKey)
		if err != nil {
			log.Printf("[API] Script audio preview failed: %v", err)
		} else {
			resp.GeneratedAudio = &models.GeneratedAudio{
				Filename:    filename,
				DownloadURL: "/api/download/" + filename,
				FileSize:    synth.ByteSize,
				VoiceID:     synth.VoiceID,
				GeneratedAt: time.Now().UTC(),
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// previewAudioFilename names a script audio preview. The id fragment keeps
// two previews requested in the same second from overwriting each other.
func previewAudioFilename() string {
	return fmt.Sprintf("script-audio-%d-%s.mp3", time.Now().Unix(), uuid.New().String()[:8])
}

// CombineVideos handles POST /api/combine-videos: the synchronous path where
// the caller waits for the finished video.
func (h *Handler) CombineVideos(w http.ResponseWriter, r *http.Request) {
	var req models.CombineVideosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Videos) == 0 {
		respondError(w, http.StatusBadRequest, "At least one video is required")
		return
	}
	if req.AccessToken == "" {
		respondError(w, http.StatusBadRequest, "Google Drive access token is required")
		return
	}

	job := pipeline.CombineJob{ID: uuid.New(), Request: req}

	record := &models.JobRecord{ID: job.ID, Status: models.JobStatusCreated, VideosRequested: len(req.Videos)}
	if err := h.db.CreateJob(r.Context(), record); err != nil {
		log.Printf("[API] Failed to record job %s: %v", job.ID, err)
	}

	resp, outcome, err := h.pipeline.Run(r.Context(), job)
	if err != nil {
		if dbErr := h.db.UpdateJobError(r.Context(), job.ID, err.Error()); dbErr != nil {
			log.Printf("[API] Failed to record job error: %v", dbErr)
		}
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "Video combination failed",
			"message": err.Error(),
			"jobId":   job.ID,
		})
		return
	}

	for _, d := range outcome.Degradations() {
		log.Printf("[API] Job %s degraded at %s: %v", job.ID, d.Stage, d.Err)
	}
	if dbErr := h.db.CompleteJob(r.Context(), job.ID, resp.Filename, resp.VideosProcessed); dbErr != nil {
		log.Printf("[API] Failed to record job completion: %v", dbErr)
	}

	respondJSON(w, http.StatusOK, resp)
}

// SubmitJob handles POST /api/jobs: the asynchronous path. The job is queued
// for a background worker and the caller polls the job record.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "Background jobs are not enabled (no Redis configured)")
		return
	}

	var req models.CombineVideosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Videos) == 0 {
		respondError(w, http.StatusBadRequest, "At least one video is required")
		return
	}
	if req.AccessToken == "" {
		respondError(w, http.StatusBadRequest, "Google Drive access token is required")
		return
	}

	job := &pipeline.CombineJob{ID: uuid.New(), Request: req}

	record := &models.JobRecord{ID: job.ID, Status: models.JobStatusCreated, VideosRequested: len(req.Videos)}
	if err := h.db.CreateJob(r.Context(), record); err != nil {
		log.Printf("[API] Failed to record job %s: %v", job.ID, err)
	}

	if err := h.queue.EnqueueCombine(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.SubmitJobResponse{
		JobID:  job.ID,
		Status: models.JobStatusCreated,
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		respondError(w, http.StatusServiceUnavailable, "Job history is not enabled (no database configured)")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.db.GetJob(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// UploadToYouTube handles POST /api/upload-to-youtube. A missing title is
// generated from the narration script when one is supplied.
func (h *Handler) UploadToYouTube(w http.ResponseWriter, r *http.Request) {
	var req models.UploadToYouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Filename == "" {
		respondError(w, http.StatusBadRequest, "Filename is required")
		return
	}
	if req.YouTubeCredentials == nil {
		respondError(w, http.StatusBadRequest, "YouTube credentials are required")
		return
	}

	videoPath, _, err := h.outputs.Stat(req.Filename)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("Video %q not found in output directory", req.Filename))
		return
	}

	title, description := req.Title, req.Description
	if title == "" {
		if req.Script == "" {
			respondError(w, http.StatusBadRequest, "A title is required (or provide the script to generate one)")
			return
		}
		provider := h.scriptProviderFor(h.cfg.OpenAIKey, h.cfg.GeminiKey)
		if provider == nil {
			respondError(w, http.StatusBadRequest, "A title is required (no text provider configured to generate one)")
			return
		}
		meta, err := provider.GenerateVideoMetadata(r.Context(), req.Script)
		if err != nil {
			log.Printf("[API] Metadata generation failed: %v", err)
			respondError(w, http.StatusBadGateway, "Failed to generate video metadata")
			return
		}
		title = meta.Title
		if description == "" {
			description = meta.Description
		}
	}

	result, err := h.youtube.Upload(r.Context(), videoPath, req.YouTubeCredentials, services.UploadOptions{
		Title:         title,
		Description:   description,
		Tags:          req.Tags,
		PrivacyStatus: req.PrivacyStatus,
		CategoryID:    req.CategoryID,
	})
	if err != nil {
		log.Printf("[API] YouTube upload failed: %v", err)
		respondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":   "YouTube upload failed",
			"message": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, models.UploadToYouTubeResponse{
		Success:  true,
		UploadID: uuid.New(),
		YouTube:  *result,
		Metadata: models.UploadMetadata{
			Filename:      req.Filename,
			Title:         result.Title,
			Description:   description,
			Tags:          req.Tags,
			PrivacyStatus: result.PrivacyStatus,
		},
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
