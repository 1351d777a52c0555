package models

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Enums

// JobStatus tracks the lifecycle of a combine job from creation to completion.
type JobStatus string

const (
	JobStatusCreated     JobStatus = "created"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusScripting   JobStatus = "scripting"
	JobStatusNarrating   JobStatus = "narrating"
	JobStatusAssembling  JobStatus = "assembling"
	JobStatusSubtitling  JobStatus = "subtitling"
	JobStatusPublishing  JobStatus = "publishing"
	JobStatusDone        JobStatus = "done"
	JobStatusFailed      JobStatus = "failed"
)

// SubtitleMode selects how the subtitle track is delivered.
type SubtitleMode string

const (
	SubtitleModeSidecar SubtitleMode = "sidecar" // .srt file next to the output video
	SubtitleModeBurn    SubtitleMode = "burn"    // re-encode with subtitles rendered in
)

// Models

// ClipRef identifies a remote clip in the drive collaborator.
type ClipRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClipRecord is a downloaded clip on local scratch storage.
// Owned by the job; discarded once assembly starts.
type ClipRecord struct {
	Path            string  `json:"-"`
	OriginalName    string  `json:"name"`
	DurationSeconds float64 `json:"duration"`
}

// Script is an immutable generated narration script.
type Script struct {
	Text        string    `json:"script"`
	Theme       string    `json:"theme"`
	Duration    string    `json:"duration"`
	Style       string    `json:"style"`
	Language    string    `json:"language"`
	TokensUsed  int       `json:"tokensUsed"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// CharCount reports the script length in characters, used for synthesis
// timeout scaling.
func (s *Script) CharCount() int {
	return utf8.RuneCountInString(s.Text)
}

// AudioArtifact is the synthesized narration file. It is temporary by design:
// deleted as soon as it has been folded into the final video, never exposed
// for independent download from the combine pipeline.
type AudioArtifact struct {
	Path     string `json:"-"`
	ByteSize int64  `json:"fileSize"`
	VoiceID  string `json:"voiceId"`
}

// VideoArtifact is the finished output video, the only artifact retained
// for user download.
type VideoArtifact struct {
	Path               string    `json:"-"`
	Filename           string    `json:"filename"`
	ContentType        string    `json:"contentType"`
	ByteSize           int64     `json:"byteSize"`
	HasAudio           bool      `json:"hasAudio"`
	HasBackgroundMusic bool      `json:"hasBackgroundMusic"`
	HasSubtitles       bool      `json:"hasSubtitles"`
	CreatedAt          time.Time `json:"createdAt"`
}

// UploadResult describes a completed publish to the hosting collaborator.
// Produced once per job, never mutated.
type UploadResult struct {
	VideoID       string    `json:"videoId"`
	VideoURL      string    `json:"videoUrl"`
	Title         string    `json:"title"`
	PrivacyStatus string    `json:"privacyStatus"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

// JobRecord is the persisted history row for a job (optional Postgres store).
type JobRecord struct {
	ID              uuid.UUID  `json:"id"`
	Status          JobStatus  `json:"status"`
	OutputFilename  *string    `json:"output_filename,omitempty"`
	VideosRequested int        `json:"videos_requested"`
	VideosProcessed int        `json:"videos_processed"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DTOs for API requests and responses

type GenerateScriptRequest struct {
	Prompt           string `json:"prompt"`
	OpenAIAPIKey     string `json:"openaiApiKey"`
	GeminiAPIKey     string `json:"geminiApiKey,omitempty"`
	ElevenLabsAPIKey string `json:"elevenLabsApiKey,omitempty"`
	Theme            string `json:"theme,omitempty"`
	Duration         string `json:"duration,omitempty"`
	Style            string `json:"style,omitempty"`
	Language         string `json:"language,omitempty"`
}

type ScriptOptions struct {
	Theme    string `json:"theme"`
	Duration string `json:"duration"`
	Style    string `json:"style"`
	Language string `json:"language"`
}

type ScriptMetadata struct {
	TokensUsed    int       `json:"tokensUsed"`
	EstimatedCost float64   `json:"estimatedCost"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

type GeneratedAudio struct {
	Filename    string    `json:"filename"`
	DownloadURL string    `json:"downloadUrl"`
	FileSize    int64     `json:"fileSize"`
	VoiceID     string    `json:"voiceId"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type GenerateScriptResponse struct {
	Success        bool            `json:"success"`
	RequestID      uuid.UUID       `json:"requestId"`
	Script         string          `json:"script"`
	Options        ScriptOptions   `json:"options"`
	Metadata       ScriptMetadata  `json:"metadata"`
	GeneratedAudio *GeneratedAudio `json:"generatedAudio,omitempty"`
}

type CombineVideosRequest struct {
	Videos           []ClipRef `json:"videos"`
	AccessToken      string    `json:"accessToken"`
	OpenAIAPIKey     string    `json:"openaiApiKey,omitempty"`
	GeminiAPIKey     string    `json:"geminiApiKey,omitempty"`
	ElevenLabsAPIKey string    `json:"elevenLabsApiKey,omitempty"`
	EnableSubtitles  bool      `json:"enableSubtitles,omitempty"`
	SubtitleMode     string    `json:"subtitleMode,omitempty"` // "sidecar" (default) or "burn"
	ScheduleID       string    `json:"scheduleId,omitempty"`
}

type ProcessedVideo struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"` // rounded seconds
}

type GeneratedScript struct {
	Script      string    `json:"script"`
	Theme       string    `json:"theme"`
	TokensUsed  int       `json:"tokensUsed"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type CombineVideosResponse struct {
	Success            bool             `json:"success"`
	JobID              uuid.UUID        `json:"jobId"`
	Filename           string           `json:"filename"`
	DownloadURL        string           `json:"downloadUrl"`
	VideosProcessed    int              `json:"videosProcessed"`
	TotalDuration      int              `json:"totalDuration"` // rounded seconds
	FileSize           string           `json:"fileSize"`      // e.g. "42MB"
	HasAudio           bool             `json:"hasAudio"`
	HasBackgroundMusic bool             `json:"hasBackgroundMusic"`
	HasSubtitles       bool             `json:"hasSubtitles"`
	SubtitleURL        *string          `json:"subtitleUrl,omitempty"`
	ProcessedVideos    []ProcessedVideo `json:"processedVideos"`
	GeneratedScript    *GeneratedScript `json:"generatedScript"`
}

type YouTubeCredentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectUri"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type UploadToYouTubeRequest struct {
	Filename           string              `json:"filename"`
	Title              string              `json:"title"`
	Script             string              `json:"script,omitempty"` // used to auto-generate title/description when title is empty
	Description        string              `json:"description,omitempty"`
	Tags               []string            `json:"tags,omitempty"`
	PrivacyStatus      string              `json:"privacyStatus,omitempty"` // private, unlisted, public
	CategoryID         string              `json:"categoryId,omitempty"`
	YouTubeCredentials *YouTubeCredentials `json:"youtubeCredentials"`
}

type UploadMetadata struct {
	Filename      string   `json:"filename"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	PrivacyStatus string   `json:"privacyStatus"`
}

type UploadToYouTubeResponse struct {
	Success  bool           `json:"success"`
	UploadID uuid.UUID      `json:"uploadId"`
	YouTube  UploadResult   `json:"youtube"`
	Metadata UploadMetadata `json:"metadata"`
}

type FileInfo struct {
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"sizeBytes"`
	SizeMB      float64   `json:"sizeMB"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
	AgeHours    float64   `json:"ageHours"`
	DownloadURL string    `json:"downloadUrl"`
}

type FileSummary struct {
	TotalFiles  int     `json:"totalFiles"`
	TotalSizeMB float64 `json:"totalSizeMB"`
	VideoFiles  int     `json:"videoFiles"`
	AudioFiles  int     `json:"audioFiles"`
	OtherFiles  int     `json:"otherFiles"`
}

type ListFilesResponse struct {
	Success bool        `json:"success"`
	Files   []FileInfo  `json:"files"`
	Summary FileSummary `json:"summary"`
}

type CleanupRequest struct {
	// Pointer so an explicit 0 ("delete everything") is distinguishable
	// from an absent field (use the configured retention window).
	OlderThanHours *float64 `json:"olderThanHours"`
}

type CleanupSummary struct {
	FilesDeleted       int     `json:"filesDeleted"`
	TotalSizeDeletedMB float64 `json:"totalSizeDeletedMB"`
}

type CleanupResponse struct {
	Success bool           `json:"success"`
	Summary CleanupSummary `json:"summary"`
}

type SubmitJobResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status JobStatus `json:"status"`
}
