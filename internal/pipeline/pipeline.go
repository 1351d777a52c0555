package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dailydream/studio/internal/models"
	"github.com/dailydream/studio/internal/services"
)

// ---------------------------------------------------------------------------
// Combine pipeline
// Orchestrates one job end to end: fetch clips, generate the narration
// script, synthesize speech, assemble the video, and stage the result for
// download. Collaborator failures degrade the output where possible —
// a job only dies when no video can be produced at all.
// ---------------------------------------------------------------------------

// Stage names used in outcomes and logs.
const (
	StageFetch     = "fetch"
	StageNormalize = "normalize"
	StageScript    = "script"
	StageNarration = "narration"
	StageConcat    = "concatenate"
	StageAudio     = "replace-audio"
	StageMusic     = "mix-music"
	StageSubtitles = "subtitles"
)

// ClipFetcher downloads a remote clip to local storage.
type ClipFetcher interface {
	DownloadFile(ctx context.Context, fileID, accessToken, destPath string) (int64, error)
}

// Assembler runs the video transformations.
type Assembler interface {
	Normalize(ctx context.Context, inputPath, outputPath string) error
	Concatenate(ctx context.Context, clipPaths []string, outputPath string) error
	ReplaceAudio(ctx context.Context, videoPath, audioPath, outputPath string) error
	MixBackgroundMusic(ctx context.Context, videoPath, musicPath, outputPath string) (bool, error)
	BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error
	ProbeDuration(ctx context.Context, mediaPath string) (float64, error)
}

// Narrator converts script text to a speech audio file.
type Narrator interface {
	SynthesizeToFile(ctx context.Context, text, outputPath, apiKey string) (*services.SynthesisResult, error)
}

// SubtitleWriter renders a script as a timed subtitle file.
type SubtitleWriter interface {
	WriteSRT(script string, videoDuration time.Duration, outputPath string) error
}

// Config carries the directories and server-side fallback keys. Keys in the
// job request always take precedence over these.
type Config struct {
	TempDir             string
	OutputDir           string
	BackgroundMusicPath string
	OpenAIKey           string
	GeminiKey           string
	ElevenLabsKey       string
}

// CombineJob is one unit of work, submitted directly or via the queue.
type CombineJob struct {
	ID      uuid.UUID                   `json:"id"`
	Request models.CombineVideosRequest `json:"request"`
}

type Pipeline struct {
	cfg       Config
	fetcher   ClipFetcher
	assembler Assembler
	narrator  Narrator
	subtitler SubtitleWriter

	// scriptProviderFor is swappable in tests
	scriptProviderFor func(openaiKey, geminiKey string) services.ScriptService

	// OnStatus, when set, is invoked at each lifecycle transition.
	OnStatus func(jobID uuid.UUID, status models.JobStatus)
}

func New(cfg Config, fetcher ClipFetcher, assembler Assembler, narrator Narrator, subtitler SubtitleWriter) *Pipeline {
	return &Pipeline{
		cfg:               cfg,
		fetcher:           fetcher,
		assembler:         assembler,
		narrator:          narrator,
		subtitler:         subtitler,
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

func (p *Pipeline) setStatus(jobID uuid.UUID, status models.JobStatus) {
	if p.OnStatus != nil {
		p.OnStatus(jobID, status)
	}
}

// pick returns the request-supplied key if present, else the server default.
func pick(requestKey, serverKey string) string {
	if requestKey != "" {
		return requestKey
	}
	return serverKey
}

// Run executes one combine job. The returned response describes the produced
// video and which enrichments made it in; err is non-nil only when no video
// could be produced.
func (p *Pipeline) Run(ctx context.Context, job CombineJob) (*models.CombineVideosResponse, *JobOutcome, error) {
	outcome := &JobOutcome{}

	if len(job.Request.Videos) == 0 {
		err := fmt.Errorf("no videos provided")
		outcome.Fatal(StageFetch, err)
		return nil, outcome, err
	}
	if job.Request.AccessToken == "" {
		err := fmt.Errorf("access token is required to download videos")
		outcome.Fatal(StageFetch, err)
		return nil, outcome, err
	}

	jc, err := NewJobContext(p.cfg.TempDir, job.ID)
	if err != nil {
		outcome.Fatal(StageFetch, err)
		return nil, outcome, err
	}
	defer jc.Cleanup()

	log.Printf("[Pipeline] Job %s started (%d clips)", job.ID, len(job.Request.Videos))

	// --- Fetch ---------------------------------------------------------
	p.setStatus(job.ID, models.JobStatusDownloading)
	clips := p.fetchClips(ctx, jc, job.Request)
	if len(clips) == 0 {
		err := fmt.Errorf("all %d clip downloads failed", len(job.Request.Videos))
		outcome.Fatal(StageFetch, err)
		return nil, outcome, err
	}
	if len(clips) < len(job.Request.Videos) {
		outcome.Degrade(StageFetch, fmt.Errorf("%d of %d clips failed to download",
			len(job.Request.Videos)-len(clips), len(job.Request.Videos)))
	} else {
		outcome.OK(StageFetch)
	}

	// --- Normalize -----------------------------------------------------
	normalized := p.normalizeClips(ctx, jc, clips)
	if len(normalized) == 0 {
		err := fmt.Errorf("all clips failed normalization")
		outcome.Fatal(StageNormalize, err)
		return nil, outcome, err
	}
	if len(normalized) < len(clips) {
		outcome.Degrade(StageNormalize, fmt.Errorf("%d clips failed normalization", len(clips)-len(normalized)))
	} else {
		outcome.OK(StageNormalize)
	}

	// --- Script --------------------------------------------------------
	p.setStatus(job.ID, models.JobStatusScripting)
	script := p.generateScript(ctx, job.Request, outcome)

	// --- Narration -----------------------------------------------------
	var narrationPath string
	if script != nil {
		p.setStatus(job.ID, models.JobStatusNarrating)
		narrationPath = p.synthesizeNarration(ctx, jc, script, job.Request, outcome)
	}

	// --- Assemble ------------------------------------------------------
	p.setStatus(job.ID, models.JobStatusAssembling)

	var paths []string
	for _, c := range normalized {
		paths = append(paths, c.Path)
	}

	current := jc.Path("combined.mp4")
	if err := p.assembler.Concatenate(ctx, paths, current); err != nil {
		outcome.Fatal(StageConcat, err)
		return nil, outcome, err
	}
	outcome.OK(StageConcat)

	hasAudio := false
	if narrationPath != "" {
		withAudio := jc.Path("with-audio.mp4")
		if err := p.assembler.ReplaceAudio(ctx, current, narrationPath, withAudio); err != nil {
			log.Printf("[Pipeline] Audio replacement failed, keeping silent video: %v", err)
			outcome.Degrade(StageAudio, err)
		} else {
			os.Remove(current)
			current = withAudio
			hasAudio = true
			outcome.OK(StageAudio)
		}
		// Narration audio is an intermediate: it is never retained, even on failure
		os.Remove(narrationPath)
	}

	hasMusic := false
	if hasAudio {
		withMusic := jc.Path("with-music.mp4")
		mixed, err := p.assembler.MixBackgroundMusic(ctx, current, p.cfg.BackgroundMusicPath, withMusic)
		switch {
		case err != nil:
			log.Printf("[Pipeline] Music mix failed, keeping narration-only audio: %v", err)
			outcome.Degrade(StageMusic, err)
		case mixed:
			os.Remove(current)
			current = withMusic
			hasMusic = true
			outcome.OK(StageMusic)
		}
	}

	// --- Subtitles -----------------------------------------------------
	var sidecarSRT string
	hasSubtitles := false
	if job.Request.EnableSubtitles && script != nil {
		p.setStatus(job.ID, models.JobStatusSubtitling)
		sidecarSRT, hasSubtitles = p.applySubtitles(ctx, jc, script.Text, job.Request.SubtitleMode, &current, outcome)
	}

	// --- Stage output --------------------------------------------------
	// Timestamp for readability, job id fragment so concurrent jobs never collide
	outputFilename := fmt.Sprintf("combined-video-%d-%s.mp4", time.Now().Unix(), job.ID.String()[:8])
	outputPath := filepath.Join(p.cfg.OutputDir, outputFilename)
	if err := moveFile(current, outputPath); err != nil {
		err = fmt.Errorf("failed to stage output video: %w", err)
		outcome.Fatal(StageConcat, err)
		return nil, outcome, err
	}

	var subtitleURL *string
	if sidecarSRT != "" {
		srtName := strings.TrimSuffix(outputFilename, ".mp4") + ".srt"
		srtDest := filepath.Join(p.cfg.OutputDir, srtName)
		if err := moveFile(sidecarSRT, srtDest); err != nil {
			log.Printf("[Pipeline] Failed to stage subtitle file: %v", err)
			outcome.Degrade(StageSubtitles, err)
			hasSubtitles = false
		} else {
			u := "/api/download/" + srtName
			subtitleURL = &u
		}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		outcome.Fatal(StageConcat, err)
		return nil, outcome, fmt.Errorf("output video missing after staging: %w", err)
	}

	totalDuration := 0
	if d, err := p.assembler.ProbeDuration(ctx, outputPath); err == nil {
		totalDuration = int(math.Round(d))
	}

	resp := &models.CombineVideosResponse{
		Success:            true,
		JobID:              job.ID,
		Filename:           outputFilename,
		DownloadURL:        "/api/download/" + outputFilename,
		VideosProcessed:    len(normalized),
		TotalDuration:      totalDuration,
		FileSize:           FormatFileSize(info.Size()),
		HasAudio:           hasAudio,
		HasBackgroundMusic: hasMusic,
		HasSubtitles:       hasSubtitles,
		SubtitleURL:        subtitleURL,
		ProcessedVideos:    processedVideos(normalized),
	}
	if script != nil {
		resp.GeneratedScript = &models.GeneratedScript{
			Script:      script.Text,
			Theme:       script.Theme,
			TokensUsed:  script.TokensUsed,
			GeneratedAt: script.GeneratedAt,
		}
	}

	log.Printf("[Pipeline] Job %s complete: %s (%s, audio=%v, music=%v, subtitles=%v, degraded=%v)",
		job.ID, outputFilename, resp.FileSize, hasAudio, hasMusic, hasSubtitles, outcome.Degraded())

	return resp, outcome, nil
}

// fetchClips downloads every requested clip into scratch. Individual failures
// are logged and skipped.
func (p *Pipeline) fetchClips(ctx context.Context, jc *JobContext, req models.CombineVideosRequest) []models.ClipRecord {
	var clips []models.ClipRecord
	for i, ref := range req.Videos {
		dest := jc.Path(fmt.Sprintf("raw-%d.mp4", i))
		if _, err := p.fetcher.DownloadFile(ctx, ref.ID, req.AccessToken, dest); err != nil {
			log.Printf("[Pipeline] Download failed for %q: %v", ref.Name, err)
			continue
		}
		clips = append(clips, models.ClipRecord{
			Path:         dest,
			OriginalName: ref.Name,
		})
	}
	return clips
}

// normalizeClips re-encodes each clip to the common profile and probes its
// duration. Raw clips are removed once their normalized copy exists.
func (p *Pipeline) normalizeClips(ctx context.Context, jc *JobContext, clips []models.ClipRecord) []models.ClipRecord {
	var out []models.ClipRecord
	for i, clip := range clips {
		dest := jc.Path(fmt.Sprintf("norm-%d.mp4", i))
		if err := p.assembler.Normalize(ctx, clip.Path, dest); err != nil {
			log.Printf("[Pipeline] Normalization failed for %q: %v", clip.OriginalName, err)
			continue
		}
		os.Remove(clip.Path)

		duration := 0.0
		if d, err := p.assembler.ProbeDuration(ctx, dest); err == nil {
			duration = d
		}
		out = append(out, models.ClipRecord{
			Path:            dest,
			OriginalName:    clip.OriginalName,
			DurationSeconds: duration,
		})
	}
	return out
}

// generateScript runs whichever text provider the available keys select.
// No provider or a provider failure degrades the job to a silent video.
func (p *Pipeline) generateScript(ctx context.Context, req models.CombineVideosRequest, outcome *JobOutcome) *models.Script {
	provider := p.scriptProviderFor(
		pick(req.OpenAIAPIKey, p.cfg.OpenAIKey),
		pick(req.GeminiAPIKey, p.cfg.GeminiKey),
	)
	if provider == nil {
		outcome.Degrade(StageScript, fmt.Errorf("no script provider key configured"))
		return nil
	}

	result, err := provider.GenerateScript(ctx, services.ScriptRequest{})
	if err != nil {
		log.Printf("[Pipeline] Script generation failed: %v", err)
		outcome.Degrade(StageScript, err)
		return nil
	}

	outcome.OK(StageScript)
	return &models.Script{
		Text:        result.Text,
		Theme:       "motivational",
		TokensUsed:  result.TokensUsed,
		GeneratedAt: time.Now().UTC(),
	}
}

// synthesizeNarration converts the script to speech in scratch storage.
// Failure degrades the job; the video continues without narration.
func (p *Pipeline) synthesizeNarration(ctx context.Context, jc *JobContext, script *models.Script, req models.CombineVideosRequest, outcome *JobOutcome) string {
	apiKey := pick(req.ElevenLabsAPIKey, p.cfg.ElevenLabsKey)
	if apiKey == "" {
		outcome.Degrade(StageNarration, fmt.Errorf("no speech synthesis key configured"))
		return ""
	}

	dest := jc.Path("narration.mp3")
	if _, err := p.narrator.SynthesizeToFile(ctx, script.Text, dest, apiKey); err != nil {
		log.Printf("[Pipeline] Narration synthesis failed: %v", err)
		outcome.Degrade(StageNarration, err)
		return ""
	}

	outcome.OK(StageNarration)
	return dest
}

// applySubtitles renders the script as captions, either as a sidecar .srt
// staged for download or burned into the video. Returns the sidecar path
// (empty for burn mode) and whether subtitles made it into the output.
func (p *Pipeline) applySubtitles(ctx context.Context, jc *JobContext, scriptText, mode string, current *string, outcome *JobOutcome) (string, bool) {
	duration, err := p.assembler.ProbeDuration(ctx, *current)
	if err != nil {
		log.Printf("[Pipeline] Cannot time subtitles without video duration: %v", err)
		outcome.Degrade(StageSubtitles, err)
		return "", false
	}

	srtPath := jc.Path("subtitles.srt")
	if err := p.subtitler.WriteSRT(scriptText, time.Duration(duration*float64(time.Second)), srtPath); err != nil {
		log.Printf("[Pipeline] Subtitle generation failed: %v", err)
		outcome.Degrade(StageSubtitles, err)
		return "", false
	}

	if models.SubtitleMode(mode) == models.SubtitleModeBurn {
		burned := jc.Path("with-subtitles.mp4")
		if err := p.assembler.BurnSubtitles(ctx, *current, srtPath, burned); err != nil {
			log.Printf("[Pipeline] Subtitle burn failed, keeping unsubtitled video: %v", err)
			outcome.Degrade(StageSubtitles, err)
			return "", false
		}
		os.Remove(*current)
		*current = burned
		outcome.OK(StageSubtitles)
		return "", true
	}

	outcome.OK(StageSubtitles)
	return srtPath, true
}

func processedVideos(clips []models.ClipRecord) []models.ProcessedVideo {
	out := make([]models.ProcessedVideo, 0, len(clips))
	for _, c := range clips {
		out = append(out, models.ProcessedVideo{
			Name:     c.OriginalName,
			Duration: int(math.Round(c.DurationSeconds)),
		})
	}
	return out
}

// FormatFileSize renders a byte count the way the download listing shows it.
func FormatFileSize(bytes int64) string {
	mb := float64(bytes) / (1024 * 1024)
	return fmt.Sprintf("%dMB", int(math.Round(mb)))
}

// moveFile renames across directories, falling back to copy+delete when the
// rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile streams src into dst so a large video never sits in memory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
