package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpegService
// Wraps the external video-processing engine behind four transformations:
// per-clip normalization, concatenation, narration audio replacement, and
// background music mixing. Each transformation writes a new file; input
// lifecycle is owned by the caller.
// ---------------------------------------------------------------------------

// Normalization target — every clip is re-encoded to this profile so the
// later concat-by-copy is container-compatible.
const (
	normalizeWidth   = 1280
	normalizeHeight  = 720
	normalizeFPS     = 30
	normalizeAudioHz = 44100

	// Background music sits well under the narration
	musicGain = 0.06
)

type FFmpegService struct {
	ffmpegBin  string
	ffprobeBin string
}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{
		ffmpegBin:  "ffmpeg",
		ffprobeBin: "ffprobe",
	}
}

// Available reports whether the ffmpeg binary can be found on PATH.
func (s *FFmpegService) Available() bool {
	_, err := exec.LookPath(s.ffmpegBin)
	return err == nil
}

func (s *FFmpegService) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, s.ffmpegBin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// NormalizeArgs builds the re-encode flags for a single clip: fixed
// resolution, frame rate, pixel format, and audio sample rate.
func NormalizeArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-s", fmt.Sprintf("%dx%d", normalizeWidth, normalizeHeight),
		"-r", strconv.Itoa(normalizeFPS),
		"-b:v", "2000k",
		"-b:a", "128k",
		"-ar", strconv.Itoa(normalizeAudioHz),
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-y",
		outputPath,
	}
}

// Normalize re-encodes a clip to the common profile.
func (s *FFmpegService) Normalize(ctx context.Context, inputPath, outputPath string) error {
	log.Printf("[FFmpeg] Normalizing %s", filepath.Base(inputPath))

	if err := s.run(ctx, NormalizeArgs(inputPath, outputPath)); err != nil {
		return fmt.Errorf("ffmpeg normalize failed for %s: %w", filepath.Base(inputPath), err)
	}
	return nil
}

// Concatenate joins normalized clips in input order with the concat demuxer
// (no re-encode). The file list is written next to the first clip.
func (s *FFmpegService) Concatenate(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(clipPaths[0]), "filelist.txt")
	var sb strings.Builder
	for _, p := range clipPaths {
		fmt.Fprintf(&sb, "file '%s'\n", p)
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	log.Printf("[FFmpeg] Concatenating %d clips", len(clipPaths))

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

// ReplaceAudioPlan describes how the video is fitted to the narration length.
// The video is never speed-adjusted: a short video loops, a long one is
// trimmed, and in both cases the output runs exactly the narration length.
type ReplaceAudioPlan struct {
	LoopCount int     // total plays of the video (1 = no looping)
	TrimTo    float64 // output duration in seconds (the narration length)
}

// PlanReplaceAudio compares durations and picks the loop-or-trim branch.
func PlanReplaceAudio(videoDur, audioDur float64) ReplaceAudioPlan {
	plan := ReplaceAudioPlan{LoopCount: 1, TrimTo: audioDur}
	if videoDur < audioDur {
		plan.LoopCount = int(math.Ceil(audioDur / videoDur))
	}
	return plan
}

// ReplaceAudioArgs builds the flags that drop the original audio track and
// map the narration in. The loop branch re-encodes so the trim lands on the
// exact narration length; the trim branch copies the video stream.
func ReplaceAudioArgs(videoPath, audioPath, outputPath string, plan ReplaceAudioPlan) []string {
	args := []string{}
	if plan.LoopCount > 1 {
		args = append(args, "-stream_loop", strconv.Itoa(plan.LoopCount-1))
	}
	args = append(args,
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-t", fmt.Sprintf("%.3f", plan.TrimTo),
	)
	if plan.LoopCount > 1 {
		args = append(args, "-c:v", "libx264", "-preset", "fast", "-crf", "23")
	} else {
		args = append(args, "-c:v", "copy")
	}
	args = append(args, "-c:a", "aac", "-y", outputPath)
	return args
}

// ReplaceAudio replaces the video's audio track with the narration, looping
// or trimming the video so the output matches the narration duration.
func (s *FFmpegService) ReplaceAudio(ctx context.Context, videoPath, audioPath, outputPath string) error {
	videoDur, err := s.ProbeDuration(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("failed to probe video duration: %w", err)
	}
	audioDur, err := s.ProbeDuration(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("failed to probe audio duration: %w", err)
	}

	plan := PlanReplaceAudio(videoDur, audioDur)
	if plan.LoopCount > 1 {
		log.Printf("[FFmpeg] Video (%.1fs) shorter than narration (%.1fs), looping %dx and trimming",
			videoDur, audioDur, plan.LoopCount)
	} else {
		log.Printf("[FFmpeg] Video (%.1fs) covers narration (%.1fs), trimming to narration length",
			videoDur, audioDur)
	}

	if err := s.run(ctx, ReplaceAudioArgs(videoPath, audioPath, outputPath, plan)); err != nil {
		return fmt.Errorf("ffmpeg audio replacement failed: %w", err)
	}
	return nil
}

// MixMusicArgs builds the background-music flags: the music loops under the
// narration at a low fixed gain and is cut when the video ends; the video
// stream is copied unchanged.
func MixMusicArgs(videoPath, musicPath, outputPath string) []string {
	filterComplex := fmt.Sprintf(
		"[0:a]volume=1.0[narration];[1:a]volume=%.2f[music];[narration][music]amix=inputs=2:duration=first:dropout_transition=3[aout]",
		musicGain,
	)

	return []string{
		"-i", videoPath,
		"-stream_loop", "-1",
		"-i", musicPath,
		"-filter_complex", filterComplex,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-y",
		outputPath,
	}
}

// MixBackgroundMusic mixes the configured music file under the existing
// audio. Missing music is a no-op reported to the caller.
func (s *FFmpegService) MixBackgroundMusic(ctx context.Context, videoPath, musicPath, outputPath string) (bool, error) {
	if musicPath == "" {
		log.Printf("[FFmpeg] No background music path configured, skipping")
		return false, nil
	}
	if _, err := os.Stat(musicPath); os.IsNotExist(err) {
		log.Printf("[FFmpeg] Background music file not found at %s, skipping", musicPath)
		return false, nil
	}

	log.Printf("[FFmpeg] Mixing background music from %s", musicPath)

	if err := s.run(ctx, MixMusicArgs(videoPath, musicPath, outputPath)); err != nil {
		return false, fmt.Errorf("ffmpeg music mix failed: %w", err)
	}
	return true, nil
}

// BurnSubtitles re-encodes the video with the subtitle file rendered in.
func (s *FFmpegService) BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error {
	log.Printf("[FFmpeg] Burning subtitles from %s", subtitlePath)

	args := []string{
		"-i", videoPath,
		"-vf", fmt.Sprintf("subtitles='%s'", escapeFilterPath(subtitlePath)),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "copy",
		"-y",
		outputPath,
	}

	if err := s.run(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg subtitle burn failed: %w", err)
	}
	return nil
}

// ProbeDuration returns a media file's duration in seconds using ffprobe.
func (s *FFmpegService) ProbeDuration(ctx context.Context, mediaPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	}

	cmd := exec.CommandContext(ctx, s.ffprobeBin, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", filepath.Base(mediaPath), err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration for %s: %w", filepath.Base(mediaPath), err)
	}

	return durationSec, nil
}

// escapeFilterPath escapes special characters in file paths for FFmpeg
// filter syntax (colons, backslashes, and single quotes are significant).
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}
