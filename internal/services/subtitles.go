package services

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Subtitle generation
// Produces an SRT file from the narration script. Cue timing is derived from
// each cue's share of the script's characters spread across the known video
// duration, so no speech alignment service is needed.
// ---------------------------------------------------------------------------

const (
	// Cues longer than this get hard to read on a phone screen
	maxCueChars = 84

	minCueDuration = 1 * time.Second
)

// SubtitleCue is a single timed caption.
type SubtitleCue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

type SubtitleService struct{}

func NewSubtitleService() *SubtitleService {
	return &SubtitleService{}
}

// BuildCues splits the script into readable cues and assigns each a time
// window proportional to its character share of the total duration.
func BuildCues(script string, videoDuration time.Duration) []SubtitleCue {
	chunks := splitCueText(script)
	if len(chunks) == 0 || videoDuration <= 0 {
		return nil
	}

	totalChars := 0
	for _, c := range chunks {
		totalChars += len(c)
	}

	cues := make([]SubtitleCue, 0, len(chunks))
	cursor := time.Duration(0)
	for i, c := range chunks {
		share := time.Duration(float64(videoDuration) * float64(len(c)) / float64(totalChars))
		if share < minCueDuration {
			share = minCueDuration
		}
		end := cursor + share
		if end > videoDuration || i == len(chunks)-1 {
			end = videoDuration
		}
		cues = append(cues, SubtitleCue{
			Index: i + 1,
			Start: cursor,
			End:   end,
			Text:  c,
		})
		cursor = end
	}

	return cues
}

// splitCueText breaks the script into cue-sized chunks on sentence
// boundaries, packing short sentences together and splitting long ones on
// word boundaries.
func splitCueText(script string) []string {
	words := strings.Fields(script)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, w := range words {
		if current.Len() > 0 && current.Len()+1+len(w) > maxCueChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(w)

		// Sentence end closes the cue early so captions track the narration
		if strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?") {
			flush()
		}
	}
	flush()

	return chunks
}

// WriteSRT renders the script as an SRT file at outputPath.
func (s *SubtitleService) WriteSRT(script string, videoDuration time.Duration, outputPath string) error {
	cues := BuildCues(script, videoDuration)
	if len(cues) == 0 {
		return fmt.Errorf("no subtitle cues could be built from script")
	}

	var sb strings.Builder
	for _, cue := range cues {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			cue.Index, formatSRTTime(cue.Start), formatSRTTime(cue.End), cue.Text)
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}

	log.Printf("[Subtitles] Wrote %d cues to %s", len(cues), outputPath)
	return nil
}

// formatSRTTime renders a duration as the SRT timestamp HH:MM:SS,mmm.
func formatSRTTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
