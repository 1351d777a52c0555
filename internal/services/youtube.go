package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/dailydream/studio/internal/models"
)

// ---------------------------------------------------------------------------
// YouTube publisher
// Uploads a finished video with OAuth credentials supplied per request. The
// refresh token drives a self-renewing token source, so a stale access token
// is not an error.
// ---------------------------------------------------------------------------

const (
	// "People & Blogs"
	defaultCategoryID = "22"

	defaultPrivacyStatus = "private"
)

// UploadOptions is the publish metadata for one video.
type UploadOptions struct {
	Title         string
	Description   string
	Tags          []string
	PrivacyStatus string
	CategoryID    string
}

func (o *UploadOptions) applyDefaults() {
	if o.PrivacyStatus == "" {
		o.PrivacyStatus = defaultPrivacyStatus
	}
	if o.CategoryID == "" {
		o.CategoryID = defaultCategoryID
	}
}

type YouTubeService struct{}

func NewYouTubeService() *YouTubeService {
	return &YouTubeService{}
}

func validPrivacyStatus(s string) bool {
	switch s {
	case "private", "unlisted", "public":
		return true
	}
	return false
}

// Upload publishes the video file and returns the hosted video's identity.
func (s *YouTubeService) Upload(ctx context.Context, videoPath string, creds *models.YouTubeCredentials, opts UploadOptions) (*models.UploadResult, error) {
	if creds == nil || creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, fmt.Errorf("youtube credentials require clientId, clientSecret, and refreshToken")
	}
	if strings.TrimSpace(opts.Title) == "" {
		return nil, fmt.Errorf("a video title is required")
	}

	opts.applyDefaults()
	if !validPrivacyStatus(opts.PrivacyStatus) {
		return nil, fmt.Errorf("invalid privacy status %q (want private, unlisted, or public)", opts.PrivacyStatus)
	}

	file, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video for upload: %w", err)
	}
	defer file.Close()

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}

	svc, err := youtube.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       opts.Title,
			Description: opts.Description,
			Tags:        opts.Tags,
			CategoryId:  opts.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           opts.PrivacyStatus,
			SelfDeclaredMadeForKids: false,
		},
	}

	log.Printf("[YouTube] Uploading %s (title=%q, privacy=%s)", videoPath, opts.Title, opts.PrivacyStatus)

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	uploaded, err := call.Media(file).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("youtube upload failed: %w", err)
	}

	log.Printf("[YouTube] Upload complete, video ID %s", uploaded.Id)

	return &models.UploadResult{
		VideoID:       uploaded.Id,
		VideoURL:      fmt.Sprintf("https://www.youtube.com/watch?v=%s", uploaded.Id),
		Title:         opts.Title,
		PrivacyStatus: opts.PrivacyStatus,
		UploadedAt:    time.Now().UTC(),
	}, nil
}
