package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dailydream/studio/internal/retry"
)

// ---------------------------------------------------------------------------
// Google Drive download client
// Streams files by opaque id using a caller-supplied bearer token. Downloads
// run one at a time inside a job; per-file failures are reported back so the
// batch can continue without the broken clip.
// ---------------------------------------------------------------------------

const (
	driveBaseURL = "https://www.googleapis.com/drive/v3/files"

	// Connect vs. total-transfer timeouts differ: a stalled handshake fails
	// fast, a large healthy transfer gets the full window.
	driveConnectTimeout  = 60 * time.Second
	driveTransferTimeout = 5 * time.Minute

	// Progress log granularity
	progressLogStepBytes = 10 * 1024 * 1024
)

type DriveService struct {
	baseURL string
	client  *http.Client
}

func NewDriveService() *DriveService {
	return &DriveService{
		baseURL: driveBaseURL,
		client: &http.Client{
			// No client-level timeout: the total-transfer deadline comes from
			// the request context so large files aren't cut off mid-stream.
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: driveConnectTimeout,
				}).DialContext,
				ResponseHeaderTimeout: driveConnectTimeout,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   20,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// NewDriveServiceWithBaseURL is used by tests to point the client at a stub.
func NewDriveServiceWithBaseURL(baseURL string) *DriveService {
	s := NewDriveService()
	s.baseURL = baseURL
	return s
}

// DownloadFile streams the remote file identified by fileID to destPath.
// Transient failures retry; each attempt is bounded by a 5-minute transfer
// deadline. A zero-byte result is treated as a failure.
func (s *DriveService) DownloadFile(ctx context.Context, fileID, accessToken, destPath string) (int64, error) {
	log.Printf("[Drive] [%s] Starting download to %s", fileID, destPath)

	policy := retry.Policy{
		MaxAttempts:       3,
		BaseDelay:         2 * time.Second,
		MaxDelay:          10 * time.Second,
		PerAttemptTimeout: driveTransferTimeout,
	}

	var written int64
	err := policy.Do(ctx, "drive download "+fileID, func(ctx context.Context) error {
		n, err := s.downloadOnce(ctx, fileID, accessToken, destPath)
		if err != nil {
			return err
		}
		written = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[Drive] [%s] Download completed - %dMB", fileID, written/(1024*1024))
	return written, nil
}

// downloadOnce performs one transfer attempt. Auth and not-found responses
// abort the retry loop; server-side and network failures are retried.
func (s *DriveService) downloadOnce(ctx context.Context, fileID, accessToken, destPath string) (int64, error) {
	url := fmt.Sprintf("%s/%s?alt=media", s.baseURL, fileID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create drive request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("drive request failed for %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("drive returned status %d for %s: %s", resp.StatusCode, fileID, string(body))
		if !retry.RetryableStatus(resp.StatusCode) {
			return 0, retry.Abort(err)
		}
		return 0, err
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	written, err := copyWithProgress(out, resp.Body, fileID)
	closeErr := out.Close()
	if err != nil {
		os.Remove(destPath)
		wrapped := fmt.Errorf("download of %s interrupted after %d bytes: %w", fileID, written, err)
		if !retry.RetryableError(err) {
			return 0, retry.Abort(wrapped)
		}
		return 0, wrapped
	}
	if closeErr != nil {
		os.Remove(destPath)
		return 0, fmt.Errorf("failed to finalize %s: %w", destPath, closeErr)
	}

	if written == 0 {
		os.Remove(destPath)
		return 0, retry.Abort(fmt.Errorf("downloaded file is empty: %s", fileID))
	}

	return written, nil
}

// copyWithProgress copies src to dst logging every progressLogStepBytes.
func copyWithProgress(dst io.Writer, src io.Reader, fileID string) (int64, error) {
	var written int64
	var lastLogged int64
	buf := make([]byte, 256*1024)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if written-lastLogged >= progressLogStepBytes {
				log.Printf("[Drive] [%s] Downloaded: %dMB", fileID, written/(1024*1024))
				lastLogged = written
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
