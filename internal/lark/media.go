package lark

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

const mediaDownloadTimeout = 60 * time.Second

var (
	imageExtPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|bmp)(\?|$)`)
	videoExtPattern = regexp.MustCompile(`(?i)\.(mp4|mov|avi|mkv|webm)(\?|$)`)
	audioExtPattern = regexp.MustCompile(`(?i)\.(mp3|wav|ogg|m4a|aac|opus)(\?|$)`)
	extPattern      = regexp.MustCompile(`\.([a-zA-Z0-9]+)(\?|$)`)
)

// classifyMedia detects the media kind from the URL extension first, then the
// mime type, defaulting to a generic file.
func classifyMedia(url, mimeType string) MediaKind {
	switch {
	case imageExtPattern.MatchString(url):
		return MediaKindImage
	case videoExtPattern.MatchString(url):
		return MediaKindVideo
	case audioExtPattern.MatchString(url):
		return MediaKindAudio
	}
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MediaKindImage
	case strings.HasPrefix(mimeType, "video/"):
		return MediaKindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return MediaKindAudio
	}
	return MediaKindFile
}

// fileExtension extracts the lowercase extension from a URL, defaulting to "bin".
func fileExtension(url string) string {
	match := extPattern.FindStringSubmatch(url)
	if match == nil {
		return "bin"
	}
	return strings.ToLower(match[1])
}

// mediaTransfer tracks a media source for the duration of one send call. The
// local file, when temporary, must be released on every exit path.
type mediaTransfer struct {
	sourceURL string
	localPath string
	isTemp    bool
	mime      string
}

// cleanup removes the downloaded temp file. Local paths passed in by the
// caller are never deleted.
func (t *mediaTransfer) cleanup() {
	if t == nil || !t.isTemp || t.localPath == "" {
		return
	}
	_ = os.Remove(t.localPath)
}

// downloadToTempFile fetches url into a temporary file, following redirects.
// Local paths and file:// URIs are reused verbatim without copying.
func downloadToTempFile(ctx context.Context, url string) (*mediaTransfer, error) {
	if strings.HasPrefix(url, "/") || strings.HasPrefix(url, "file://") {
		return &mediaTransfer{
			sourceURL: url,
			localPath: strings.TrimPrefix(url, "file://"),
			isTemp:    false,
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	client := &http.Client{Timeout: mediaDownloadTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download media: HTTP %d", resp.StatusCode)
	}

	file, err := os.CreateTemp("", "lark_*."+fileExtension(url))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return &mediaTransfer{
		sourceURL: url,
		localPath: file.Name(),
		isTemp:    true,
		mime:      mime,
	}, nil
}
