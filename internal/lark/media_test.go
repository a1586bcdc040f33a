package lark

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyMedia(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
		mime string
		want MediaKind
	}{
		{name: "jpg extension", url: "https://cdn.example.com/a.jpg", want: MediaKindImage},
		{name: "png with query", url: "https://cdn.example.com/a.PNG?sig=abc", want: MediaKindImage},
		{name: "mp4 extension", url: "https://cdn.example.com/clip.mp4", want: MediaKindVideo},
		{name: "mp3 extension", url: "https://cdn.example.com/song.mp3", want: MediaKindAudio},
		{name: "extension beats mime", url: "https://cdn.example.com/a.jpg", mime: "video/mp4", want: MediaKindImage},
		{name: "mime image fallback", url: "https://cdn.example.com/asset", mime: "image/png", want: MediaKindImage},
		{name: "mime video fallback", url: "https://cdn.example.com/asset", mime: "video/webm", want: MediaKindVideo},
		{name: "mime audio fallback", url: "https://cdn.example.com/asset", mime: "audio/ogg", want: MediaKindAudio},
		{name: "unknown defaults to file", url: "https://cdn.example.com/report.pdf", mime: "application/pdf", want: MediaKindFile},
		{name: "extension not at end", url: "https://example.com/a.jpg/metadata", want: MediaKindFile},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyMedia(tc.url, tc.mime); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestFileExtension(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://example.com/a.JPG":       "jpg",
		"https://example.com/a.mp4?t=1":   "mp4",
		"https://example.com/no-ext":      "bin",
		"https://example.com/a.tar.gz":    "gz",
		"/var/data/report.pdf":            "pdf",
		"https://example.com/.hidden/doc": "bin",
	}
	for url, want := range cases {
		if got := fileExtension(url); got != want {
			t.Fatalf("%s: got %q want %q", url, got, want)
		}
	}
}

func TestDownloadToTempFile_LocalPathPassthrough(t *testing.T) {
	t.Parallel()

	local := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(local, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	transfer, err := downloadToTempFile(context.Background(), local)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transfer.localPath != local || transfer.isTemp {
		t.Fatalf("local path must pass through untouched: %+v", transfer)
	}

	transfer.cleanup()
	if _, err := os.Stat(local); err != nil {
		t.Fatalf("cleanup must not delete caller-owned files: %v", err)
	}
}

func TestDownloadToTempFile_FileURI(t *testing.T) {
	t.Parallel()

	local := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(local, []byte("mp4-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	transfer, err := downloadToTempFile(context.Background(), "file://"+local)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transfer.localPath != local || transfer.isTemp {
		t.Fatalf("file:// must strip the scheme only: %+v", transfer)
	}
}

func TestDownloadToTempFile_HTTPDownload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		_, _ = w.Write([]byte("downloaded-bytes"))
	}))
	defer srv.Close()

	transfer, err := downloadToTempFile(context.Background(), srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transfer.isTemp {
		t.Fatal("downloaded file must be marked temporary")
	}
	if transfer.mime != "image/png" {
		t.Fatalf("mime parameters must be stripped, got %q", transfer.mime)
	}
	data, err := os.ReadFile(transfer.localPath)
	if err != nil {
		t.Fatalf("read temp file: %v", err)
	}
	if string(data) != "downloaded-bytes" {
		t.Fatalf("unexpected content: %q", data)
	}

	transfer.cleanup()
	if _, err := os.Stat(transfer.localPath); !os.IsNotExist(err) {
		t.Fatalf("cleanup must remove temp file, stat err: %v", err)
	}
}

func TestDownloadToTempFile_FollowsRedirect(t *testing.T) {
	t.Parallel()

	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			_, _ = w.Write([]byte("redirected"))
			return
		}
		http.Redirect(w, r, target.URL+"/final", http.StatusFound)
	}))
	defer target.Close()

	transfer, err := downloadToTempFile(context.Background(), target.URL+"/start.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer transfer.cleanup()

	data, err := os.ReadFile(transfer.localPath)
	if err != nil {
		t.Fatalf("read temp file: %v", err)
	}
	if string(data) != "redirected" {
		t.Fatalf("redirect not followed, got %q", data)
	}
}

func TestDownloadToTempFile_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := downloadToTempFile(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
