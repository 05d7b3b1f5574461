// Package s3 uploads written images to object storage through pre-signed
// URLs. Each file is PUT to <prefix>/<basename>, so the prefix must be a
// location that accepts unauthenticated PUTs, such as a pre-signed bucket
// path or an upload proxy.
package s3

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/dprepgo/internal/ctxlog"
)

// DefaultTimeout bounds a single upload request.
const DefaultTimeout = 5 * time.Minute

// NewClient returns a pooled client shared by all uploads of a run.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Uploader PUTs files below a URL prefix.
type Uploader struct {
	prefix *url.URL
	client *http.Client
}

// NewUploader parses the prefix. A nil client selects NewClient(DefaultTimeout).
func NewUploader(prefix string, client *http.Client) (*Uploader, error) {
	u, err := url.Parse(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to parse upload url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upload url %q must be http or https", prefix)
	}
	if client == nil {
		client = NewClient(DefaultTimeout)
	}
	return &Uploader{prefix: u, client: client}, nil
}

// URLFor returns the destination of a local file.
func (u *Uploader) URLFor(path string) string {
	dst := *u.prefix
	dst.Path = strings.TrimSuffix(dst.Path, "/") + "/" + filepath.Base(path)
	dst.RawPath = ""
	return dst.String()
}

// Upload sends the file at path. Any status other than 200 is an error.
func (u *Uploader) Upload(ctx context.Context, path string) error {
	dst := u.URLFor(path)
	logger := ctxlog.FromContext(ctx).With("action", "upload", "source", path)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file '%s': %w", path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file stats for '%s': %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dst, file)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Debug("Uploading file.", "url", dst, "size", stat.Size(), "contentType", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload of %s failed with status: %s", filepath.Base(path), resp.Status)
	}

	logger.Info("Uploaded image.", "url", dst, "status", resp.Status)
	return nil
}

// Close releases idle connections.
func (u *Uploader) Close() {
	u.client.CloseIdleConnections()
}
