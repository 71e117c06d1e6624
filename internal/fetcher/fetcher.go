package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

const _maxImageSize = 10 * 1024 * 1024 // 10 MB

// Fetcher resolves artwork references: http(s) URLs, file:// URLs and absolute paths
type Fetcher struct {
	logger  *zap.Logger
	client  *http.Client
	maxSize int64
}

// Option tweaks a Fetcher
type Option func(*Fetcher)

// WithMaxSize overrides the 10 MB download cap
func WithMaxSize(n int64) Option {
	return func(f *Fetcher) { f.maxSize = n }
}

// WithClient replaces the default HTTP client
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New creates a fetcher
func New(logger *zap.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		logger: logger.Named("fetcher"),
		client: &http.Client{
			Timeout: 10 * time.Second, // Essential to prevent blocking a sampling tick
		},
		maxSize: _maxImageSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements domain.Fetcher
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if filepath.IsAbs(ref) {
		return f.readFile(ref)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, domain.InvalidArtwork(fmt.Sprintf("malformed artwork url %q: %v", ref, err))
	}

	switch u.Scheme {
	case "http", "https":
		return f.download(ctx, ref)
	case "file":
		return f.readFile(u.Path)
	default:
		return nil, domain.InvalidArtwork(fmt.Sprintf("unsupported artwork scheme %q", u.Scheme))
	}
}

func (f *Fetcher) download(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "nowplaying/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, domain.InvalidArtwork(fmt.Sprintf("url is not an image: %s", ct))
	}

	data, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Image fetched successfully", zap.Int("bytes", len(data)), zap.String("url", ref))
	return data, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artwork: %w", err)
	}
	defer file.Close()

	data, err := f.readLimited(file)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Image read from disk", zap.Int("bytes", len(data)), zap.String("path", path))
	return data, nil
}

// readLimited reads at most maxSize bytes; anything larger is rejected rather than truncated
func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, domain.InvalidArtwork(fmt.Sprintf("image exceeds %d bytes", f.maxSize))
	}
	return data, nil
}
