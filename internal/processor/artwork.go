package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF format support
	_ "image/jpeg" // JPEG format support
	_ "image/png"  // PNG format support

	"github.com/disintegration/imaging"
	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/webp" // WEBP format support
)

const jpegQuality = 90

// ArtworkProcessor validates artwork by decoding it and shrinks covers larger than the configured edge
type ArtworkProcessor struct {
	logger  *zap.Logger
	maxEdge int // 0 disables downscaling
}

// NewArtworkProcessor creates a processor bound to the artwork settings
func NewArtworkProcessor(logger *zap.Logger, settings domain.Settings) *ArtworkProcessor {
	return &ArtworkProcessor{
		logger:  logger.Named("processor"),
		maxEdge: settings.ArtworkMaxEdge(),
	}
}

// Process implements domain.ImageProcessor.
// Images within bounds are returned untouched; larger ones are fitted and re-encoded
// (PNG stays PNG to keep transparency, everything else becomes JPEG).
func (p *ArtworkProcessor) Process(ctx context.Context, imageData []byte) ([]byte, error) {
	if len(imageData) == 0 {
		return nil, domain.InvalidArtwork("empty image data")
	}

	// 1. Decode image from bytes
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, domain.InvalidArtwork(fmt.Sprintf("failed to decode image: %v", err))
	}

	// Validate image dimensions
	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, domain.InvalidArtwork(fmt.Sprintf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy()))
	}

	if p.maxEdge == 0 || (bounds.Dx() <= p.maxEdge && bounds.Dy() <= p.maxEdge) {
		return imageData, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Fit inside maxEdge x maxEdge, keeping the aspect ratio
	p.logger.Debug("Downscaling artwork",
		zap.String("format", format),
		zap.Int("w", bounds.Dx()),
		zap.Int("h", bounds.Dy()),
		zap.Int("maxEdge", p.maxEdge))
	fitted := imaging.Fit(img, p.maxEdge, p.maxEdge, imaging.Lanczos)

	// 3. Encode result (in-memory buffer)
	out := imaging.JPEG
	if format == "png" {
		out = imaging.PNG
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, fitted, out, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode artwork: %w", err)
	}

	p.logger.Debug("Artwork processed successfully", zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
