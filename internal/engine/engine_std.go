package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var formatTags = []struct {
	mime string
	tag  string
}{
	{"image/jpeg", "jpeg"},
	{"image/png", "png"},
	{"image/gif", "gif"},
	{"image/webp", "webp"},
	{"image/avif", "avif"},
	{"image/svg+xml", "svg"},
	{"image/heic", "heif"},
	{"image/heif", "heif"},
	{"image/bmp", "bmp"},
	{"image/tiff", "tiff"},
}

// sniffFormat maps the content of data to an engine format tag.
func sniffFormat(data []byte) string {
	mt := mimetype.Detect(data)
	for _, f := range formatTags {
		if mt.Is(f.mime) {
			return f.tag
		}
	}
	return ""
}

// stdEngine decodes with the standard library and x/image, resamples with
// imaging and encodes JPEG, PNG and lossless WebP. AVIF needs libvips.
type stdEngine struct {
	opts Options
}

func newStdEngine(opts Options) *stdEngine {
	return &stdEngine{opts: opts}
}

// NewStd returns the pure-Go engine regardless of build tags.
func NewStd(opts Options) Engine {
	return newStdEngine(opts.withDefaults())
}

func (e *stdEngine) Name() string {
	return "go"
}

func (e *stdEngine) Open(ctx context.Context, data []byte) (Handle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	// Nothing is decoded here. Undecodable input surfaces from Metadata or
	// Encode, after the caller has had a chance to reject the request.
	return &stdHandle{
		opts:   e.opts,
		data:   data,
		format: sniffFormat(data),
	}, nil
}

type stdHandle struct {
	pending
	opts   Options
	data   []byte
	format string
}

func (h *stdHandle) Metadata(ctx context.Context) (Metadata, error) {
	if err := h.finalize(); err != nil {
		return Metadata{}, err
	}
	select {
	case <-ctx.Done():
		return Metadata{}, ctx.Err()
	default:
	}

	md := Metadata{Format: h.format, Size: len(h.data)}
	if !h.rasterDecodable() {
		return md, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(h.data))
	if err != nil {
		// A truncated header still yields the sniffed format; the caller
		// decides whether missing dimensions are acceptable.
		return md, nil
	}
	md.Width = cfg.Width
	md.Height = cfg.Height
	return md, nil
}

func (h *stdHandle) Encode(ctx context.Context, codec Codec) ([]byte, error) {
	if err := h.finalize(); err != nil {
		return nil, err
	}

	switch codec {
	case CodecJPEG, CodecPNG, CodecWebP:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}

	if !h.rasterDecodable() {
		return nil, fmt.Errorf("%w: format %q cannot be decoded", ErrUnsupportedInput, h.format)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(h.data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode source header: %v", ErrUnsupportedInput, err)
	}
	if err := h.checkBudget(cfg.Width, cfg.Height, h.opts.MaxPixels); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(h.data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode source image: %v", ErrUnsupportedInput, err)
	}

	for _, op := range h.ops {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch op.kind {
		case opRotate:
			// imaging rotates counter-clockwise.
			img = imaging.Rotate(img, -op.degrees, h.opts.Background)
		case opResize:
			img = h.contain(img, op.width, op.height)
		}
	}

	var buf bytes.Buffer
	if err := h.encode(&buf, img, codec); err != nil {
		return nil, fmt.Errorf("encode %s: %w", codec, err)
	}
	return buf.Bytes(), nil
}

func (h *stdHandle) encode(buf *bytes.Buffer, img image.Image, codec Codec) error {
	switch codec {
	case CodecJPEG:
		return imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(h.opts.Quality))
	case CodecPNG:
		return imaging.Encode(buf, img, imaging.PNG)
	default:
		return nativewebp.Encode(buf, img, nil)
	}
}

func (h *stdHandle) Close() {
	h.closed = true
	h.ops = nil
}

func (h *stdHandle) rasterDecodable() bool {
	switch h.format {
	case "jpeg", "png", "gif", "webp", "bmp", "tiff":
		return true
	default:
		return false
	}
}

func (h *stdHandle) contain(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return img
	}

	fitW, fitH, canvasW, canvasH := containSize(bounds.Dx(), bounds.Dy(), width, height)
	fitted := imaging.Resize(img, fitW, fitH, imaging.Lanczos)
	if fitW == canvasW && fitH == canvasH {
		return fitted
	}
	return imaging.PasteCenter(imaging.New(canvasW, canvasH, h.opts.Background), fitted)
}
