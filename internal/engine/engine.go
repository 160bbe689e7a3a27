// Package engine abstracts the image codec library behind a per-request
// handle. The pure-Go engine is the default; building with the govips tag
// and cgo enabled switches to libvips.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

var (
	ErrUnsupportedInput = errors.New("unsupported input image")
	ErrUnsupportedCodec = errors.New("unsupported output codec")
	ErrHandleClosed     = errors.New("image handle already finalized")
	ErrOutputTooLarge   = errors.New("image exceeds pixel budget")
)

// DefaultMaxPixels bounds the source and every intermediate image: 64
// megapixels, or 256 MiB as NRGBA.
const DefaultMaxPixels = 64_000_000

// Codec is an encoder target, named by its MIME type.
type Codec string

const (
	CodecAVIF Codec = "image/avif"
	CodecJPEG Codec = "image/jpeg"
	CodecPNG  Codec = "image/png"
	CodecWebP Codec = "image/webp"
)

// Metadata is the engine's view of the decoded input. Format is the engine
// format tag (jpeg, png, svg, ...), empty when the input was not recognized.
// Zero Size, Width or Height means the engine could not supply the value.
type Metadata struct {
	Format string
	Size   int
	Width  int
	Height int
}

// Engine creates handles. Implementations must be safe for concurrent use;
// handles are not.
type Engine interface {
	Name() string
	Open(ctx context.Context, data []byte) (Handle, error)
}

// Handle is one request's image plus its pending operations. Rotate and
// Resize queue work in call order; Metadata or Encode finalizes the handle.
type Handle interface {
	Rotate(degrees float64)
	Resize(width, height int)
	Metadata(ctx context.Context) (Metadata, error)
	Encode(ctx context.Context, codec Codec) ([]byte, error)
	Close()
}

type Options struct {
	// Background fills contain padding and the corners of rotated images.
	Background color.NRGBA
	Quality    int
	// CacheMB bounds the libvips operation cache. Ignored by the pure-Go engine.
	CacheMB int
	// MaxPixels caps width*height of the decoded source and of every image
	// produced while applying operations.
	MaxPixels int
}

func (o Options) withDefaults() Options {
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 80
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// ParseBackground parses a hex colour such as "#ffffff".
func ParseBackground(hex string) (color.NRGBA, error) {
	hex = strings.TrimSpace(hex)
	if hex == "" {
		return color.NRGBA{A: 255}, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parse background %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// New returns the engine compiled into this binary.
func New(opts Options) (Engine, error) {
	return newEngine(opts.withDefaults())
}

type opKind int

const (
	opRotate opKind = iota + 1
	opResize
)

type pendingOp struct {
	kind    opKind
	degrees float64
	width   int
	height  int
}

// pending is the accumulated-but-unapplied state shared by both engines.
type pending struct {
	ops    []pendingOp
	closed bool
}

func (p *pending) Rotate(degrees float64) {
	p.ops = append(p.ops, pendingOp{kind: opRotate, degrees: degrees})
}

func (p *pending) Resize(width, height int) {
	if width <= 0 && height <= 0 {
		return
	}
	p.ops = append(p.ops, pendingOp{kind: opResize, width: max(0, width), height: max(0, height)})
}

func (p *pending) finalize() error {
	if p.closed {
		return ErrHandleClosed
	}
	p.closed = true
	return nil
}

// checkBudget replays the queued operations on dimensions alone and fails
// before any pixel buffer is allocated if a step would exceed maxPixels.
func (p *pending) checkBudget(srcW, srcH, maxPixels int) error {
	w, h := srcW, srcH
	if err := withinBudget(w, h, maxPixels); err != nil {
		return err
	}
	for _, op := range p.ops {
		if w <= 0 || h <= 0 {
			return nil
		}
		switch op.kind {
		case opRotate:
			w, h = rotatedBounds(w, h, op.degrees)
		case opResize:
			_, _, w, h = containSize(w, h, op.width, op.height)
		}
		if err := withinBudget(w, h, maxPixels); err != nil {
			return err
		}
	}
	return nil
}

func withinBudget(w, h, maxPixels int) error {
	if float64(w)*float64(h) > float64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrOutputTooLarge, w, h, maxPixels)
	}
	return nil
}

// rotatedBounds is the canvas size needed to hold a w x h image rotated by
// degrees. Right angles are exact; other angles round up.
func rotatedBounds(w, h int, degrees float64) (int, int) {
	if d, ok := rightAngle(degrees); ok {
		if d == 90 || d == 270 {
			return h, w
		}
		return w, h
	}
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	sin, cos = math.Abs(sin), math.Abs(cos)
	fw, fh := float64(w), float64(h)
	return int(math.Ceil(fw*cos + fh*sin)), int(math.Ceil(fw*sin + fh*cos))
}

// containSize returns the scaled size of a srcW x srcH image fitted inside
// the requested box, and the canvas size. A zero box dimension follows the
// aspect ratio, in which case canvas and fitted size are equal.
func containSize(srcW, srcH, width, height int) (fitW, fitH, canvasW, canvasH int) {
	switch {
	case width > 0 && height > 0:
		scale := min(float64(width)/float64(srcW), float64(height)/float64(srcH))
		fitW = max(1, roundInt(float64(srcW)*scale))
		fitH = max(1, roundInt(float64(srcH)*scale))
		return min(fitW, width), min(fitH, height), width, height
	case width > 0:
		fitH = max(1, roundInt(float64(srcH)*float64(width)/float64(srcW)))
		return width, fitH, width, fitH
	default:
		fitW = max(1, roundInt(float64(srcW)*float64(height)/float64(srcH)))
		return fitW, height, fitW, height
	}
}

func roundInt(v float64) int {
	return int(v + 0.5)
}

// rightAngle reports whether degrees is a multiple of 90, normalized to [0, 360).
func rightAngle(degrees float64) (int, bool) {
	if degrees != float64(int(degrees)) {
		return 0, false
	}
	d := int(degrees) % 360
	if d < 0 {
		d += 360
	}
	return d, d%90 == 0
}
