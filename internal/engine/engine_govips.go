//go:build govips && cgo

package engine

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
)

type vipsEngine struct {
	opts Options
}

func (e *vipsEngine) Name() string {
	return "libvips"
}

func (e *vipsEngine) Open(ctx context.Context, data []byte) (Handle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	// Decoding waits for Metadata or Encode so output negotiation never
	// depends on whether the input is readable.
	return &vipsHandle{opts: e.opts, data: data}, nil
}

// vipsHandle owns a libvips image only for the duration of Metadata or
// Encode; both load it and release it before returning.
type vipsHandle struct {
	pending
	opts Options
	data []byte
	img  *vips.ImageRef
}

func (h *vipsHandle) load() error {
	if len(h.data) == 0 {
		return fmt.Errorf("%w: empty input", ErrUnsupportedInput)
	}
	img, err := vips.NewImageFromBuffer(h.data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedInput, err)
	}
	h.img = img
	return nil
}

func (h *vipsHandle) release() {
	if h.img != nil {
		h.img.Close()
		h.img = nil
	}
}

func (h *vipsHandle) Metadata(ctx context.Context) (Metadata, error) {
	if err := h.finalize(); err != nil {
		return Metadata{}, err
	}
	select {
	case <-ctx.Done():
		return Metadata{}, ctx.Err()
	default:
	}

	if err := h.load(); err != nil {
		return Metadata{}, err
	}
	defer h.release()

	return Metadata{
		Format: vipsFormatTag(h.img.Format()),
		Size:   len(h.data),
		Width:  h.img.Width(),
		Height: h.img.Height(),
	}, nil
}

func (h *vipsHandle) Encode(ctx context.Context, codec Codec) ([]byte, error) {
	if err := h.finalize(); err != nil {
		return nil, err
	}

	switch codec {
	case CodecJPEG, CodecPNG, CodecWebP, CodecAVIF:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}

	if err := h.load(); err != nil {
		return nil, err
	}
	defer h.release()

	if err := h.checkBudget(h.img.Width(), h.img.Height(), h.opts.MaxPixels); err != nil {
		return nil, err
	}

	for _, op := range h.ops {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var err error
		switch op.kind {
		case opRotate:
			err = h.rotate(op.degrees)
		case opResize:
			err = h.contain(op.width, op.height)
		}
		if err != nil {
			return nil, err
		}
	}

	return h.export(codec)
}

func (h *vipsHandle) Close() {
	h.closed = true
	h.release()
	h.data = nil
}

func (h *vipsHandle) background() *vips.ColorRGBA {
	bg := h.opts.Background
	return &vips.ColorRGBA{R: bg.R, G: bg.G, B: bg.B, A: bg.A}
}

// ensureAlpha converts the image to four-band sRGB so the RGBA background
// has one value per band.
func (h *vipsHandle) ensureAlpha() error {
	if h.img.Bands() < 3 {
		if err := h.img.ToColorSpace(vips.InterpretationSRGB); err != nil {
			return fmt.Errorf("convert to srgb: %w", err)
		}
	}
	if h.img.HasAlpha() {
		return nil
	}
	if err := h.img.AddAlpha(); err != nil {
		return fmt.Errorf("add alpha band: %w", err)
	}
	return nil
}

func (h *vipsHandle) rotate(degrees float64) error {
	if d, ok := rightAngle(degrees); ok {
		var angle vips.Angle
		switch d {
		case 0:
			return nil
		case 90:
			angle = vips.Angle90
		case 180:
			angle = vips.Angle180
		default:
			angle = vips.Angle270
		}
		if err := h.img.Rotate(angle); err != nil {
			return fmt.Errorf("rotate image: %w", err)
		}
		return nil
	}

	if err := h.ensureAlpha(); err != nil {
		return err
	}
	// libvips similarity rotates clockwise for positive angles.
	if err := h.img.Similarity(1.0, degrees, h.background(), 0, 0, 0, 0); err != nil {
		return fmt.Errorf("rotate image: %w", err)
	}
	return nil
}

func (h *vipsHandle) contain(width, height int) error {
	srcW, srcH := h.img.Width(), h.img.Height()
	if srcW <= 0 || srcH <= 0 {
		return fmt.Errorf("source image has invalid dimensions")
	}

	fitW, fitH, canvasW, canvasH := containSize(srcW, srcH, width, height)
	hscale := float64(fitW) / float64(srcW)
	vscale := float64(fitH) / float64(srcH)
	if err := h.img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize image: %w", err)
	}

	if fitW == canvasW && fitH == canvasH {
		return nil
	}
	if err := h.ensureAlpha(); err != nil {
		return err
	}
	left := (canvasW - h.img.Width()) / 2
	top := (canvasH - h.img.Height()) / 2
	if err := h.img.EmbedBackgroundRGBA(left, top, canvasW, canvasH, h.background()); err != nil {
		return fmt.Errorf("pad image: %w", err)
	}
	return nil
}

func (h *vipsHandle) export(codec Codec) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	switch codec {
	case CodecJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = h.opts.Quality
		data, _, err = h.img.ExportJpeg(params)
	case CodecPNG:
		data, _, err = h.img.ExportPng(vips.NewPngExportParams())
	case CodecWebP:
		params := vips.NewWebpExportParams()
		params.Quality = h.opts.Quality
		data, _, err = h.img.ExportWebp(params)
	case CodecAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = h.opts.Quality
		data, _, err = h.img.ExportAvif(params)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", codec, err)
	}
	return data, nil
}

func vipsFormatTag(t vips.ImageType) string {
	switch t {
	case vips.ImageTypeJPEG:
		return "jpeg"
	case vips.ImageTypePNG:
		return "png"
	case vips.ImageTypeGIF:
		return "gif"
	case vips.ImageTypeWEBP:
		return "webp"
	case vips.ImageTypeAVIF:
		return "avif"
	case vips.ImageTypeSVG:
		return "svg"
	case vips.ImageTypeHEIF:
		return "heif"
	case vips.ImageTypeTIFF:
		return "tiff"
	case vips.ImageTypeBMP:
		return "bmp"
	default:
		return ""
	}
}
