package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/dunamismax/imagebinding/internal/domain"
	"github.com/dunamismax/imagebinding/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestJPEG(tb testing.TB, w, h int) []byte {
	tb.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		tb.Fatalf("encode source jpeg: %v", err)
	}
	return buf.Bytes()
}

func newStdProcessor(tb testing.TB) *Processor {
	tb.Helper()
	p, err := NewProcessor(engine.NewStd(engine.Options{}))
	if err != nil {
		tb.Fatalf("new processor: %v", err)
	}
	return p
}

func TestProcessor_ResizeWidthDefaultsToJPEG(t *testing.T) {
	p := newStdProcessor(t)
	list, err := ParseTransforms(`[{"width":50}]`)
	require.NoError(t, err)

	out, err := p.Transform(context.Background(), Request{
		Image:      buildTestJPEG(t, 100, 50),
		Transforms: list,
	})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.ContentType)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, cfg.Width, 50)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestProcessor_OtherImageIndexHasNoEffect(t *testing.T) {
	src := buildTestJPEG(t, 64, 32)

	withOther, err := ParseTransforms(`[{"width":32},{"imageIndex":3,"width":8,"rotate":45}]`)
	require.NoError(t, err)
	without, err := ParseTransforms(`[{"width":32}]`)
	require.NoError(t, err)

	a, err := newStdProcessor(t).Transform(context.Background(), Request{Image: src, Transforms: withOther, OutputFormat: "image/png"})
	require.NoError(t, err)
	b, err := newStdProcessor(t).Transform(context.Background(), Request{Image: src, Transforms: without, OutputFormat: "image/png"})
	require.NoError(t, err)

	assert.Equal(t, b.Data, a.Data)
}

func TestProcessor_InfoRaster(t *testing.T) {
	src := buildTestJPEG(t, 100, 50)
	info, err := newStdProcessor(t).Info(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, domain.ImageInfo{Format: "image/jpeg", FileSize: len(src), Width: 100, Height: 50}, info)
}

func TestProcessor_InfoSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"></svg>`)
	info, err := newStdProcessor(t).Info(context.Background(), svg)
	require.NoError(t, err)

	assert.Equal(t, domain.ImageInfo{Format: "image/svg+xml"}, info)
}

func TestProcessor_InfoUnsupported(t *testing.T) {
	_, err := newStdProcessor(t).Info(context.Background(), []byte("plain text is not an image"))
	bindErr := requireKind(t, err, domain.KindUnsupportedInput)
	assert.Equal(t, 415, bindErr.Status)
}

func TestProcessor_AVIFUnavailableOnGoEngine(t *testing.T) {
	_, err := newStdProcessor(t).Transform(context.Background(), Request{
		Image:        buildTestJPEG(t, 8, 8),
		Transforms:   []any{},
		OutputFormat: "image/avif",
	})
	bindErr := requireKind(t, err, domain.KindUnsupportedOutput)
	assert.Equal(t, "ERROR: AVIF output is not supported by the go engine", bindErr.Message)
}

func TestProcessor_WebPOutput(t *testing.T) {
	out, err := newStdProcessor(t).Transform(context.Background(), Request{
		Image:        buildTestJPEG(t, 8, 8),
		Transforms:   []any{},
		OutputFormat: "image/webp",
	})
	require.NoError(t, err)
	assert.Equal(t, "image/webp", out.ContentType)

	_, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
}

func TestProcessor_OversizedResizeIsRejected(t *testing.T) {
	list, err := ParseTransforms(`[{"width":2147483647}]`)
	require.NoError(t, err)

	_, err = newStdProcessor(t).Transform(context.Background(), Request{
		Image:      buildTestJPEG(t, 100, 50),
		Transforms: list,
	})
	bindErr := requireKind(t, err, domain.KindOutputTooLarge)
	assert.Equal(t, 400, bindErr.Status)
	assert.Equal(t, 9523, bindErr.Code)
}

func TestProcessor_FormatRejectionIgnoresImageContent(t *testing.T) {
	inputs := map[string][]byte{
		"empty":       {},
		"undecodable": []byte("not an image at all"),
	}
	for name, img := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := newStdProcessor(t).Transform(context.Background(), Request{
				Image:        img,
				Transforms:   []any{},
				OutputFormat: "image/gif",
			})
			bindErr := requireKind(t, err, domain.KindUnsupportedOutput)
			assert.Equal(t, "ERROR: GIF output is not supported in local mode", bindErr.Message)

			_, err = newStdProcessor(t).Transform(context.Background(), Request{
				Image:        img,
				Transforms:   []any{},
				OutputFormat: "rgba",
			})
			bindErr = requireKind(t, err, domain.KindUnsupportedOutput)
			assert.Equal(t, "ERROR: RGB/RGBA output is not supported in local mode", bindErr.Message)
		})
	}
}

func BenchmarkProcessorResize(b *testing.B) {
	source := buildTestJPEG(b, 1920, 1080)
	p := newStdProcessor(b)
	list, err := ParseTransforms(`[{"width":640},{"rotate":90}]`)
	if err != nil {
		b.Fatalf("parse transforms: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Transform(context.Background(), Request{Image: source, Transforms: list}); err != nil {
			b.Fatalf("transform: %v", err)
		}
	}
}
