package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/imagebinding/internal/domain"
	"github.com/dunamismax/imagebinding/internal/engine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Request is one transform-path call: the uploaded bytes, the raw records
// returned by ParseTransforms and the output_format selector.
type Request struct {
	Image        []byte
	Transforms   []any
	OutputFormat string
}

type Result struct {
	Data        []byte
	ContentType string
	// Applied counts engine operations issued, Skipped counts records that
	// contributed none.
	Applied int
	Skipped int
}

// Processor folds validated requests into calls against one engine handle
// per request. It holds no per-request state and is safe for concurrent use.
type Processor struct {
	engine engine.Engine
	tracer trace.Tracer
}

func NewProcessor(eng engine.Engine) (*Processor, error) {
	if eng == nil {
		return nil, errors.New("image engine is required")
	}
	return &Processor{
		engine: eng,
		tracer: otel.Tracer("imagebinding/pipeline"),
	}, nil
}

func (p *Processor) EngineName() string {
	return p.engine.Name()
}

// Info inspects the uploaded image without applying any operation.
func (p *Processor) Info(ctx context.Context, image []byte) (domain.ImageInfo, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.info")
	defer span.End()

	handle, err := p.open(ctx, image)
	if err != nil {
		return domain.ImageInfo{}, p.fail(span, err)
	}
	defer handle.Close()

	md, err := handle.Metadata(ctx)
	if err != nil {
		return domain.ImageInfo{}, p.fail(span, p.engineError(err, ""))
	}
	span.SetAttributes(attribute.String("image.format", md.Format))

	info, err := Inspect(md)
	if err != nil {
		return domain.ImageInfo{}, p.fail(span, err)
	}
	span.SetStatus(codes.Ok, "inspected")
	return info, nil
}

// Transform applies every applicable operation in list order, then resolves
// the output codec and encodes. A rejected codec never reaches the encoder.
func (p *Processor) Transform(ctx context.Context, req Request) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.transform")
	defer span.End()

	handle, err := p.open(ctx, req.Image)
	if err != nil {
		return Result{}, p.fail(span, err)
	}
	defer handle.Close()

	var out Result
	for _, raw := range req.Transforms {
		rec, ok := domain.RecordFrom(raw)
		if !ok || !rec.Applicable() {
			out.Skipped++
			continue
		}

		ops := rec.Operations()
		if len(ops) == 0 {
			out.Skipped++
			continue
		}
		for _, op := range ops {
			switch op := op.(type) {
			case domain.Rotate:
				handle.Rotate(op.Degrees)
			case domain.Resize:
				handle.Resize(op.Width, op.Height)
			}
			out.Applied++
		}
	}
	span.SetAttributes(
		attribute.Int("pipeline.records", len(req.Transforms)),
		attribute.Int("pipeline.applied", out.Applied),
		attribute.Int("pipeline.skipped", out.Skipped),
	)

	codec, err := NegotiateFormat(req.OutputFormat)
	if err != nil {
		return Result{}, p.fail(span, err)
	}
	span.SetAttributes(attribute.String("pipeline.codec", string(codec)))

	data, err := handle.Encode(ctx, codec)
	if err != nil {
		return Result{}, p.fail(span, p.engineError(err, codec))
	}

	out.Data = data
	out.ContentType = string(codec)
	span.SetStatus(codes.Ok, "encoded")
	return out, nil
}

func (p *Processor) open(ctx context.Context, image []byte) (engine.Handle, error) {
	handle, err := p.engine.Open(ctx, image)
	if err != nil {
		return nil, p.engineError(err, "")
	}
	return handle, nil
}

func (p *Processor) engineError(err error, codec engine.Codec) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, engine.ErrUnsupportedCodec):
		label := strings.ToUpper(strings.TrimPrefix(string(codec), "image/"))
		return domain.UnsupportedOutput(
			fmt.Sprintf("ERROR: %s output is not supported by the %s engine", label, p.engine.Name()),
			err,
		)
	case errors.Is(err, engine.ErrUnsupportedInput):
		return domain.UnsupportedInput(err)
	case errors.Is(err, engine.ErrOutputTooLarge):
		return domain.OutputTooLarge(err)
	default:
		return domain.EngineFailure(err)
	}
}

func (p *Processor) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
