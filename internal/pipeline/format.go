package pipeline

import (
	"github.com/dunamismax/imagebinding/internal/domain"
	"github.com/dunamismax/imagebinding/internal/engine"
)

// NegotiateFormat maps the output_format field to an encoder target.
// Unrecognized and empty selectors fall back to JPEG.
func NegotiateFormat(selector string) (engine.Codec, error) {
	switch selector {
	case domain.MIMETypeAVIF:
		return engine.CodecAVIF, nil
	case domain.MIMETypeJPEG:
		return engine.CodecJPEG, nil
	case domain.MIMETypePNG:
		return engine.CodecPNG, nil
	case domain.MIMETypeWebP:
		return engine.CodecWebP, nil
	case domain.MIMETypeGIF:
		return "", domain.UnsupportedOutput("ERROR: GIF output is not supported in local mode", nil)
	case "rgb", "rgba":
		return "", domain.UnsupportedOutput("ERROR: RGB/RGBA output is not supported in local mode", nil)
	default:
		return engine.CodecJPEG, nil
	}
}
