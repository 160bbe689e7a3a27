package pipeline

import (
	"fmt"

	"github.com/dunamismax/imagebinding/internal/domain"
	"github.com/dunamismax/imagebinding/internal/engine"
)

var formatMIMETypes = map[string]string{
	"jpeg": domain.MIMETypeJPEG,
	"svg":  domain.MIMETypeSVG,
	"png":  domain.MIMETypePNG,
	"webp": domain.MIMETypeWebP,
	"gif":  domain.MIMETypeGIF,
	"avif": domain.MIMETypeAVIF,
}

// Inspect turns engine metadata into the /info document.
func Inspect(md engine.Metadata) (domain.ImageInfo, error) {
	mime, ok := formatMIMETypes[md.Format]
	if !ok {
		return domain.ImageInfo{}, domain.UnsupportedInput(fmt.Errorf("engine format %q", md.Format))
	}

	if mime == domain.MIMETypeSVG {
		return domain.ImageInfo{Format: mime}, nil
	}

	if md.Size <= 0 || md.Width <= 0 || md.Height <= 0 {
		return domain.ImageInfo{}, domain.InternalInconsistency(fmt.Errorf(
			"engine metadata format=%s size=%d width=%d height=%d",
			md.Format, md.Size, md.Width, md.Height,
		))
	}

	return domain.ImageInfo{
		Format:   mime,
		FileSize: md.Size,
		Width:    md.Width,
		Height:   md.Height,
	}, nil
}
