package domain

// ImageInfo is the /info response document. Vector images carry only Format.
type ImageInfo struct {
	Format   string `json:"format"`
	FileSize int    `json:"fileSize,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

const (
	MIMETypeAVIF = "image/avif"
	MIMETypeGIF  = "image/gif"
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeSVG  = "image/svg+xml"
	MIMETypeWebP = "image/webp"
)
