package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunamismax/imagebinding/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(http.StatusUnsupportedMediaType, 9520, "ERROR: Unsupported image type")

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.Status)
	assert.Equal(t, "err=9520", resp.Header.Get("cf-images-binding"))
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ERROR 9520: ERROR: Unsupported image type", string(resp.Body))
}

func TestImageResponseWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	ImageResponse([]byte{1, 2, 3}, "image/webp").Write(rec)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Equal(t, []byte{1, 2, 3}, rec.Body.Bytes())
}

func TestJSONResponseOmitsVectorFields(t *testing.T) {
	resp, err := JSONResponse(http.StatusOK, domain.ImageInfo{Format: domain.MIMETypeSVG})
	require.NoError(t, err)
	assert.JSONEq(t, `{"format":"image/svg+xml"}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
