package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecord(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestRecordFromReadsTypedFields(t *testing.T) {
	rec, ok := RecordFrom(decodeRecord(t, `{"width":50,"height":20,"rotate":90,"imageIndex":0}`))
	require.True(t, ok)
	require.NotNil(t, rec.Width)
	require.NotNil(t, rec.Height)
	require.NotNil(t, rec.Rotate)
	assert.Equal(t, 50, *rec.Width)
	assert.Equal(t, 20, *rec.Height)
	assert.Equal(t, 90.0, *rec.Rotate)
	assert.True(t, rec.Applicable())

	assert.Equal(t, []Operation{Rotate{Degrees: 90}, Resize{Width: 50, Height: 20}}, rec.Operations())
}

func TestRecordFromTreatsMistypedFieldsAsAbsent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "string width", raw: `{"width":"50"}`},
		{name: "zero width", raw: `{"width":0}`},
		{name: "negative height", raw: `{"height":-4}`},
		{name: "fractional width", raw: `{"width":12.5}`},
		{name: "boolean rotate", raw: `{"rotate":true}`},
		{name: "zero rotate", raw: `{"rotate":0}`},
		{name: "null fields", raw: `{"width":null,"height":null,"rotate":null}`},
		{name: "unknown fields", raw: `{"blur":3,"fit":"cover"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := RecordFrom(decodeRecord(t, tt.raw))
			require.True(t, ok)
			assert.Empty(t, rec.Operations())
			assert.True(t, rec.Applicable())
		})
	}
}

func TestRecordFromRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`1`, `"resize"`, `null`, `[{"width":10}]`, `true`} {
		_, ok := RecordFrom(decodeRecord(t, raw))
		assert.False(t, ok, raw)
	}
}

func TestApplicableDependsOnNumericImageIndex(t *testing.T) {
	rec, _ := RecordFrom(decodeRecord(t, `{"imageIndex":1,"width":10}`))
	assert.False(t, rec.Applicable())

	rec, _ = RecordFrom(decodeRecord(t, `{"imageIndex":0,"width":10}`))
	assert.True(t, rec.Applicable())

	// A non-numeric index is absent, so the record targets the primary image.
	rec, _ = RecordFrom(decodeRecord(t, `{"imageIndex":"1","width":10}`))
	assert.True(t, rec.Applicable())
}

func TestResizeWithSingleDimension(t *testing.T) {
	rec, _ := RecordFrom(decodeRecord(t, `{"height":30}`))
	assert.Equal(t, []Operation{Resize{Height: 30}}, rec.Operations())
}
