package domain

import "math"

// Operation is one geometric step requested against the primary image.
// The concrete types are Resize and Rotate.
type Operation interface {
	operation()
}

// Resize scales the image under contain fit. A zero dimension is derived
// from the aspect ratio by the engine; at least one dimension is set.
type Resize struct {
	Width  int
	Height int
}

// Rotate turns the image clockwise by Degrees.
type Rotate struct {
	Degrees float64
}

func (Resize) operation() {}
func (Rotate) operation() {}

// TransformRecord is the typed view of one untrusted transform entry.
// A nil field means the value was absent or not of the expected type.
type TransformRecord struct {
	ImageIndex *float64
	Width      *int
	Height     *int
	Rotate     *float64
}

// RecordFrom reads the known fields out of a decoded JSON value. It reports
// false when raw is not a JSON object; mistyped fields are left nil.
func RecordFrom(raw any) (TransformRecord, bool) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return TransformRecord{}, false
	}

	var rec TransformRecord
	if v, ok := number(fields["imageIndex"]); ok {
		rec.ImageIndex = &v
	}
	if v, ok := dimension(fields["width"]); ok {
		rec.Width = &v
	}
	if v, ok := dimension(fields["height"]); ok {
		rec.Height = &v
	}
	if v, ok := number(fields["rotate"]); ok && v != 0 {
		rec.Rotate = &v
	}
	return rec, true
}

// Applicable reports whether the record targets the primary image.
func (r TransformRecord) Applicable() bool {
	return r.ImageIndex == nil || *r.ImageIndex == 0
}

// Operations returns the steps this record contributes, rotation first.
func (r TransformRecord) Operations() []Operation {
	var ops []Operation
	if r.Rotate != nil {
		ops = append(ops, Rotate{Degrees: *r.Rotate})
	}
	if r.Width != nil || r.Height != nil {
		resize := Resize{}
		if r.Width != nil {
			resize.Width = *r.Width
		}
		if r.Height != nil {
			resize.Height = *r.Height
		}
		ops = append(ops, resize)
	}
	return ops
}

func number(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func dimension(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
