package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dunamismax/imagebinding/internal/domain"
)

var errTransformsNotArray = errors.New("transforms must be a JSON array")

// ParseTransforms decodes the transforms field into its raw ordered records.
// Elements are not inspected here, so one malformed entry cannot fail the
// whole list. An empty or missing field is invalid; "[]" is not.
func ParseTransforms(raw string) ([]any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, domain.InvalidTransforms(fmt.Errorf("decode transforms: %w", err))
	}

	list, ok := decoded.([]any)
	if !ok {
		return nil, domain.InvalidTransforms(errTransformsNotArray)
	}
	return list, nil
}
