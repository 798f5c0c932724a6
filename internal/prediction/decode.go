package prediction

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	minConfidence = 0
	maxConfidence = 100
)

type wireResult struct {
	PredictedGrade *int     `json:"predicted_grade"`
	PredictedClass *string  `json:"predicted_class"`
	Confidence     *float64 `json:"confidence"`
}

// Decode parses a prediction body and validates its shape. Every failure wraps
// ErrMalformedResponse. The body must hold exactly one JSON value. Unknown
// fields are ignored; the grade is not range checked here.
func Decode(r io.Reader) (*Result, error) {
	dec := json.NewDecoder(r)
	var wire wireResult
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%w: unexpected data after JSON object", ErrMalformedResponse)
		}
		return nil, fmt.Errorf("%w: trailing data: %v", ErrMalformedResponse, err)
	}

	var missing []string
	if wire.PredictedGrade == nil {
		missing = append(missing, "predicted_grade")
	}
	if wire.PredictedClass == nil || strings.TrimSpace(*wire.PredictedClass) == "" {
		missing = append(missing, "predicted_class")
	}
	if wire.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}

	if c := *wire.Confidence; c < minConfidence || c > maxConfidence {
		return nil, fmt.Errorf("%w: confidence %v outside [%d,%d]", ErrMalformedResponse, c, minConfidence, maxConfidence)
	}

	return &Result{
		PredictedGrade: *wire.PredictedGrade,
		PredictedClass: *wire.PredictedClass,
		Confidence:     *wire.Confidence,
	}, nil
}
