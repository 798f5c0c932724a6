package prediction

import (
	"context"
	"errors"

	"github.com/example/meibo-check/internal/filesource"
)

var (
	// ErrTransport marks failures to reach the endpoint or non-2xx replies.
	ErrTransport = errors.New("prediction transport failure")
	// ErrMalformedResponse marks bodies that do not decode into a Result.
	ErrMalformedResponse = errors.New("malformed prediction response")
)

// Result is the graded outcome returned by the inference service.
type Result struct {
	PredictedGrade int     `json:"predicted_grade"`
	PredictedClass string  `json:"predicted_class"`
	Confidence     float64 `json:"confidence"`
}

// Client submits a single image for grading. Implementations must return an
// error wrapping ErrTransport or ErrMalformedResponse on failure.
type Client interface {
	Predict(ctx context.Context, image filesource.File) (*Result, error)
}
