package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/meibo-check/internal/filesource"
	"github.com/example/meibo-check/internal/logging"
	"github.com/example/meibo-check/internal/notify"
	"github.com/example/meibo-check/internal/prediction"
	"github.com/example/meibo-check/internal/presenter"
)

var (
	// ErrNoInputSelected is returned by Submit when no file has been selected.
	ErrNoInputSelected = errors.New("no input selected")
	// ErrSubmissionInFlight is returned by Submit while another attempt is outstanding.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// User-facing notification texts.
const (
	noInputTitle       = "No files selected"
	noInputDescription = "Please upload an eye image before starting analysis."
	successTitle       = "Prediction Complete"
	failureTitle       = "Error"
	failureDescription = "Failed to analyze the image."
)

// Controller owns the selection and request state of one analysis session and
// guarantees at most one outstanding prediction request.
type Controller struct {
	client prediction.Client
	sink   notify.Sink
	logger *zap.Logger
	newID  func() string

	mu        sync.Mutex
	selection []filesource.File
	state     State
	stats     Stats
}

// NewController wires a controller to its prediction client and notification sink.
func NewController(client prediction.Client, sink notify.Sink, logger *zap.Logger) *Controller {
	if sink == nil {
		sink = notify.Fanout(nil)
	}
	return &Controller{
		client: client,
		sink:   sink,
		logger: logger.Named("submission"),
		newID:  uuid.NewString,
	}
}

// SelectFiles replaces the current selection. An empty selection is ignored.
func (c *Controller) SelectFiles(files ...filesource.File) {
	selection := make([]filesource.File, 0, len(files))
	for _, f := range files {
		if f != nil {
			selection = append(selection, f)
		}
	}
	if len(selection) == 0 {
		return
	}

	c.mu.Lock()
	c.selection = selection
	c.mu.Unlock()
}

// Selected reports how many files are currently selected.
func (c *Controller) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.selection)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Stats returns a copy of the submission counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Submit sends the first selected file for prediction and blocks until the
// attempt settles. It returns ErrNoInputSelected or ErrSubmissionInFlight
// without touching the network, and an error wrapping prediction.ErrTransport
// or prediction.ErrMalformedResponse when the attempt fails. Exactly one
// notification is emitted per call except for in-flight rejections.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state.InFlight() {
		c.stats.Rejected++
		state := c.state.clone()
		c.mu.Unlock()
		logging.WithOperation(c.logger, "submission.submit", state.SubmissionID).Debug("submit rejected while in flight")
		return state, ErrSubmissionInFlight
	}
	if len(c.selection) == 0 {
		c.stats.Rejected++
		state := c.state.clone()
		c.mu.Unlock()
		c.logger.Info("submit rejected without input")
		c.sink.Notify(ctx, notify.Notification{
			Title:       noInputTitle,
			Description: noInputDescription,
			Severity:    notify.SeverityWarning,
		})
		return state, ErrNoInputSelected
	}

	submissionID := c.newID()
	image := c.selection[0]
	c.state = State{Phase: PhaseInFlight, Progress: InitialProgress, SubmissionID: submissionID}
	c.stats.Accepted++
	c.mu.Unlock()

	opLogger := logging.WithOperation(c.logger, "submission.submit", submissionID)
	opLogger.Info("submitting image", zap.String("file", image.Name()))

	result, err := c.client.Predict(ctx, image)
	if err == nil && result == nil {
		err = fmt.Errorf("%w: empty result", prediction.ErrMalformedResponse)
	}
	if err != nil {
		return c.fail(ctx, opLogger, submissionID, err)
	}
	return c.succeed(ctx, opLogger, submissionID, *result)
}

func (c *Controller) succeed(ctx context.Context, opLogger *zap.Logger, submissionID string, result prediction.Result) (State, error) {
	c.mu.Lock()
	c.state = State{
		Phase:        PhaseSettled,
		Progress:     CompleteProgress,
		SubmissionID: submissionID,
		Result:       &result,
	}
	c.stats.Succeeded++
	state := c.state.clone()
	c.mu.Unlock()

	opLogger.Info("prediction complete",
		zap.Int("predicted_grade", result.PredictedGrade),
		zap.String("predicted_class", result.PredictedClass),
		zap.Float64("confidence", result.Confidence),
	)
	c.sink.Notify(ctx, notify.Notification{
		Title: successTitle,
		Description: fmt.Sprintf("Predicted Grade: %d (%s) | Confidence: %s",
			result.PredictedGrade, result.PredictedClass, presenter.FormatConfidence(result.Confidence)),
		Severity: notify.SeverityInfo,
	})
	return state, nil
}

func (c *Controller) fail(ctx context.Context, opLogger *zap.Logger, submissionID string, err error) (State, error) {
	wrapped := logging.NewOperationError("submission.predict", submissionID, err)
	kind := classify(err)

	c.mu.Lock()
	progress := c.state.Progress
	c.state = State{
		Phase:        PhaseSettled,
		Progress:     progress,
		SubmissionID: submissionID,
		Failure:      &Failure{Kind: kind, Reason: wrapped.Error()},
	}
	c.stats.Failed++
	state := c.state.clone()
	c.mu.Unlock()

	opLogger.Error("prediction failed", zap.Error(wrapped), zap.String("failure_kind", string(kind)))
	c.sink.Notify(ctx, notify.Notification{
		Title:       failureTitle,
		Description: failureDescription,
		Severity:    notify.SeverityDestructive,
	})
	return state, wrapped
}

func classify(err error) FailureKind {
	if errors.Is(err, prediction.ErrMalformedResponse) {
		return FailureMalformedResponse
	}
	return FailureTransport
}
