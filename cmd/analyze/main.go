// Command analyze grades a local eye image against the remote inference
// service. Only the first path is submitted.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/example/meibo-check/internal/config"
	"github.com/example/meibo-check/internal/filesource"
	"github.com/example/meibo-check/internal/logging"
	"github.com/example/meibo-check/internal/notify"
	"github.com/example/meibo-check/internal/predictclient"
	"github.com/example/meibo-check/internal/presenter"
	"github.com/example/meibo-check/internal/submission"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
)

var ansiColors = map[string]string{
	presenter.ColorGrade0: "\033[32m",
	presenter.ColorGrade1: "\033[33m",
	presenter.ColorGrade2: "\033[38;5;208m",
	presenter.ColorGrade3: "\033[31m",
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "log diagnostics to stderr")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: analyze [-v] [-json] IMAGE [IMAGE...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	logger, err := logging.NewCLILogger(*verbose)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	client := predictclient.New(cfg.PredictAPIURL, cfg.PredictTimeout, logger)
	controller := submission.NewController(client, terminalSink(stderr), logger)

	files := make([]filesource.File, 0, fs.NArg())
	for _, path := range fs.Args() {
		files = append(files, filesource.Path(path))
	}
	controller.SelectFiles(files...)

	state, err := controller.Submit(context.Background())
	switch {
	case errors.Is(err, submission.ErrNoInputSelected):
		fs.Usage()
		return exitUsage
	case err != nil:
		return exitFailure
	}

	view := presenter.Present(*state.Result)
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Result *submissionResult `json:"result"`
			View   presenter.View    `json:"view"`
		}{Result: &submissionResult{ID: state.SubmissionID, Grade: state.Result.PredictedGrade}, View: view}); err != nil {
			logger.Error("failed to encode result", zap.Error(err))
			return exitFailure
		}
		return exitOK
	}

	fmt.Fprintf(stdout, "%sPredicted Grade: %d (%s)\033[0m\nConfidence: %s\n",
		ansiColors[view.ColorClass], state.Result.PredictedGrade, view.Label, view.ConfidenceText)
	return exitOK
}

type submissionResult struct {
	ID    string `json:"submission_id"`
	Grade int    `json:"predicted_grade"`
}

func terminalSink(w io.Writer) notify.Sink {
	return notify.SinkFunc(func(_ context.Context, n notify.Notification) {
		fmt.Fprintf(w, "[%s] %s: %s\n", n.Severity, n.Title, n.Description)
	})
}
