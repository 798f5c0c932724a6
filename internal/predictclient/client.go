package predictclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/meibo-check/internal/filesource"
	"github.com/example/meibo-check/internal/logging"
	"github.com/example/meibo-check/internal/prediction"
)

// FileField is the multipart field that carries the image bytes.
const FileField = "file"

const maxErrorBodyBytes = 512

// Client talks to the inference service over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// New returns a client posting to {baseURL}/predict. A zero timeout leaves the
// transport defaults in place.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/predict",
		http:     &http.Client{Timeout: timeout},
		logger:   logger.Named("predictclient"),
	}
}

// Endpoint returns the resolved prediction URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Predict uploads image as a single-part multipart body and decodes the reply.
func (c *Client) Predict(ctx context.Context, image filesource.File) (*prediction.Result, error) {
	body, contentType, err := encodeUpload(image)
	if err != nil {
		return nil, fmt.Errorf("%w: build upload: %v", prediction.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", prediction.ErrTransport, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", prediction.ErrTransport, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("prediction response received",
		zap.String("endpoint", c.endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("%w: server returned %s: %s", prediction.ErrTransport, resp.Status, strings.TrimSpace(string(snippet)))
	}

	result, err := prediction.Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func encodeUpload(image filesource.File) (*bytes.Buffer, string, error) {
	src, err := image.Open()
	if err != nil {
		return nil, "", logging.NewOperationError("predictclient.open_image", "", err)
	}
	defer src.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(FileField, image.Name())
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", logging.NewOperationError("predictclient.read_image", "", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
