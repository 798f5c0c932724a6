package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/meibo-check/internal/auth"
	"github.com/example/meibo-check/internal/filesource"
	"github.com/example/meibo-check/internal/notify"
	"github.com/example/meibo-check/internal/prediction"
	"github.com/example/meibo-check/internal/presenter"
	"github.com/example/meibo-check/internal/session"
)

const testJWTSecret = "test-secret"

type stubClient struct {
	mu     sync.Mutex
	names  []string
	result *prediction.Result
	err    error
}

func (s *stubClient) Predict(ctx context.Context, image filesource.File) (*prediction.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, image.Name())
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type decodedResponse struct {
	State struct {
		Phase    string `json:"phase"`
		Progress int    `json:"progress"`
		Result   *struct {
			PredictedGrade int `json:"predicted_grade"`
		} `json:"result"`
		Failure *struct {
			Kind string `json:"kind"`
		} `json:"failure"`
	} `json:"state"`
	View     *presenter.View `json:"view"`
	Selected int             `json:"selected"`
	Error    string          `json:"error"`
}

func newTestRouter(client prediction.Client) (*gin.Engine, *session.Registry) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	sessions := session.NewRegistry(client, zap.NewNop())
	RegisterRoutes(router, sessions, auth.JWTMiddleware(testJWTSecret, ""))
	return router, sessions
}

func TestHealthIsPublic(t *testing.T) {
	router, _ := newTestRouter(&stubClient{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}

func TestAnalyzeRequiresToken(t *testing.T) {
	router, sessions := newTestRouter(&stubClient{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/analyze", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected no session to be created, got %d", sessions.Len())
	}
}

func TestAnalyzeWithoutSelection(t *testing.T) {
	client := &stubClient{}
	router, sessions := newTestRouter(client)
	token := buildTestToken(t, "user-123")

	resp := doRequest(router, http.MethodPost, "/analyze", token, nil, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	body := decode(t, resp)
	if body.State.Phase != "idle" {
		t.Fatalf("expected idle phase, got %s", body.State.Phase)
	}
	if len(client.names) != 0 {
		t.Fatalf("expected no prediction call, got %d", len(client.names))
	}

	toasts := sessions.Get("user-123").Toasts.Drain()
	if len(toasts) != 1 || toasts[0].Severity != notify.SeverityWarning {
		t.Fatalf("expected one warning toast, got %+v", toasts)
	}
}

func TestSelectThenAnalyzeUsesFirstFile(t *testing.T) {
	client := &stubClient{result: &prediction.Result{PredictedGrade: 2, PredictedClass: "Moderate", Confidence: 87.5}}
	router, _ := newTestRouter(client)
	token := buildTestToken(t, "user-123")

	body, contentType := buildMultipartBody(t, map[string][]byte{
		"first.png":  []byte("one"),
		"second.png": []byte("two"),
	}, []string{"first.png", "second.png"})
	resp := doRequest(router, http.MethodPost, "/selection", token, body, contentType)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}
	if got := decode(t, resp).Selected; got != 2 {
		t.Fatalf("expected 2 selected files, got %d", got)
	}

	resp = doRequest(router, http.MethodPost, "/analyze", token, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}
	result := decode(t, resp)
	if result.State.Phase != "settled" || result.State.Progress != 100 {
		t.Fatalf("unexpected state %+v", result.State)
	}
	if result.View == nil || *result.View != (presenter.View{ColorClass: presenter.ColorGrade2, Label: "Moderate", ConfidenceText: "87.5%"}) {
		t.Fatalf("unexpected view %+v", result.View)
	}
	if len(client.names) != 1 || client.names[0] != "first.png" {
		t.Fatalf("expected one call with first.png, got %v", client.names)
	}

	resp = doRequest(router, http.MethodGet, "/session/notifications", token, nil, "")
	var toasts struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &toasts); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(toasts.Notifications) != 1 || toasts.Notifications[0].Title != "Prediction Complete" {
		t.Fatalf("unexpected notifications %+v", toasts.Notifications)
	}
}

func TestAnalyzeFailureHidesTechnicalReason(t *testing.T) {
	client := &stubClient{err: fmt.Errorf("%w: server returned 500 Internal Server Error: cuda out of memory", prediction.ErrTransport)}
	router, sessions := newTestRouter(client)
	token := buildTestToken(t, "user-123")
	sessions.Get("user-123").Controller.SelectFiles(filesource.Bytes("eye.png", []byte("x")))

	resp := doRequest(router, http.MethodPost, "/analyze", token, nil, "")
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.Code)
	}
	if strings.Contains(resp.Body.String(), "cuda") || strings.Contains(resp.Body.String(), "Internal Server Error") {
		t.Fatalf("technical reason leaked: %s", resp.Body.String())
	}
	body := decode(t, resp)
	if body.State.Failure == nil || body.State.Failure.Kind != "transport_failure" {
		t.Fatalf("unexpected failure %+v", body.State.Failure)
	}

	resp = doRequest(router, http.MethodGet, "/session/stats", token, nil, "")
	if !strings.Contains(resp.Body.String(), `"failed":1`) {
		t.Fatalf("unexpected stats %s", resp.Body.String())
	}
}

func TestSelectionRejectsLargeUpload(t *testing.T) {
	router, _ := newTestRouter(&stubClient{})
	token := buildTestToken(t, "user-123")

	body, contentType := buildMultipartBody(t, map[string][]byte{
		"huge.png": bytes.Repeat([]byte("a"), MaxUploadSize+1),
	}, []string{"huge.png"})
	resp := doRequest(router, http.MethodPost, "/selection", token, body, contentType)
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestEmptySelectionKeepsPreviousFiles(t *testing.T) {
	router, sessions := newTestRouter(&stubClient{})
	token := buildTestToken(t, "user-123")
	sessions.Get("user-123").Controller.SelectFiles(filesource.Bytes("eye.png", nil))

	body, contentType := buildMultipartBody(t, nil, nil)
	resp := doRequest(router, http.MethodPost, "/selection", token, body, contentType)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if got := decode(t, resp).Selected; got != 1 {
		t.Fatalf("expected previous selection to survive, got %d", got)
	}
}

func doRequest(router *gin.Engine, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) decodedResponse {
	t.Helper()
	var out decodedResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", resp.Body.String(), err)
	}
	return out
}

func buildMultipartBody(t *testing.T, files map[string][]byte, order []string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range order {
		part, err := writer.CreateFormFile(FilesField, name)
		if err != nil {
			t.Fatalf("failed to create multipart part: %v", err)
		}
		if _, err := part.Write(files[name]); err != nil {
			t.Fatalf("failed to write payload: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
