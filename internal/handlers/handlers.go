package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/meibo-check/internal/auth"
	"github.com/example/meibo-check/internal/filesource"
	"github.com/example/meibo-check/internal/presenter"
	"github.com/example/meibo-check/internal/session"
	"github.com/example/meibo-check/internal/submission"
)

// MaxUploadSize caps the body of a single selection request.
const MaxUploadSize = 10 << 20

// FilesField is the repeatable multipart field carrying picked files.
const FilesField = "files"

type sessionResponse struct {
	State    submission.State `json:"state"`
	View     *presenter.View  `json:"view,omitempty"`
	Selected int              `json:"selected"`
	Error    string           `json:"error,omitempty"`
}

// RegisterRoutes wires the analysis console to the Gin router.
func RegisterRoutes(router *gin.Engine, sessions *session.Registry, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/selection", func(c *gin.Context) {
		sess, ok := currentSession(c, sessions)
		if !ok {
			return
		}

		if c.Request.ContentLength > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)
		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
			return
		}
		defer form.RemoveAll() //nolint:errcheck

		files := make([]filesource.File, 0, len(form.File[FilesField]))
		for _, header := range form.File[FilesField] {
			f, err := filesource.Buffer(header)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read upload"})
				return
			}
			files = append(files, f)
		}
		sess.Controller.SelectFiles(files...)

		c.JSON(http.StatusOK, buildResponse(sess, sess.Controller.Snapshot(), ""))
	})

	protected.POST("/analyze", func(c *gin.Context) {
		sess, ok := currentSession(c, sessions)
		if !ok {
			return
		}

		// A started prediction runs to completion even if the caller goes away.
		ctx := context.WithoutCancel(c.Request.Context())
		state, err := sess.Controller.Submit(ctx)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, buildResponse(sess, state, ""))
		case errors.Is(err, submission.ErrNoInputSelected):
			c.JSON(http.StatusBadRequest, buildResponse(sess, state, "no files selected"))
		case errors.Is(err, submission.ErrSubmissionInFlight):
			c.JSON(http.StatusConflict, buildResponse(sess, state, "analysis already in progress"))
		default:
			c.JSON(http.StatusBadGateway, buildResponse(sess, state, "failed to analyze the image"))
		}
	})

	protected.GET("/session", func(c *gin.Context) {
		sess, ok := currentSession(c, sessions)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, buildResponse(sess, sess.Controller.Snapshot(), ""))
	})

	protected.GET("/session/notifications", func(c *gin.Context) {
		sess, ok := currentSession(c, sessions)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": sess.Toasts.Drain()})
	})

	protected.GET("/session/stats", func(c *gin.Context) {
		sess, ok := currentSession(c, sessions)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, sess.Controller.Stats())
	})
}

func currentSession(c *gin.Context, sessions *session.Registry) (*session.Session, bool) {
	userID, ok := auth.UserID(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return nil, false
	}
	return sessions.Get(userID), true
}

func buildResponse(sess *session.Session, state submission.State, message string) sessionResponse {
	resp := sessionResponse{
		State:    state,
		Selected: sess.Controller.Selected(),
		Error:    message,
	}
	if state.Succeeded() {
		view := presenter.Present(*state.Result)
		resp.View = &view
	}
	return resp
}
