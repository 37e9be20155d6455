// Package handlers implements the HTTP handlers over the search service.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/incidentwire/incidentwire"
	"github.com/incidentwire/incidentwire/pkg/pipeline"
	"github.com/incidentwire/incidentwire/pkg/server/dto"
	"github.com/incidentwire/incidentwire/pkg/session"
	"github.com/incidentwire/incidentwire/pkg/types"
)

// SearchHandler handles search session requests.
type SearchHandler struct {
	svc *incidentwire.Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(svc *incidentwire.Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Stream handles POST /api/v1/search. It starts a session and streams its
// frames as server-sent events until the terminal frame. The request context
// doubles as the client-disconnect signal: when the connection drops, the
// session stops admitting work.
func (h *SearchHandler) Stream(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	q, err := req.Query()
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	overrides := &pipeline.Config{
		FetchWidth:     req.FetchWidth,
		ExtractWidth:   req.ExtractWidth,
		SessionTimeout: time.Duration(req.SessionTimeoutSeconds) * time.Second,
	}
	_, frames := h.svc.StartSearch(c.Request.Context(), q, overrides)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(io.Writer) bool {
		frame, ok := <-frames
		if !ok {
			return false
		}
		c.SSEvent(string(frame.Event), frame.Data)
		return true
	})
}

// Cancel handles POST /api/v1/search/:id/cancel. Unknown ids get a 404
// response, never an error frame on some stream.
func (h *SearchHandler) Cancel(c *gin.Context) {
	result, err := h.svc.Cancel(c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(c, http.StatusNotFound, "not_found", "unknown session id")
			return
		}
		writeError(c, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.CancelResponse{
		Accepted:              result.Status == session.CancelAccepted,
		AlreadyTerminal:       result.Status == session.CancelAlreadyTerminal,
		RecordsExtractedSoFar: result.RecordsSoFar,
	})
}

// Snapshot handles GET /api/v1/search/:id. Reading a finished session twice
// yields identical totals.
func (h *SearchHandler) Snapshot(c *gin.Context) {
	sess, err := h.svc.Get(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusNotFound, "not_found", "unknown session id")
		return
	}

	c.JSON(http.StatusOK, dto.SessionSnapshot{
		SessionID:    sess.ID,
		State:        sess.State().String(),
		Query:        sess.Query,
		TotalRecords: sess.RecordCount(),
		CreatedAt:    sess.CreatedAt.Format(types.WireTimeFormat),
	})
}

// Dispose handles DELETE /api/v1/search/:id, removing a drained session
// from the registry.
func (h *SearchHandler) Dispose(c *gin.Context) {
	if err := h.svc.Dispose(c.Param("id")); err != nil {
		writeError(c, http.StatusNotFound, "not_found", "unknown session id")
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.ErrorResponse{Error: code, Message: message})
}
