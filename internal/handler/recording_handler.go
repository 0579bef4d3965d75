package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinsight/internal/domain"
	"clinsight/internal/service"
)

const maxChunkBytes = 4 << 20

// RecordingHandler handles audio capture session endpoints.
type RecordingHandler struct {
	recordings service.RecordingService
}

// NewRecordingHandler creates a new RecordingHandler.
func NewRecordingHandler(recordings service.RecordingService) *RecordingHandler {
	return &RecordingHandler{recordings: recordings}
}

type startRecordingRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

// Start handles POST /api/v1/recordings
func (h *RecordingHandler) Start(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}
	var req startRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", "contentType is required")
		return
	}

	session, err := h.recordings.Start(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, session)
}

// AppendChunk handles POST /api/v1/recordings/:id/chunks. The body is the
// raw audio chunk.
func (h *RecordingHandler) AppendChunk(c *gin.Context) {
	userID, id, ok := recordingParams(c)
	if !ok {
		return
	}
	chunk, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChunkBytes+1))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", "could not read chunk")
		return
	}
	if len(chunk) == 0 || len(chunk) > maxChunkBytes {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", "chunk must be between 1 byte and 4MB")
		return
	}

	session, err := h.recordings.Append(c.Request.Context(), userID, id, chunk)
	respondSession(c, session, err)
}

// Pause handles POST /api/v1/recordings/:id/pause
func (h *RecordingHandler) Pause(c *gin.Context) {
	userID, id, ok := recordingParams(c)
	if !ok {
		return
	}
	session, err := h.recordings.Pause(c.Request.Context(), userID, id)
	respondSession(c, session, err)
}

// Resume handles POST /api/v1/recordings/:id/resume
func (h *RecordingHandler) Resume(c *gin.Context) {
	userID, id, ok := recordingParams(c)
	if !ok {
		return
	}
	session, err := h.recordings.Resume(c.Request.Context(), userID, id)
	respondSession(c, session, err)
}

// Abort handles DELETE /api/v1/recordings/:id
func (h *RecordingHandler) Abort(c *gin.Context) {
	userID, id, ok := recordingParams(c)
	if !ok {
		return
	}
	if err := h.recordings.Abort(c.Request.Context(), userID, id); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "recording discarded"})
}

func recordingParams(c *gin.Context) (string, uuid.UUID, bool) {
	userID, ok := extractUserID(c)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid recording ID")
		return "", uuid.Nil, false
	}
	return userID, id, true
}

func respondSession(c *gin.Context, session *domain.RecordingSession, err error) {
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}
