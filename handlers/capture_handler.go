package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ShubhamSingh-04/attendance-system-server/camera"
	"github.com/ShubhamSingh-04/attendance-system-server/capture"
	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

type CaptureHandler struct {
	orch *capture.Orchestrator
}

func NewCaptureHandler(orch *capture.Orchestrator) *CaptureHandler {
	return &CaptureHandler{orch: orch}
}

type capturePayload struct {
	RoomID    uint `json:"room_id" validate:"required"`
	ClassID   uint `json:"class_id" validate:"required"`
	SubjectID uint `json:"subject_id" validate:"required"`
}

// POST /attendance/capture
// Runs one snapshot-recognize-reconcile pass and returns the proposal.
// Nothing is written to the ledger here; that is the confirm step.
func (h *CaptureHandler) Capture(c echo.Context) error {
	var p capturePayload
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "INVALID_PAYLOAD"})
	}
	if err := validate.Struct(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": fieldErrors(err)})
	}

	var room models.Room
	if err := database.DB.First(&room, p.RoomID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "ROOM_NOT_FOUND"})
	}
	var cls models.Class
	if err := database.DB.First(&cls, p.ClassID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "CLASS_NOT_FOUND"})
	}
	var sub models.Subject
	if err := database.DB.First(&sub, p.SubjectID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "SUBJECT_NOT_FOUND"})
	}
	if sub.ClassID != cls.ID {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "SUBJECT_NOT_IN_CLASS"})
	}

	prop, err := h.orch.Run(c.Request().Context(), capture.Request{Room: room, Class: cls, Subject: sub})
	if err != nil {
		return captureFailure(c, err)
	}
	return c.JSON(http.StatusOK, prop)
}

// captureFailure translates orchestrator errors into responses. The
// caller's mistake (no camera, no faces registered, a live URL the
// snapshot rule cannot handle) is told apart from upstream trouble.
func captureFailure(c echo.Context, err error) error {
	var camErr *capture.CameraError
	var recErr *capture.RecognizerError
	switch {
	case errors.Is(err, capture.ErrNoCamera):
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NO_CAMERA_FOR_ROOM", "message": err.Error()})
	case errors.Is(err, capture.ErrNoCameraURL):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "NO_CAMERA_URL", "message": err.Error()})
	case errors.Is(err, capture.ErrNoEmbeddings):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "NO_EMBEDDINGS", "message": err.Error()})
	case errors.Is(err, camera.ErrUnsupportedURL):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "UNSUPPORTED_CAMERA_URL", "message": err.Error()})
	case errors.As(err, &camErr):
		return c.JSON(http.StatusBadGateway, map[string]any{"error": "CAMERA_UNREACHABLE", "message": camErr.Error()})
	case errors.As(err, &recErr):
		return c.JSON(http.StatusBadGateway, map[string]any{"error": "RECOGNIZER_FAILED", "message": recErr.Error()})
	default:
		return internalError(c, "CAPTURE_FAILED", err)
	}
}
