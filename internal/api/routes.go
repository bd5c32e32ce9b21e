package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/domain/repositories"
	"github.com/kresnabayu/cermin/server/internal/websocket"
	"github.com/kresnabayu/cermin/server/usecase"
)

// maxFrameBytes bounds a single uploaded webcam frame
const maxFrameBytes = 4 << 20

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, sessions *usecase.SessionService, hub *websocket.Hub, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "cermin-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/sessions", func(c echo.Context) error {
		return createSession(c, sessions, logger)
	})
	v1.DELETE("/sessions/:id", func(c echo.Context) error {
		return terminateSession(c, sessions, logger)
	})
	v1.POST("/sessions/:id/captures", func(c echo.Context) error {
		return capture(c, sessions, logger)
	})
	v1.GET("/sessions/:id/report", func(c echo.Context) error {
		return sessionReport(c, sessions)
	})
	v1.GET("/sessions/:id/rounds/:roundId/report", func(c echo.Context) error {
		return roundReport(c, sessions)
	})
	v1.GET("/sessions/:id/expressions", func(c echo.Context) error {
		return sessionExpressions(c, sessions)
	})

	// Live expression feed for reporting clients
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

func createSession(c echo.Context, sessions *usecase.SessionService, logger *zap.Logger) error {
	var req CreateSessionRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind create session request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.CandidateID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Candidate ID is required",
		})
	}

	runtime, err := sessions.CreateSession(req.CandidateID)
	if err != nil {
		logger.Error("Failed to create session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "session_creation_failed",
			Message: "Failed to create interview session",
		})
	}

	return c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: runtime.Session.ID,
		ExpiresAt: runtime.Session.ExpiresAt,
	})
}

func terminateSession(c echo.Context, sessions *usecase.SessionService, logger *zap.Logger) error {
	report, err := sessions.TerminateSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "session_not_found",
				Message: "No such session",
			})
		}
		logger.Error("Failed to terminate session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "termination_failed",
			Message: "Failed to terminate session",
		})
	}

	return c.JSON(http.StatusOK, report)
}

// capture receives one webcam frame for one question and hands it to the
// session's pipeline. The response only acknowledges the trigger; resolution
// happens in the background and surfaces through the report endpoints and the
// expression feed.
func capture(c echo.Context, sessions *usecase.SessionService, logger *zap.Logger) error {
	sessionID := c.Param("id")

	ordinal, err := strconv.Atoi(c.FormValue("ordinal"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_ordinal",
			Message: "Ordinal must be an integer",
		})
	}

	key := entities.CaptureKey{
		RoundID:    c.FormValue("round_id"),
		QuestionID: c.FormValue("question_id"),
		Ordinal:    ordinal,
	}
	if err := key.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_capture_key",
			Message: err.Error(),
		})
	}

	fileHeader, err := c.FormFile("frame")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_frame",
			Message: "A frame file part is required",
		})
	}
	if fileHeader.Size > maxFrameBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "frame_too_large",
			Message: "Frame exceeds the size limit",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open frame upload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unreadable_frame",
			Message: "Failed to read frame upload",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxFrameBytes))
	if err != nil {
		logger.Error("Failed to read frame upload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unreadable_frame",
			Message: "Failed to read frame upload",
		})
	}

	image := repositories.ImageArtifact{
		Data:     data,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Filename: fileHeader.Filename,
	}

	accepted, err := sessions.Capture(sessionID, key, image)
	if err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "session_not_found",
				Message: "No such session",
			})
		}
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "session_not_active",
			Message: err.Error(),
		})
	}

	status := http.StatusAccepted
	if !accepted {
		// The question already has an outstanding or resolved expression
		status = http.StatusConflict
	}
	return c.JSON(status, CaptureResponse{
		Accepted:   accepted,
		QuestionID: key.QuestionID,
	})
}

func sessionReport(c echo.Context, sessions *usecase.SessionService) error {
	runtime, exists := sessions.GetSession(c.Param("id"))
	if !exists {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "No such session",
		})
	}
	return c.JSON(http.StatusOK, runtime.Reports.Overall(runtime.Session.ID))
}

func roundReport(c echo.Context, sessions *usecase.SessionService) error {
	runtime, exists := sessions.GetSession(c.Param("id"))
	if !exists {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "No such session",
		})
	}
	return c.JSON(http.StatusOK, runtime.Reports.PerRound(c.Param("roundId")))
}

func sessionExpressions(c echo.Context, sessions *usecase.SessionService) error {
	runtime, exists := sessions.GetSession(c.Param("id"))
	if !exists {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "No such session",
		})
	}
	return c.JSON(http.StatusOK, runtime.Store.All())
}
