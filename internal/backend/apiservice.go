package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/neuroscan/scanrelay/internal/core"
	"github.com/neuroscan/scanrelay/internal/imaging"
	"github.com/neuroscan/scanrelay/internal/predict"
	"github.com/neuroscan/scanrelay/internal/session"
)

// APIService exposes the session relay and the prediction proxy over HTTP.
type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "Session relay is running")
	})

	e.POST("/api/session", s.createSessionHandler)
	e.GET("/api/session/:id", s.getSessionHandler)
	e.POST("/api/session/:id/connect", s.connectSessionHandler)
	e.POST("/api/session/:id/close", s.closeSessionHandler)
	e.GET("/api/session/:id/events", s.sessionEventsHandler)
	e.GET("/api/session/:id/qr", s.sessionQRHandler)
	e.GET("/api/session/:id/pending", s.pendingUploadsHandler)

	// Compatibility routes for the legacy polling clients.
	e.GET("/api/check-upload", s.checkUploadHandler)
	e.POST("/api/mobile-session", s.mobileSessionHandler)

	e.POST("/api/proxy-predict", s.proxyPredictHandler)
}

type createSessionResponse struct {
	SessionID           string    `json:"sessionId"`
	Status              string    `json:"status"`
	ExpiresAt           time.Time `json:"expiresAt"`
	MobileURL           string    `json:"mobileUrl"`
	Discipline          string    `json:"discipline"`
	PollIntervalSeconds int       `json:"pollIntervalSeconds"`
}

func (s *APIService) createSessionHandler(ctx echo.Context) error {
	record, err := s.coreService.Manager().Create()
	if err != nil {
		slog.Error("createSessionHandler: failed to create session", "error", err)
		return errorResponse(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, createSessionResponse{
		SessionID:           record.ID,
		Status:              string(record.Status),
		ExpiresAt:           record.ExpiresAt,
		MobileURL:           s.coreService.MobileURL(record.ID),
		Discipline:          string(s.coreService.Manager().Discipline()),
		PollIntervalSeconds: s.config.Session.PollIntervalSeconds,
	})
}

func (s *APIService) getSessionHandler(ctx echo.Context) error {
	record, err := s.coreService.Manager().Get(ctx.Param("id"))
	if err != nil {
		return errorResponse(ctx, err)
	}
	// Never leak the image payload through the state read path.
	record.ImageData = ""
	return ctx.JSON(http.StatusOK, record)
}

func (s *APIService) connectSessionHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := s.coreService.Manager().Connect(id); err != nil {
		slog.Warn("connectSessionHandler: connect rejected", "session_id", id, "error", err)
		return errorResponse(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *APIService) closeSessionHandler(ctx echo.Context) error {
	if err := s.coreService.Manager().Close(ctx.Param("id")); err != nil {
		slog.Error("closeSessionHandler: close failed", "session_id", ctx.Param("id"), "error", err)
		return errorResponse(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

type checkUploadResponse struct {
	ImageData     *string `json:"imageData"`
	HasConnection bool    `json:"hasConnection"`
}

// checkUploadHandler is the desktop polling endpoint. Reading an image also
// clears it, so each upload is delivered at most once. Unknown and expired
// sessions answer with a null image rather than an error to keep the
// polling loop simple on the client.
func (s *APIService) checkUploadHandler(ctx echo.Context) error {
	id := ctx.QueryParam("session")
	if id == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Session ID is required"})
	}

	image, err := s.coreService.Manager().Consume(id)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) {
		return ctx.JSON(http.StatusOK, checkUploadResponse{})
	}
	if err != nil {
		slog.Error("checkUploadHandler: consume failed", "session_id", id, "error", err)
		return errorResponse(ctx, err)
	}

	response := checkUploadResponse{}
	if image != "" {
		response.ImageData = &image
	}
	if record, err := s.coreService.Manager().Get(id); err == nil {
		response.HasConnection = record.MobileConnected
	}
	return ctx.JSON(http.StatusOK, response)
}

type mobileSessionRequest struct {
	Session   string `json:"session" validate:"required"`
	ImageData string `json:"imageData"`
	Filename  string `json:"filename"`
	Action    string `json:"action"`
}

// mobileSessionHandler is the mobile writer endpoint. The action field
// multiplexes connect ("activate"), close ("close") and the default image
// upload, matching the legacy endpoint contract.
func (s *APIService) mobileSessionHandler(ctx echo.Context) error {
	var request mobileSessionRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Malformed request body"})
	}
	if request.Session == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Session ID is required"})
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	manager := s.coreService.Manager()
	switch request.Action {
	case "activate":
		if err := manager.Connect(request.Session); err != nil {
			return errorResponse(ctx, err)
		}
	case "close":
		if err := manager.Close(request.Session); err != nil {
			return errorResponse(ctx, err)
		}
	case "":
		if request.ImageData == "" {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Session ID and image data are required"})
		}
		if err := s.validateUpload(request.ImageData); err != nil {
			return errorResponse(ctx, err)
		}
		if err := manager.Upload(request.Session, request.ImageData, request.Filename); err != nil {
			return errorResponse(ctx, err)
		}
	default:
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown action"})
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

// validateUpload enforces that the payload is a well-formed image data URI
// under the configured ceiling. Clients are expected to recompress before
// sending; the server only rejects. The ceiling applies to the base64 body,
// the same quantity Normalize fits on the client side; the constant data-URI
// prefix is not counted.
func (s *APIService) validateUpload(dataURL string) error {
	comma := strings.IndexByte(dataURL, ',')
	if comma < 0 || len(dataURL)-comma-1 > s.config.Session.MaxEncodedUploadBytes {
		return session.ErrInvalidInput
	}
	_, data, err := imaging.DecodeDataURL(dataURL)
	if err != nil {
		return session.ErrInvalidInput
	}
	if _, err := imaging.SniffMime(data); err != nil {
		return session.ErrInvalidInput
	}
	return nil
}

// sessionEventsHandler streams session snapshots as server-sent events for
// push-discipline desktops. The stream ends once a terminal snapshot has
// been delivered or the client goes away.
func (s *APIService) sessionEventsHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	updates, cancel, err := s.coreService.Manager().Watch(id)
	if err != nil {
		return errorResponse(ctx, err)
	}
	defer cancel()

	response := ctx.Response()
	response.Header().Set(echo.HeaderContentType, "text/event-stream")
	response.Header().Set("Cache-Control", "no-store")
	response.Header().Set("Connection", "keep-alive")
	response.WriteHeader(http.StatusOK)
	response.Flush()

	for {
		select {
		case <-ctx.Request().Context().Done():
			return nil
		case snapshot, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(snapshot)
			if err != nil {
				slog.Error("sessionEventsHandler: failed to encode snapshot", "session_id", id, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(response, "data: %s\n\n", data); err != nil {
				return nil
			}
			response.Flush()
			if snapshot.Status.Terminal() {
				return nil
			}
		}
	}
}

type pendingUploadResponse struct {
	UploadID   string    `json:"uploadId"`
	Filename   string    `json:"filename"`
	ImageData  string    `json:"imageData"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// pendingUploadsHandler replays archived uploads that have not been processed
// yet, oldest first. A desktop reconnecting mid-session fetches these before
// resuming its poll or watch loop, since the live relay only holds the newest
// image. Without an archive configured the list is always empty.
func (s *APIService) pendingUploadsHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := s.coreService.Manager().Get(id); err != nil {
		return errorResponse(ctx, err)
	}

	response := []pendingUploadResponse{}
	if s.coreService.Archive() != nil {
		uploads, err := s.coreService.Archive().GetPending(id)
		if err != nil {
			slog.Error("pendingUploadsHandler: archive query failed", "session_id", id, "error", err)
			return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Upload archive unavailable"})
		}
		for _, upload := range uploads {
			response = append(response, pendingUploadResponse{
				UploadID:   upload.ID,
				Filename:   upload.Filename,
				ImageData:  upload.DataURL,
				UploadedAt: upload.UploadedAt,
			})
		}
	}
	return ctx.JSON(http.StatusOK, response)
}

// sessionQRHandler renders the mobile URL for a session as a QR PNG.
func (s *APIService) sessionQRHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := s.coreService.Manager().Get(id); err != nil {
		return errorResponse(ctx, err)
	}

	size := 256
	if raw := ctx.QueryParam("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 64 || parsed > 1024 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "size must be between 64 and 1024"})
		}
		size = parsed
	}

	png, err := qrcode.Encode(s.coreService.MobileURL(id), qrcode.Medium, size)
	if err != nil {
		slog.Error("sessionQRHandler: failed to encode QR", "session_id", id, "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to render QR code"})
	}
	return ctx.Blob(http.StatusOK, "image/png", png)
}

type predictResponse struct {
	PredictedClass string   `json:"predicted_class"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

// proxyPredictHandler forwards the uploaded file to the classification
// backend. A rejection because the file is not an MRI scan is surfaced as a
// distinct 422 so the UI can render it apart from generic upstream failures.
func (s *APIService) proxyPredictHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Missing form field: file"})
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("proxyPredictHandler: failed to open uploaded file", "error", err, "filename", file.Filename)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to open uploaded file"})
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("proxyPredictHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	result, err := s.coreService.Predictor().Predict(ctx.Request().Context(), file.Filename, src)
	if errors.Is(err, predict.ErrNotScan) {
		return ctx.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "Arquivo deve ser ressonancia"})
	}
	var upstream *predict.UpstreamError
	if errors.As(err, &upstream) {
		slog.Error("proxyPredictHandler: upstream failure", "status", upstream.StatusCode, "error", err)
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "Prediction backend unavailable"})
	}
	if err != nil {
		slog.Error("proxyPredictHandler: prediction failed", "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Prediction failed"})
	}

	// Uploads relayed from the archive carry their row id so the result can
	// be recorded against them.
	if uploadID := ctx.FormValue("uploadId"); uploadID != "" && s.coreService.Archive() != nil {
		if err := s.coreService.Archive().MarkProcessed(uploadID); err != nil {
			slog.Warn("proxyPredictHandler: failed to mark upload processed", "upload_id", uploadID, "error", err)
		}
	}

	response := predictResponse{PredictedClass: result.Class}
	if result.HasConfidence {
		confidence := result.Confidence
		response.Confidence = &confidence
	}
	return ctx.JSON(http.StatusOK, response)
}

// errorResponse maps the session error taxonomy onto HTTP statuses.
func errorResponse(ctx echo.Context, err error) error {
	var storageErr *session.StorageError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	case errors.Is(err, session.ErrExpired):
		return ctx.JSON(http.StatusGone, map[string]string{"error": "Session expired"})
	case errors.Is(err, session.ErrInactive):
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "Session not found or inactive"})
	case errors.Is(err, session.ErrInvalidInput):
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid image payload"})
	case errors.As(err, &storageErr):
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Session storage unavailable"})
	default:
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
