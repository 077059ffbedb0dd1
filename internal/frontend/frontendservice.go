package frontend

import (
	"log/slog"
	"net/http"
	"text/template"

	"github.com/labstack/echo/v4"

	"github.com/neuroscan/scanrelay/internal/core"
)

const (
	MainPageName   = "index.html"
	MobilePageName = "mobile.html"
)

// FrontendService serves the desktop pairing page and the mobile upload
// page. Both are intentionally thin shells over the relay API.
type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = &Template{
		templates: template.Must(template.New("").ParseFS(templateFS, viewsPattern)),
	}

	e.GET("/", service.rootRedirectHandler)
	e.GET("/"+MainPageName, service.indexHandler)
	e.GET("/mobile-upload", service.mobileHandler)
	e.GET("/icon.svg", service.iconHandler)
}

func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, MainPageName, map[string]any{
		"PollIntervalMillis": service.config.Session.PollIntervalSeconds * 1000,
		"TTLSeconds":         service.config.Session.TTLSeconds,
	})
}

// mobileHandler renders the upload page the phone lands on after scanning
// the QR code. The session id travels in the query string; the page itself
// validates it against the relay before offering the picker.
func (service *FrontendService) mobileHandler(ctx echo.Context) error {
	sessionID := ctx.QueryParam("session")
	if sessionID == "" {
		slog.Warn("mobileHandler: missing session id", "status", http.StatusBadRequest)
	}
	return ctx.Render(http.StatusOK, MobilePageName, map[string]any{
		"SessionID":       sessionID,
		"MaxEncodedBytes": service.config.Session.MaxEncodedUploadBytes,
	})
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	icon, err := templateFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon", "error", err)
		return ctx.String(http.StatusInternalServerError, "Icon not available")
	}
	return ctx.Blob(http.StatusOK, "image/svg+xml", icon)
}
