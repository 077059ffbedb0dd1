package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/neuroscan/scanrelay/internal/archive"
	"github.com/neuroscan/scanrelay/internal/predict"
	"github.com/neuroscan/scanrelay/internal/session"
)

// CoreService wires the session store, lifecycle manager, upload archive and
// prediction client together and owns the background expiry sweeper.
type CoreService struct {
	config    *ServiceConfig
	store     session.Store
	manager   *session.Manager
	archive   archive.ArchiveService
	predictor *predict.Client

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

func NewCoreService(config *ServiceConfig) *CoreService {
	store, err := session.NewStore(config.Session.Store, config.Session.RedisAddress)
	if err != nil {
		slog.Error("failed to initialize session store", "error", err)
		panic(err)
	}

	manager := session.NewManager(store, config.SessionTTL(), session.Discipline(config.Session.Discipline))

	var archiveService archive.ArchiveService
	if config.Archive.Type != "" {
		archiveService, err = archive.NewArchive(config.Archive.Type, config.Archive.ConnectionString)
		if err != nil {
			slog.Error("failed to initialize upload archive", "error", err)
			panic(err)
		}
		manager.SetRecorder(archiveService)
		slog.Info("upload archive initialized", "type", config.Archive.Type)
	}

	service := &CoreService{
		config:    config,
		store:     store,
		manager:   manager,
		archive:   archiveService,
		predictor: predict.NewClient(config.Predict.BackendURL, config.PredictTimeout()),
	}
	service.startSweeper()

	slog.Info("session relay initialized",
		"store", config.Session.Store,
		"discipline", config.Session.Discipline,
		"ttl", config.SessionTTL())
	return service
}

func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

func (service *CoreService) Manager() *session.Manager {
	return service.manager
}

func (service *CoreService) Archive() archive.ArchiveService {
	return service.archive
}

func (service *CoreService) Predictor() *predict.Client {
	return service.predictor
}

// MobileURL builds the URL the mobile device opens after scanning the QR
// code for the given session.
func (service *CoreService) MobileURL(sessionID string) string {
	return fmt.Sprintf("%s/mobile-upload?session=%s",
		service.config.PublicBaseURL, url.QueryEscape(sessionID))
}

// startSweeper runs the periodic expiry sweep on top of the opportunistic
// per-request sweep. Failures inside the loop are logged and swallowed.
func (service *CoreService) startSweeper() {
	ctx, cancel := context.WithCancel(context.Background())
	service.sweepCancel = cancel
	service.sweepDone = make(chan struct{})

	interval := service.config.SweepInterval()
	go func() {
		defer close(service.sweepDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Info("started session sweeper", "interval", interval)
		for {
			select {
			case <-ctx.Done():
				slog.Info("session sweeper stopped")
				return
			case <-ticker.C:
				service.manager.Sweep()
			}
		}
	}()
}

func (service *CoreService) Close() error {
	if service.sweepCancel != nil {
		service.sweepCancel()
		<-service.sweepDone
	}

	var firstErr error
	if service.archive != nil {
		if err := service.archive.Close(); err != nil {
			firstErr = err
		}
	}
	if err := service.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
