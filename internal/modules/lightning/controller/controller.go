package controller

import (
	"context"
	"net/http"

	"blitzmap-server/internal/modules/lightning/repository"
	"blitzmap-server/internal/modules/lightning/types"
)

// MapService is the part of the lightning service the HTTP API talks to.
type MapService interface {
	AnimatedImage() ([]byte, bool)
	Settings() (types.Settings, error)
	ApplySettings(patch types.SettingsPatch) (types.Settings, error)
	Activity() ([]types.ActivityBucket, error)
	ForceRefresh(ctx context.Context) error
}

type LightningController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type lightningControllerImpl struct {
	service MapService
	strikes repository.StrikeRepository
}

func NewLightningController(service MapService, strikes repository.StrikeRepository) LightningController {
	return &lightningControllerImpl{service: service, strikes: strikes}
}

func (c *lightningControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /camera/lightning", c.handleCamera)
	mux.HandleFunc("GET /api/v1/strikes", c.handleStrikes)
	mux.HandleFunc("GET /api/v1/activity", c.handleActivity)
	mux.HandleFunc("GET /api/v1/settings", c.handleGetSettings)
	mux.HandleFunc("PATCH /api/v1/settings", c.handlePatchSettings)
	mux.HandleFunc("POST /api/v1/refresh", c.handleRefresh)
}
