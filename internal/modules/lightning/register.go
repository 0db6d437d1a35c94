package lightning

import (
	"net/http"

	"blitzmap-server/internal/modules/lightning/controller"
	"blitzmap-server/internal/modules/lightning/repository"
	"blitzmap-server/internal/modules/lightning/service"
)

// RegisterFeature mounts the lightning-map HTTP API. The service itself is
// constructed by the app because it also drives the MQTT side.
func RegisterFeature(mux *http.ServeMux, svc *service.Service, strikes repository.StrikeRepository) {
	lightningController := controller.NewLightningController(svc, strikes)
	lightningController.RegisterRoutes(mux)
}
