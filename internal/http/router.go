// README: HTTP router registration.
package http

import (
	"net/http"

	"go.uber.org/zap"

	"saferide/internal/http/handlers"
	"saferide/internal/http/middleware"
	"saferide/internal/infra"
	"saferide/internal/modules/dispatch"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/ride"
)

func NewRouter(
	rideService *ride.Service,
	driverService *driver.Service,
	engine *dispatch.Engine,
	alerts handlers.Alerts,
	verifier infra.TokenVerifier,
	logger *zap.Logger,
) http.Handler {
	api := http.NewServeMux()

	rideHandler := handlers.NewRideHandler(rideService, engine, logger)
	api.HandleFunc("POST /api/rides", rideHandler.Create)
	api.HandleFunc("GET /api/rides/{id}", rideHandler.Get)
	api.HandleFunc("POST /api/rides/{id}/cancel", rideHandler.Cancel)
	api.HandleFunc("POST /api/rides/{id}/enroute", rideHandler.Enroute)
	api.HandleFunc("POST /api/rides/{id}/complete", rideHandler.Complete)

	driverHandler := handlers.NewDriverHandler(driverService, engine, logger)
	api.HandleFunc("PUT /api/events/{eventId}/drivers/{driverId}/availability", driverHandler.SetAvailability)

	alertHandler := handlers.NewAlertHandler(alerts, logger)
	api.HandleFunc("GET /api/chapters/{chapterId}/alerts", alertHandler.ListByChapter)
	api.HandleFunc("POST /api/alerts/{alertId}/read", alertHandler.MarkRead)

	var protected http.Handler = api
	if verifier != nil {
		protected = middleware.Auth(verifier)(protected)
	}

	root := http.NewServeMux()
	root.Handle("/api/", protected)
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return middleware.Recovery(logger)(middleware.Logging(logger)(root))
}
