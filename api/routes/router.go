package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/purchase-configurator/api/controllers"
	ordercontrollers "github.com/angelmondragon/purchase-configurator/api/controllers/orders"
	sessioncontrollers "github.com/angelmondragon/purchase-configurator/api/controllers/sessions"
	"github.com/angelmondragon/purchase-configurator/api/middleware"
	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	"github.com/angelmondragon/purchase-configurator/pkg/config"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
)

// Deps are the services the API routes are wired to.
type Deps struct {
	Orders   ordercontrollers.Store
	Editor   configurator.LineEditor
	Dialogs  sessioncontrollers.Dialogs
	Tracker  sessioncontrollers.Tracker
	Grids    ordercontrollers.Grids
	Guard    ordercontrollers.LineGuard
	Redis    controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Redis))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BackendContext())

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
				r.Get("/grid", ordercontrollers.Grid(deps.Orders, deps.Grids, logg))
				r.Post("/lines", ordercontrollers.AddLine(deps.Orders, logg))
				r.Put("/lines/{lineId}/template", ordercontrollers.SetTemplate(deps.Orders, deps.Editor, deps.Guard, logg))
				r.Post("/lines/{lineId}/configure", ordercontrollers.Configure(deps.Orders, deps.Editor, logg))
			})
		})

		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", sessioncontrollers.Detail(deps.Dialogs, deps.Tracker, logg))
			r.Post("/opened", sessioncontrollers.Opened(deps.Dialogs, logg))
			r.Post("/confirm", sessioncontrollers.Confirm(deps.Dialogs, logg))
			r.Post("/close", sessioncontrollers.Close(deps.Dialogs, logg))
		})
	})

	return r
}
