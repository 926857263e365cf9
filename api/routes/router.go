package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/getsum-node/api/controllers"
	"github.com/angelmondragon/getsum-node/api/middleware"
	"github.com/angelmondragon/getsum-node/pkg/logger"
)

// Deps carries what the ops router serves.
type Deps struct {
	Logger      *logger.Logger
	Node        controllers.Transformer
	Gatherer    prometheus.Gatherer
	ReadyChecks map[string]controllers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	logg := deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, deps.ReadyChecks))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if deps.Node != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/node", controllers.NodeConfig(deps.Node))
			r.Post("/transform", controllers.Transform(deps.Node, logg))
		})
	}

	return r
}
