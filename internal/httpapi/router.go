package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"leadhunt-engine/internal/metrics"
)

// NewRouter returns the chi mux so main can still attach /shutdown
// (it needs the server and token).
func NewRouter(d Deps) *chi.Mux {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(RequestID(log.Named("http")))
	r.Use(Recover)
	r.Use(AccessLog)
	r.Use(metrics.HTTP)
	r.Use(Cors(d.Origins))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", HealthHandler{Checks: d.Checks}.Health)

	eh := EventsHandler{Hub: d.Hub}
	r.Get("/events", eh.ServeSSE)

	lh := LeadsHandler{Store: d.Store, Workflow: d.Workflow, Bus: d.Bus}
	r.Route("/leads", func(r chi.Router) {
		r.Get("/", lh.List)
		r.Post("/", lh.Create)
		r.Post("/bulk/{action}", lh.Bulk)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", lh.Get)
			r.Patch("/", lh.Patch)
			r.Post("/status", lh.SetStatus)
			r.Post("/approve", lh.Approve)
			r.Post("/reject", lh.Reject)
			r.Post("/pending", lh.MarkPending)
		})
	})

	rh := RunsHandler{Deps: d}
	if d.Discovery != nil {
		r.Post("/discovery/run", rh.RunDiscovery)
		r.Get("/discovery/status", rh.DiscoveryStatus)
	}
	if d.Scoring != nil {
		r.Post("/scoring/run", rh.RunScoring)
	}
	if d.Outreach != nil {
		r.Post("/outreach/send", rh.Send)
	}

	xh := ExportsHandler{Deps: d}
	r.Get("/analytics", xh.Analytics)
	r.Post("/exports/{kind}", xh.Write)

	if d.CfgVal != nil {
		ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg}
		r.Get("/config", ch.Get)
		r.Put("/config", ch.Put)
		r.Get("/config/path", ch.Path)
		r.Get("/config/validate", ch.Validate)

		sh := SecretsHandler{CfgVal: d.CfgVal, Set: d.SetSecret}
		r.With(LocalOnly).Post("/api/secrets/{kind}", sh.SetPassword)
	}
	return r
}
