package routes

import (
	"github.com/arunika-id/arunika/internal/router"
)

// RegisterOpsRoutes registers operational endpoints: liveness, the
// Prometheus scrape target, and back-office order operations. None of
// them go through the owner middleware; fulfillment advancement is
// gated on the operator key instead.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/healthz", deps.Healthcheck)
	r.Handle("GET", "/metrics", deps.MetricsHandler)
	r.Post("/ops/orders/{number}/fulfillment", deps.FulfillmentHandler, deps.OperatorAuth)
}
