package server

import (
	"encoding/json"
	"net/http"

	"github.com/ianremillard/wireline/internal/registry"
	"github.com/ianremillard/wireline/internal/schema"
	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewAdminRouter builds the daemon's side-channel HTTP surface: a
// Prometheus scrape endpoint, a registry snapshot for operators, a
// snapshot of outstanding sequence ids across every connected session,
// and the wire schema's JSON Schema for documentation tooling. None of
// this rides over the session's own framed protocol.
func NewAdminRouter(reg *registry.Registry, promReg *prometheus.Registry, conns *ConnSet) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	r.Get("/debug/projects", debugProjectsHandler(reg))
	r.Get("/debug/inflight", debugInflightHandler(conns))
	r.Get("/debug/schema", debugSchemaHandler())
	return r
}

func debugProjectsHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reg.Snapshot())
	}
}

func debugInflightHandler(conns *ConnSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(conns.InFlight(r.Context()))
	}
}

func debugSchemaHandler() http.HandlerFunc {
	reflector := &jsonschema.Reflector{}
	doc := map[string]*jsonschema.Schema{
		"request":  reflector.Reflect(&schema.Request{}),
		"response": reflector.Reflect(&schema.Response{}),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}
