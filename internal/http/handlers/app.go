// Package handlers exposes the job API over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/observability"
	"mediagen/internal/storage"
)

type App struct {
	Jobs    domain.JobRepository
	Store   storage.ArtifactStore
	Metrics *observability.Collector
	Logger  infra.Logger
}

func NewApp(jobs domain.JobRepository, store storage.ArtifactStore, metrics *observability.Collector, logger infra.Logger) *App {
	return &App{Jobs: jobs, Store: store, Metrics: metrics, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"error": slug, "message": message})
}
