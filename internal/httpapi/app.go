// Package httpapi serves the operator review surface: listing items that
// await approval, recording verdicts, and re-queuing failed items.
package httpapi

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"contentpipe/internal/domain"
	"contentpipe/internal/infra/geoip"
	"contentpipe/internal/storage"
)

type App struct {
	Store  domain.ContentStore
	Files  *storage.FileStore
	Geo    geoip.CountryResolver
	Logger zerolog.Logger
}

func NewApp(store domain.ContentStore, files *storage.FileStore, geo geoip.CountryResolver, logger zerolog.Logger) *App {
	return &App{Store: store, Files: files, Geo: geo, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// reviewerCountry resolves the caller's country for the approval audit log.
// Best effort: an unresolvable address yields an empty code.
func (a *App) reviewerCountry(r *http.Request) string {
	if a.Geo == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	code, err := a.Geo.CountryCode(host)
	if err != nil {
		return ""
	}
	return code
}
