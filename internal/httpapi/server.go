package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"stockview/internal/dashboard"
	"stockview/internal/dataset"
	"stockview/internal/domain"
	"stockview/internal/render"
)

// DashboardServer serves the dashboard HTTP API over a read-only dataset.
// Every request recomputes its own series, so handlers share no mutable
// state.
type DashboardServer struct {
	ds       *dataset.Dataset
	controls dashboard.Controls
	opts     dashboard.Options
	log      *slog.Logger
}

// NewDashboardServer creates a new dashboard HTTP server.
func NewDashboardServer(
	ds *dataset.Dataset,
	controls dashboard.Controls,
	opts dashboard.Options,
	log *slog.Logger,
) *DashboardServer {
	return &DashboardServer{
		ds:       ds,
		controls: controls,
		opts:     opts,
		log:      log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/controls", s.handleControls)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/years", s.handleYears)
	mux.HandleFunc("GET /api/series", s.handleSeries)
	mux.HandleFunc("GET /api/chart/{file}", s.handleChart)
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseViewState builds a selection from query parameters. Missing
// parameters take the control defaults; a symbol without a year selects that
// symbol's latest year. The result is validated against the controls.
func (s *DashboardServer) parseViewState(r *http.Request) (dashboard.ViewState, error) {
	q := r.URL.Query()
	st := s.controls.DefaultState()

	if v := q.Get("symbol"); v != "" {
		st.Symbol = strings.ToUpper(v)
		if years := s.ds.YearsFor(st.Symbol); len(years) > 0 {
			st.Year = years[len(years)-1]
		}
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"year", &st.Year}, {"sma", &st.SMAWindow}, {"rsi", &st.RSIWindow},
	}
	for _, p := range ints {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return st, &dashboard.ValidationError{Field: p.name, Message: fmt.Sprintf("not an integer: %q", v)}
		}
		*p.dst = n
	}
	if q.Has("fields") {
		fields, err := domain.ParseFields(q.Get("fields"))
		if err != nil {
			return st, &dashboard.ValidationError{Field: "fields", Message: err.Error()}
		}
		st.Fields = fields
	}

	return st, s.controls.Validate(st)
}

func (s *DashboardServer) recompute(w http.ResponseWriter, r *http.Request) (dashboard.ViewState, dashboard.DerivedSeries, bool) {
	st, err := s.parseViewState(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return st, dashboard.DerivedSeries{}, false
	}
	d, err := dashboard.Recompute(s.ds, st, s.opts)
	if err != nil {
		s.log.Error("recompute failed", "state", st.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "recompute failed")
		return st, d, false
	}
	s.log.Debug("recomputed", "state", st.String(), "rows", d.Len())
	return st, d, true
}

func (s *DashboardServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "bars": s.ds.Len()})
}

func (s *DashboardServer) handleControls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, convertControls(s.controls))
}

func (s *DashboardServer) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := s.ds.Symbols()
	writeJSON(w, SymbolsResponse{Symbols: symbols})
}

func (s *DashboardServer) handleYears(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	years := s.ds.YearsFor(symbol)
	if years == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %s", symbol))
		return
	}
	writeJSON(w, YearsResponse{Symbol: symbol, Years: years})
}

func (s *DashboardServer) handleSeries(w http.ResponseWriter, r *http.Request) {
	st, d, ok := s.recompute(w, r)
	if !ok {
		return
	}
	writeJSON(w, convertSeries(d, st))
}

func (s *DashboardServer) handleChart(w http.ResponseWriter, r *http.Request) {
	name, found := strings.CutSuffix(r.PathValue("file"), ".png")
	if !found {
		writeError(w, http.StatusNotFound, "charts are served as .png")
		return
	}
	panel, err := render.ParsePanel(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var opts render.Options
	for _, p := range []struct {
		name string
		dst  *int
	}{{"width", &opts.Width}, {"height", &opts.Height}} {
		if v := r.URL.Query().Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 4096 {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", p.name, v))
				return
			}
			*p.dst = n
		}
	}

	_, d, ok := s.recompute(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, d, panel, opts); err != nil {
		if errors.Is(err, render.ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.log.Error("rendering chart", "panel", panel, "error", err)
		writeError(w, http.StatusInternalServerError, "rendering failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}
