package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/camuig/pie-watch/internal/metrics"
	"github.com/camuig/pie-watch/internal/storage"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"money": metrics.FormatAmount,
	"pct":   func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + "%" },
}).ParseFS(templateFS, "templates/dashboard.html"))

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type DashboardData struct {
	Rows      []metrics.Row
	Totals    metrics.Totals
	Currency  string
	LastCycle string
	Outcome   string
	UpdatedAt time.Time
}

type summaryResponse struct {
	metrics.Totals
	Pies     int    `json:"pies"`
	Currency string `json:"currency"`
}

type historyResponse struct {
	WindowSeconds float64        `json:"window_seconds"`
	Points        []RollingPoint `json:"points"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Pies      int       `json:"pies"`
	CycleID   string    `json:"cycle_id,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Error     string    `json:"error,omitempty"`
	Finished  time.Time `json:"finished"`
	Errors24h *int64    `json:"errors_24h,omitempty"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	snap := s.store.Snapshot()
	data := DashboardData{
		Rows:      metrics.Rows(snap, s.now()),
		Totals:    metrics.AggregateTotals(snap),
		Currency:  s.config.Trading212.Currency,
		UpdatedAt: s.now(),
	}
	if s.status != nil {
		last := s.status.LastCycle()
		data.LastCycle = last.CycleID
		data.Outcome = last.Outcome
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.logger.Error("execute template", "error", err)
	}
}

func (s *Server) handlePies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, metrics.Rows(s.store.Snapshot(), s.now()))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	s.writeJSON(w, http.StatusOK, summaryResponse{
		Totals:   metrics.AggregateTotals(snap),
		Pies:     len(snap),
		Currency: s.config.Trading212.Currency,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	resp := historyResponse{Points: []RollingPoint{}}
	if s.history != nil {
		resp.WindowSeconds = s.history.Window().Seconds()
		resp.Points = s.history.Points()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefreshLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLogLimit)
	}

	logs := []storage.RefreshLog{}
	if s.logs != nil {
		found, err := s.logs.RecentRefreshLogs(limit)
		if err != nil {
			s.logger.Error("load refresh logs", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		logs = append(logs, found...)
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Pies: s.store.Len()}
	if s.status != nil {
		last := s.status.LastCycle()
		resp.CycleID = last.CycleID
		resp.Outcome = last.Outcome
		resp.Finished = last.Finished
		if last.Err != nil {
			resp.Error = last.Err.Error()
		}
	}
	if s.logs != nil {
		n, err := s.logs.CountSince(storage.OutcomeError, s.now().Add(-24*time.Hour))
		if err != nil {
			s.logger.Error("count failed cycles", "error", err)
		} else {
			resp.Errors24h = &n
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
