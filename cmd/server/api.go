package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/observability"
	"pv-fault-lab/internal/orchestrator"
	"pv-fault-lab/internal/reporting"
	"pv-fault-lab/internal/storage"
	"pv-fault-lab/internal/verification"
)

// Router returns the HTTP routes of the service.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", handleHealth).Methods("GET")
	r.Handle("/metrics", observability.Handler()).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")

	r.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	r.HandleFunc("/runs", s.handleTriggerRun).Methods("POST")
	r.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	r.HandleFunc("/runs/{id}/report", s.handleRunReport).Methods("GET")
	r.HandleFunc("/runs/{id}/verify", s.handleVerifyRun).Methods("GET")

	r.HandleFunc("/monitors", s.handleListMonitors).Methods("GET")
	r.HandleFunc("/monitors/{id}/labels", s.handleMonitorLabels).Methods("GET")

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	StartedAt  time.Time `json:"started_at"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
	Runs       int       `json:"runs"`
	Running    bool      `json:"running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		StartedAt:  s.startedAt,
		LastRun:    s.lastRun,
		LastRunID:  s.lastRunID,
		LastStatus: string(s.lastStatus),
		Runs:       s.runs,
		Running:    s.running,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// RunResponse is the JSON form of a label run.
type RunResponse struct {
	RunID             string    `json:"run_id"`
	RangeFrom         string    `json:"range_from"`
	RangeTo           string    `json:"range_to"`
	MonitorCount      int       `json:"monitor_count"`
	MonitorsLabelled  int       `json:"monitors_labelled"`
	MonitorsSkipped   int       `json:"monitors_skipped"`
	RowsWritten       int       `json:"rows_written"`
	Status            string    `json:"status"`
	ConfigFingerprint string    `json:"config_fingerprint"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Errors            []string  `json:"errors"`
}

func toRunResponse(run *domain.LabelRun) RunResponse {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	return RunResponse{
		RunID:             run.RunID,
		RangeFrom:         run.RangeFrom.String(),
		RangeTo:           run.RangeTo.String(),
		MonitorCount:      run.MonitorCount,
		MonitorsLabelled:  run.MonitorsLabelled,
		MonitorsSkipped:   run.MonitorsSkipped,
		RowsWritten:       run.RowsWritten,
		Status:            string(run.Status),
		ConfigFingerprint: run.ConfigFingerprint,
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
		Errors:            errs,
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.stores.runStore.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]RunResponse, len(runs))
	for i, run := range runs {
		out[i] = toRunResponse(run)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.stores.runStore.GetByID(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

// handleRunReport renders the Markdown summary of a stored run.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.reportGen.Generate(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(reporting.RenderMarkdown(report)))
}

// VerifyResponse is the JSON result of re-labelling a stored run.
type VerifyResponse struct {
	RunID             string              `json:"run_id"`
	Match             bool                `json:"match"`
	ConfigMatch       bool                `json:"config_match"`
	TotalMonitors     int                 `json:"total_monitors"`
	DivergentMonitors int                 `json:"divergent_monitors"`
	Monitors          []MonitorVerifyJSON `json:"monitors"`
}

// MonitorVerifyJSON summarises one monitor. FirstDivergence is empty on a match.
type MonitorVerifyJSON struct {
	MonitorID       string `json:"monitor_id"`
	Match           bool   `json:"match"`
	StoredRows      int    `json:"stored_rows"`
	RelabelledRows  int    `json:"relabelled_rows"`
	Divergences     int    `json:"divergences"`
	FirstDivergence string `json:"first_divergence,omitempty"`
}

// handleVerifyRun re-labels a stored run without writing and compares with stored labels.
func (s *Server) handleVerifyRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.verifier.VerifyRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, verification.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := VerifyResponse{
		RunID:             report.RunID,
		Match:             report.Match(),
		ConfigMatch:       report.ConfigMatch,
		TotalMonitors:     report.TotalMonitors,
		DivergentMonitors: report.DivergentMonitors,
		Monitors:          make([]MonitorVerifyJSON, len(report.Results)),
	}
	for i, m := range report.Results {
		mv := MonitorVerifyJSON{
			MonitorID:      m.MonitorID,
			Match:          m.Match,
			StoredRows:     m.StoredRows,
			RelabelledRows: m.RelabelledRows,
			Divergences:    len(m.Divergences),
		}
		if len(m.Divergences) > 0 {
			d := m.Divergences[0]
			mv.FirstDivergence = fmt.Sprintf("%s %s: stored %v, relabelled %v",
				d.Time.Format(reporting.TimeLayout), d.Field, d.Expected, d.Actual)
		}
		resp.Monitors[i] = mv
	}
	writeJSON(w, http.StatusOK, resp)
}

// TriggerRequest is the body of POST /runs.
type TriggerRequest struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Monitors []string `json:"monitors"`
}

// handleTriggerRun runs labelling synchronously and returns the finished run.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	from, err := domain.ParseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	to, err := domain.ParseDate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "to: "+err.Error())
		return
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}

	report, err := s.runLabelling(r.Context(), orchestrator.RunRequest{
		Range:      domain.DateRange{From: from, To: to},
		MonitorIDs: req.Monitors,
	})
	switch {
	case errors.Is(err, errRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, orchestrator.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toRunResponse(&report.Run))
}

// MonitorResponse is the JSON form of a monitor.
type MonitorResponse struct {
	MonitorID string  `json:"monitor_id"`
	SiteID    string  `json:"site_id"`
	PVSizeW   float64 `json:"pv_size_w"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.stores.monitorStore.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]MonitorResponse, len(monitors))
	for i, m := range monitors {
		out[i] = MonitorResponse{
			MonitorID: m.MonitorID,
			SiteID:    m.SiteID,
			PVSizeW:   m.PVSizeW,
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// LabelResponse is the JSON form of a label row. Missing measurements are null.
type LabelResponse struct {
	Timestamp        string   `json:"timestamp"`
	Labels           []string `json:"labels"`
	PrimaryLabel     string   `json:"primary_label"`
	IsClipping       bool     `json:"is_clipping"`
	SegmentDuration  int      `json:"segment_duration"`
	ACPower          *float64 `json:"ac_power"`
	ACVoltage        *float64 `json:"ac_voltage"`
	DCPower          *float64 `json:"dc_power"`
	TheoreticalPower *float64 `json:"theoretical_power"`
}

// handleMonitorLabels returns stored labels of a monitor over ?from=&to= (dates, to exclusive).
func (s *Server) handleMonitorLabels(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()
	from, err := domain.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	to, err := domain.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to: "+err.Error())
		return
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}

	if _, err := s.stores.monitorStore.GetByID(r.Context(), id); errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "monitor not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rows, err := s.stores.labelStore.GetByMonitorRange(r.Context(), id, from.In(time.UTC), to.In(time.UTC))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]LabelResponse, len(rows))
	for i, row := range rows {
		labels := []string{}
		for _, l := range row.Labels.Labels() {
			labels = append(labels, string(l))
		}
		out[i] = LabelResponse{
			Timestamp:        row.Time.Format(reporting.TimeLayout),
			Labels:           labels,
			PrimaryLabel:     string(row.Primary),
			IsClipping:       row.IsClipping,
			SegmentDuration:  row.SegmentDuration,
			ACPower:          nullable(row.ACPower),
			ACVoltage:        nullable(row.ACVoltage),
			DCPower:          nullable(row.DCPower),
			TheoreticalPower: nullable(row.TheoreticalPower),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func nullable(v float64) *float64 {
	if domain.IsMissing(v) {
		return nil
	}
	return &v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
