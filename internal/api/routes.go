package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/audit"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/auth"
	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/ranging"
)

const (
	defaultMeasurementLimit = 50
	maxMeasurementLimit     = audit.DefaultHistoryLen
)

// RegisterRoutes registers the v1 endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	mux.HandleFunc(healthPath, s.handleHealth)
	mux.HandleFunc(apiV1+"/status", s.auth.RequireScope(s.handleStatus, auth.ScopeRead))
	mux.HandleFunc(apiV1+"/measurements", s.auth.RequireScope(s.handleMeasurements, auth.ScopeRead))
	mux.HandleFunc(apiV1+"/range", s.auth.RequireScope(s.handleRange, auth.ScopeControl))
	mux.HandleFunc(apiV1+"/telemetry", s.auth.RequireScope(s.handleTelemetry, auth.ScopeTelemetry))
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only "+method+" method is allowed", nil)
	return false
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"status":    "ok",
		"mode":      s.cfg.Mode,
		"version":   s.cfg.Version,
		"uptimeSec": time.Since(s.startTime).Seconds(),
		"subsystems": map[string]bool{
			"ranging":     s.cfg.Ranging != nil,
			"accessPoint": s.cfg.AccessPoint != nil,
			"telemetry":   s.cfg.Telemetry != nil,
			"audit":       s.cfg.Audit != nil,
		},
	})
}

// handleStatus handles GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	status := map[string]interface{}{"mode": s.cfg.Mode}
	if s.cfg.Roles != nil {
		status["radio"] = s.cfg.Roles.Status()
	}
	if s.cfg.Association != nil {
		status["association"] = s.cfg.Association.Snapshot()
	}
	if s.cfg.Ranging != nil {
		sessions, timeouts, dropped := s.cfg.Ranging.Stats()
		params := s.cfg.Ranging.Params()
		status["ranging"] = map[string]interface{}{
			"inFlight":       s.cfg.Ranging.InFlight(),
			"params":         params,
			"deadlineMs":     ranging.Deadline(params).Milliseconds(),
			"sessions":       sessions,
			"timeouts":       timeouts,
			"droppedReports": dropped,
		}
	}
	if s.cfg.AccessPoint != nil {
		running, since := s.cfg.AccessPoint.Running()
		ap := map[string]interface{}{"running": running}
		if !since.IsZero() {
			ap["since"] = since
		}
		status["accessPoint"] = ap
	}
	WriteSuccess(w, status)
}

// handleMeasurements handles GET /measurements?limit=N&action=A
func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.cfg.Audit == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Measurement log not available", nil)
		return
	}

	limit := defaultMeasurementLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxMeasurementLimit {
			WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be between 1 and "+strconv.Itoa(maxMeasurementLimit), nil)
			return
		}
		limit = n
	}
	action := audit.ActionRange
	if r.URL.Query().Has("action") {
		action = r.URL.Query().Get("action")
	}

	entries := s.cfg.Audit.Recent(action, limit)
	if entries == nil {
		entries = []audit.Entry{}
	}
	WriteSuccess(w, map[string]interface{}{"count": len(entries), "entries": entries})
}

type rangeRequest struct {
	FrameCount  *uint8  `json:"frameCount"`
	BurstPeriod *uint16 `json:"burstPeriod"`
	ReportMode  *bool   `json:"reportMode"`
}

// OutcomeView is the JSON form of a ranging outcome.
type OutcomeView struct {
	SessionID  string `json:"sessionId"`
	Kind       string `json:"kind"`
	Peer       string `json:"peer"`
	Channel    uint8  `json:"channel"`
	Status     string `json:"status,omitempty"`
	RTTNs      uint32 `json:"rttNs,omitempty"`
	RTTEstNs   uint32 `json:"rttEstNs,omitempty"`
	DistanceCm uint32 `json:"distanceCm,omitempty"`
	DistanceM  string `json:"distanceM,omitempty"`
	Entries    int    `json:"entries,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// NewOutcomeView converts an outcome.
func NewOutcomeView(out ranging.Outcome) OutcomeView {
	v := OutcomeView{
		SessionID:  out.SessionID.String(),
		Kind:       out.Kind.String(),
		Peer:       out.Peer.String(),
		Channel:    out.Channel,
		DurationMs: out.Duration().Milliseconds(),
	}
	if out.Kind != ranging.KindTimeout {
		v.Status = out.Status.String()
	}
	if out.Kind == ranging.KindSuccess {
		v.RTTNs = out.RTT
		v.RTTEstNs = out.RTTEst
		v.DistanceCm = out.Distance
		v.DistanceM = out.FormatDistance()
		v.Entries = out.Entries
	}
	return v
}

// handleRange handles POST /range. The optional JSON body overrides the
// configured session parameters.
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.cfg.Ranging == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Ranging is not available on this node", nil)
		return
	}

	var req rangeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON or unknown fields", nil)
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Trailing data after JSON object", nil)
		return
	}

	params := s.cfg.Ranging.Params()
	if req.FrameCount != nil {
		params.FrameCount = *req.FrameCount
	}
	if req.BurstPeriod != nil {
		params.BurstPeriod = *req.BurstPeriod
	}
	if req.ReportMode != nil {
		params.ReportMode = *req.ReportMode
	}
	if err := params.Validate(); err != nil {
		WriteAPIError(w, err)
		return
	}

	ctx := r.Context()
	if claims := auth.ClaimsFrom(ctx); claims != nil {
		ctx = audit.WithActor(ctx, claims.Subject)
	}

	started := time.Now()
	out, err := s.cfg.Ranging.RangeWith(ctx, params)
	if s.cfg.Audit != nil {
		s.cfg.Audit.LogAction(ctx, audit.ActionTriggerAPI, map[string]interface{}{
			"frameCount":  params.FrameCount,
			"burstPeriod": params.BurstPeriod,
			"reportMode":  params.ReportMode,
		}, time.Since(started), err)
	}
	if err != nil {
		s.log.Warnf("range request from %s failed: %v", audit.ActorFrom(ctx), err)
		WriteAPIError(w, err)
		return
	}
	if s.cfg.OnOutcome != nil {
		s.cfg.OnOutcome(ctx, out)
	}
	WriteSuccess(w, NewOutcomeView(out))
}

// handleTelemetry handles GET /telemetry (SSE)
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.cfg.Telemetry == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Telemetry not available", nil)
		return
	}
	if err := s.cfg.Telemetry.Subscribe(r.Context(), w, r); err != nil {
		s.log.Debugf("telemetry stream ended: %v", err)
	}
}
