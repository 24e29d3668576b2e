// Package api provides REST API endpoints for tuner diagnostics.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"atsc_diag/internal/b64"
	"atsc_diag/internal/report"
	"atsc_diag/internal/storage"
)

// Server provides REST API access to tuner state, signal history, and the
// report archive.
type Server struct {
	pg          *storage.PostgresDB
	ch          *storage.ClickHouseDB
	archive     *storage.SQLiteDB
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewServer creates a new diagnostics API server. Any of pg, ch, and archive
// may be nil; the corresponding endpoints return 503.
func NewServer(pg *storage.PostgresDB, ch *storage.ClickHouseDB, archive *storage.SQLiteDB, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		pg:          pg,
		ch:          ch,
		archive:     archive,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Diagnostics API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)

	r.Get("/tuners", s.handleListTuners)
	r.Get("/tuners/{device_id}/{tuner_index}", s.handleGetTuner)

	r.Get("/streams", s.handleListStreams)

	r.Get("/reports", s.handleListReports)
	r.Get("/reports/{id}", s.handleGetReport)

	r.Get("/signal/history", s.handleSignalHistory)
	r.Get("/signal/summary", s.handleSignalSummary)

	r.Post("/decode", s.handleDecode)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// TunerResponse is the JSON form of one tuner's state.
type TunerResponse struct {
	DeviceID       string `json:"device_id"`
	TunerIndex     int    `json:"tuner_index"`
	Channel        string `json:"channel,omitempty"`
	LockType       string `json:"lock_type,omitempty"`
	RFChannel      uint   `json:"rf_channel,omitempty"`
	BSID           int64  `json:"bsid"`
	TSID           int64  `json:"tsid"`
	SignalStrength int64  `json:"signal_strength"`
	SignalDBm      int64  `json:"signal_dbm"`
	SignalQuality  int64  `json:"signal_quality"`
	SNRdB          int64  `json:"snr_db"`
	SymbolQuality  int64  `json:"symbol_quality"`
	BitsPerSec     int64  `json:"bits_per_sec"`
	PacketsPerSec  int64  `json:"packets_per_sec"`
	FirstSeen      string `json:"first_seen"`
	LastSeen       string `json:"last_seen"`
	SnapshotCount  int    `json:"snapshot_count"`
}

func tunerToResponse(t *storage.TunerState) TunerResponse {
	return TunerResponse{
		DeviceID:       t.DeviceID,
		TunerIndex:     t.TunerIndex,
		Channel:        t.Channel,
		LockType:       t.LockType,
		RFChannel:      t.RFChannel,
		BSID:           t.BSID,
		TSID:           t.TSID,
		SignalStrength: t.SignalStrength,
		SignalDBm:      t.SignalDBm,
		SignalQuality:  t.SignalQuality,
		SNRdB:          t.SNRdB,
		SymbolQuality:  t.SymbolQuality,
		BitsPerSec:     t.BitsPerSec,
		PacketsPerSec:  t.PacketsPerSec,
		FirstSeen:      t.FirstSeen.Format(time.RFC3339),
		LastSeen:       t.LastSeen.Format(time.RFC3339),
		SnapshotCount:  t.SnapshotCount,
	}
}

func (s *Server) handleListTuners(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "tuner state store not configured")
		return
	}

	states, err := s.pg.ListTunerStates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]TunerResponse, 0, len(states))
	for i := range states {
		results = append(results, tunerToResponse(&states[i]))
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetTuner(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "tuner state store not configured")
		return
	}

	deviceID := strings.ToUpper(chi.URLParam(r, "device_id"))
	index, err := strconv.Atoi(chi.URLParam(r, "tuner_index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "Invalid tuner index")
		return
	}

	state, err := s.pg.GetTunerState(r.Context(), deviceID, index)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "Tuner not found")
		return
	}

	writeJSON(w, http.StatusOK, tunerToResponse(state))
}

// StreamResponse is the JSON form of one broadcast stream record.
type StreamResponse struct {
	BSID             int64  `json:"bsid"`
	RFChannel        uint   `json:"rf_channel"`
	TSID             int64  `json:"tsid"`
	FirstSeen        string `json:"first_seen"`
	LastSeen         string `json:"last_seen"`
	ObservationCount int    `json:"observation_count"`
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "tuner state store not configured")
		return
	}

	streams, err := s.pg.ListBroadcastStreams(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]StreamResponse, 0, len(streams))
	for _, b := range streams {
		results = append(results, StreamResponse{
			BSID:             b.BSID,
			RFChannel:        b.RFChannel,
			TSID:             b.TSID,
			FirstSeen:        b.FirstSeen.Format(time.RFC3339),
			LastSeen:         b.LastSeen.Format(time.RFC3339),
			ObservationCount: b.ObservationCount,
		})
	}
	writeJSON(w, http.StatusOK, results)
}

// ReportResponse is the JSON form of one archived report.
type ReportResponse struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	DeviceID   string `json:"device_id"`
	TunerIndex int    `json:"tuner_index"`
	RFChannel  uint   `json:"rf_channel"`
	BSID       int64  `json:"bsid"`
	TSID       int64  `json:"tsid"`
	Lock       string `json:"lock,omitempty"`
	Truncated  bool   `json:"truncated"`
	ReportText string `json:"report_text,omitempty"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	q := r.URL.Query()
	params := storage.ReportQueryParams{
		DeviceID:   strings.ToUpper(q.Get("device_id")),
		TunerIndex: -1,
		OrderDesc:  true,
	}
	if v := q.Get("tuner_index"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.TunerIndex = n
		}
	}
	if v := q.Get("rf_channel"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			params.RFChannel = uint(n)
		}
	}
	if v := q.Get("bsid"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.BSID = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Offset = n
		}
	}
	params.Truncated = q.Get("truncated") == "true"

	reports, err := s.archive.Query(params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Listings omit the report body; fetch by id for the full text.
	results := make([]ReportResponse, 0, len(reports))
	for _, rep := range reports {
		results = append(results, ReportResponse{
			ID:         rep.ID,
			Timestamp:  rep.Timestamp.Format(time.RFC3339),
			DeviceID:   rep.DeviceID,
			TunerIndex: rep.TunerIndex,
			RFChannel:  rep.RFChannel,
			BSID:       rep.BSID,
			TSID:       rep.TSID,
			Lock:       rep.Lock,
			Truncated:  rep.Truncated,
		})
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	rep, err := s.archive.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, "Report not found")
		return
	}

	writeJSON(w, http.StatusOK, ReportResponse{
		ID:         rep.ID,
		Timestamp:  rep.Timestamp.Format(time.RFC3339),
		DeviceID:   rep.DeviceID,
		TunerIndex: rep.TunerIndex,
		RFChannel:  rep.RFChannel,
		BSID:       rep.BSID,
		TSID:       rep.TSID,
		Lock:       rep.Lock,
		Truncated:  rep.Truncated,
		ReportText: rep.ReportText,
	})
}

func (s *Server) handleSignalHistory(w http.ResponseWriter, r *http.Request) {
	if s.ch == nil {
		writeError(w, http.StatusServiceUnavailable, "signal history store not configured")
		return
	}

	q := r.URL.Query()
	params := storage.SampleQueryParams{
		DeviceID:   strings.ToUpper(q.Get("device_id")),
		TunerIndex: -1,
	}
	if v := q.Get("tuner_index"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.TunerIndex = n
		}
	}
	if v := q.Get("rf_channel"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			params.RFChannel = uint16(n)
		}
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since timestamp (use RFC 3339)")
			return
		}
		params.Since = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}

	samples, err := s.ch.QuerySamples(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleSignalSummary(w http.ResponseWriter, r *http.Request) {
	if s.ch == nil {
		writeError(w, http.StatusServiceUnavailable, "signal history store not configured")
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since timestamp (use RFC 3339)")
			return
		}
		since = t
	}

	summaries, err := s.ch.SummarizeSignal(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// DecodeRequest carries the raw diagnostic blobs for an ad-hoc decode.
type DecodeRequest struct {
	PLPInfo    string `json:"plpinfo"`
	StreamInfo string `json:"streaminfo"`
	L1Detail   string `json:"l1detail"` // Base64
}

// DecodeResponse is the assembled report.
type DecodeResponse struct {
	Lines []string `json:"lines"`
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	var l1Data []byte
	if req.L1Detail != "" {
		data, err := b64.Decode(req.L1Detail)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid l1detail: "+err.Error())
			return
		}
		l1Data = data
	}

	lines := report.Assemble(req.PLPInfo, req.StreamInfo, l1Data)
	writeJSON(w, http.StatusOK, DecodeResponse{Lines: lines})
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
