package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"atsc_diag/internal/storage"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(nil, nil, nil, Config{Port: 8081})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	server := NewServer(nil, nil, nil, Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	})
	router := server.Router()

	tests := []struct {
		name       string
		apiKey     string
		keyHeader  string
		wantStatus int
	}{
		{
			name:       "no key",
			apiKey:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid key",
			apiKey:     "wrong-key",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid key via X-API-Key",
			apiKey:     "test-key-123",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid key via Bearer",
			apiKey:     "another-key",
			keyHeader:  "Authorization",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.apiKey != "" {
				if tt.keyHeader == "Authorization" {
					req.Header.Set("Authorization", "Bearer "+tt.apiKey)
				} else {
					req.Header.Set(tt.keyHeader, tt.apiKey)
				}
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestUnconfiguredStores(t *testing.T) {
	server := NewServer(nil, nil, nil, Config{Port: 8081})
	router := server.Router()

	for _, path := range []string{"/tuners", "/streams", "/reports", "/signal/history", "/signal/summary"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected status 503, got %d", path, rec.Code)
		}
	}
}

func TestReportsEndpoints(t *testing.T) {
	archive, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer func() { _ = archive.Close() }()

	id, err := archive.Insert(storage.ReportInsertParams{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		DeviceID:   "105E8A31",
		TunerIndex: 0,
		RFChannel:  33,
		BSID:       1283,
		TSID:       -999,
		Lock:       "atsc3",
		ReportText: " L1D BSID: 1283 (0x503)\n",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	server := NewServer(nil, nil, archive, Config{Port: 8081})
	router := server.Router()

	// Listing omits report bodies.
	req := httptest.NewRequest(http.MethodGet, "/reports?device_id=105e8a31", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected status 200, got %d", rec.Code)
	}
	var list []ReportResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list returned %d reports, want 1", len(list))
	}
	if list[0].BSID != 1283 || list[0].ReportText != "" {
		t.Errorf("list entry = %+v", list[0])
	}

	// Fetch by id includes the body.
	req = httptest.NewRequest(http.MethodGet, "/reports/"+strconv.FormatInt(id, 10), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected status 200, got %d", rec.Code)
	}
	var got ReportResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !strings.Contains(got.ReportText, "L1D BSID: 1283") {
		t.Errorf("report text = %q", got.ReportText)
	}

	// Unknown id.
	req = httptest.NewRequest(http.MethodGet, "/reports/99999", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected status 404, got %d", rec.Code)
	}
}

func TestDecodeEndpoint(t *testing.T) {
	server := NewServer(nil, nil, nil, Config{Port: 8081})
	router := server.Router()

	body, _ := json.Marshal(DecodeRequest{
		PLPInfo:    "bsid=1283\n0:lock=1 mod=qam256 cod=7/15 layer=core",
		StreamInfo: "tsid=0x0503",
	})
	req := httptest.NewRequest(http.MethodPost, "/decode", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp DecodeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	joined := strings.Join(resp.Lines, "\n")
	if !strings.Contains(joined, "L1D BSID: 1283 (0x503)") {
		t.Errorf("missing BSID line in:\n%s", joined)
	}
	if !strings.Contains(joined, "Required SNR: Min 10.93 dB") {
		t.Errorf("missing SNR annotation in:\n%s", joined)
	}
}

func TestDecodeEndpointBadBase64(t *testing.T) {
	server := NewServer(nil, nil, nil, Config{Port: 8081})
	router := server.Router()

	body, _ := json.Marshal(DecodeRequest{L1Detail: "not valid b64!"})
	req := httptest.NewRequest(http.MethodPost, "/decode", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
