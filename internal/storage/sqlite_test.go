package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestArchive(t *testing.T) *SQLiteDB {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertAndQuery(t *testing.T) {
	db := openTestArchive(t)

	id, err := db.Insert(ReportInsertParams{
		Timestamp:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
		DeviceID:   "105E8A31",
		TunerIndex: 2,
		RFChannel:  33,
		BSID:       1283,
		TSID:       -999,
		Lock:       "atsc3",
		ReportText: " L1D BSID: 1283 (0x503)\n",
		Truncated:  false,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == 0 {
		t.Fatal("insert returned id 0")
	}

	got, err := db.GetByID(id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got == nil {
		t.Fatal("get by id returned nil")
	}
	if got.DeviceID != "105E8A31" || got.TunerIndex != 2 {
		t.Errorf("got device %q tuner %d", got.DeviceID, got.TunerIndex)
	}
	if got.BSID != 1283 {
		t.Errorf("BSID = %d, want 1283", got.BSID)
	}
	if got.TSID != -999 {
		t.Errorf("TSID = %d, want -999 sentinel preserved", got.TSID)
	}
	if got.Timestamp.Hour() != 12 {
		t.Errorf("timestamp = %v", got.Timestamp)
	}
}

func TestQueryFilters(t *testing.T) {
	db := openTestArchive(t)

	insert := func(dev string, tuner int, rf uint, truncated bool) {
		t.Helper()
		_, err := db.Insert(ReportInsertParams{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			DeviceID:   dev,
			TunerIndex: tuner,
			RFChannel:  rf,
			BSID:       -999,
			TSID:       -999,
			ReportText: "x",
			Truncated:  truncated,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	insert("AAAA0001", 0, 33, false)
	insert("AAAA0001", 1, 36, true)
	insert("BBBB0002", 0, 33, false)

	got, err := db.Query(ReportQueryParams{DeviceID: "AAAA0001", TunerIndex: -1})
	if err != nil {
		t.Fatalf("query by device: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("query by device returned %d reports, want 2", len(got))
	}

	got, err = db.Query(ReportQueryParams{DeviceID: "AAAA0001", TunerIndex: 1})
	if err != nil {
		t.Fatalf("query by tuner: %v", err)
	}
	if len(got) != 1 || !got[0].Truncated {
		t.Errorf("query by tuner = %+v, want single truncated report", got)
	}

	got, err = db.Query(ReportQueryParams{RFChannel: 33, TunerIndex: -1})
	if err != nil {
		t.Fatalf("query by rf: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("query by rf returned %d reports, want 2", len(got))
	}

	got, err = db.Query(ReportQueryParams{Truncated: true, TunerIndex: -1})
	if err != nil {
		t.Fatalf("query truncated: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("query truncated returned %d reports, want 1", len(got))
	}
}

func TestArchiveStats(t *testing.T) {
	db := openTestArchive(t)

	for i := 0; i < 3; i++ {
		_, err := db.Insert(ReportInsertParams{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			DeviceID:   "AAAA0001",
			TunerIndex: i,
			RFChannel:  33,
			BSID:       -999,
			TSID:       -999,
			ReportText: "x",
			Truncated:  i == 0,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalReports != 3 {
		t.Errorf("TotalReports = %d, want 3", stats.TotalReports)
	}
	if stats.ByDevice["AAAA0001"] != 3 {
		t.Errorf("ByDevice = %v", stats.ByDevice)
	}
	if stats.ByRFChannel[33] != 3 {
		t.Errorf("ByRFChannel = %v", stats.ByRFChannel)
	}
	if stats.Truncated != 1 {
		t.Errorf("Truncated = %d, want 1", stats.Truncated)
	}

	devices, err := db.Devices()
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(devices) != 1 || devices[0] != "AAAA0001" {
		t.Errorf("Devices() = %v", devices)
	}
}
