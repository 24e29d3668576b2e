// Package storage provides persistent storage for tuner diagnostic reports.
package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Report represents an archived diagnostic report.
type Report struct {
	ID          int64
	Timestamp   time.Time
	DeviceID    string
	TunerIndex  int
	RFChannel   uint
	BSID        int64 // -999 when not reported
	TSID        int64 // -999 when not reported
	Lock        string
	ReportText  string
	L1DetailB64 string
	Truncated   bool
}

// SQLiteDB wraps a SQLite database connection for the local report archive.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite report archive at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		device_id TEXT NOT NULL,
		tuner_index INTEGER NOT NULL,
		rf_channel INTEGER,
		bsid INTEGER,
		tsid INTEGER,
		lock TEXT,
		report_text TEXT NOT NULL,
		l1detail_b64 TEXT,
		truncated INTEGER DEFAULT 0,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_reports_device ON reports(device_id, tuner_index);
	CREATE INDEX IF NOT EXISTS idx_reports_rf ON reports(rf_channel);
	CREATE INDEX IF NOT EXISTS idx_reports_bsid ON reports(bsid);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON reports(timestamp);
	`

	_, err := db.Exec(schema)
	return err
}

// ReportInsertParams contains the parameters for archiving a report.
type ReportInsertParams struct {
	Timestamp   string
	DeviceID    string
	TunerIndex  int
	RFChannel   uint
	BSID        int64
	TSID        int64
	Lock        string
	ReportText  string
	L1DetailB64 string
	Truncated   bool
}

// Insert archives a report, returning its row id.
func (d *SQLiteDB) Insert(p ReportInsertParams) (int64, error) {
	truncated := 0
	if p.Truncated {
		truncated = 1
	}

	result, err := d.db.Exec(`
		INSERT INTO reports (timestamp, device_id, tuner_index, rf_channel, bsid, tsid, lock, report_text, l1detail_b64, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Timestamp, p.DeviceID, p.TunerIndex, p.RFChannel, p.BSID, p.TSID, p.Lock, p.ReportText, p.L1DetailB64, truncated)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}

	return result.LastInsertId()
}

// ReportQueryParams contains filtering options for querying reports.
type ReportQueryParams struct {
	ID         int64  // Filter by specific report ID.
	DeviceID   string // Filter by device (exact match).
	TunerIndex int    // Filter by tuner index (with DeviceID); -1 for any.
	RFChannel  uint   // Filter by RF channel.
	BSID       int64  // Filter by broadcast stream id.
	Truncated  bool   // Only show reports with truncated L1 data.
	Limit      int    // Max results (default 100).
	Offset     int    // Pagination offset.
	OrderDesc  bool   // Sort by timestamp descending.
}

// Query retrieves reports matching the given parameters.
func (d *SQLiteDB) Query(p ReportQueryParams) ([]Report, error) {
	var conditions []string
	var args []interface{}

	if p.ID != 0 {
		conditions = append(conditions, "id = ?")
		args = append(args, p.ID)
	}
	if p.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, p.DeviceID)
		if p.TunerIndex >= 0 {
			conditions = append(conditions, "tuner_index = ?")
			args = append(args, p.TunerIndex)
		}
	}
	if p.RFChannel != 0 {
		conditions = append(conditions, "rf_channel = ?")
		args = append(args, p.RFChannel)
	}
	if p.BSID != 0 {
		conditions = append(conditions, "bsid = ?")
		args = append(args, p.BSID)
	}
	if p.Truncated {
		conditions = append(conditions, "truncated = 1")
	}

	query := `SELECT id, timestamp, device_id, tuner_index, rf_channel, bsid, tsid, lock, report_text, l1detail_b64, truncated FROM reports`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY timestamp %s", direction)

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []Report
	for rows.Next() {
		var r Report
		var ts string
		var lock, l1b64 sql.NullString
		var truncated sql.NullInt64

		err := rows.Scan(&r.ID, &ts, &r.DeviceID, &r.TunerIndex, &r.RFChannel,
			&r.BSID, &r.TSID, &lock, &r.ReportText, &l1b64, &truncated)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if lock.Valid {
			r.Lock = lock.String
		}
		if l1b64.Valid {
			r.L1DetailB64 = l1b64.String
		}
		if truncated.Valid {
			r.Truncated = truncated.Int64 == 1
		}

		reports = append(reports, r)
	}

	return reports, rows.Err()
}

// GetByID retrieves a single report by ID.
func (d *SQLiteDB) GetByID(id int64) (*Report, error) {
	reports, err := d.Query(ReportQueryParams{ID: id, TunerIndex: -1, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}

// ArchiveStats contains aggregate statistics about archived reports.
type ArchiveStats struct {
	TotalReports int
	ByDevice     map[string]int
	ByRFChannel  map[uint]int
	Truncated    int
}

// GetStats returns statistics about the archive.
func (d *SQLiteDB) GetStats() (*ArchiveStats, error) {
	stats := &ArchiveStats{
		ByDevice:    make(map[string]int),
		ByRFChannel: make(map[uint]int),
	}

	row := d.db.QueryRow("SELECT COUNT(*) FROM reports")
	if err := row.Scan(&stats.TotalReports); err != nil {
		return nil, err
	}

	rows, err := d.db.Query("SELECT device_id, COUNT(*) FROM reports GROUP BY device_id ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var dev string
		var count int
		if err := rows.Scan(&dev, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByDevice[dev] = count
	}
	_ = rows.Close()

	rows, err = d.db.Query("SELECT rf_channel, COUNT(*) FROM reports GROUP BY rf_channel ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var rf uint
		var count int
		if err := rows.Scan(&rf, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByRFChannel[rf] = count
	}
	_ = rows.Close()

	row = d.db.QueryRow("SELECT COUNT(*) FROM reports WHERE truncated = 1")
	if err := row.Scan(&stats.Truncated); err != nil {
		return nil, err
	}

	return stats, nil
}

// Devices returns the distinct device ids seen in the archive.
func (d *SQLiteDB) Devices() ([]string, error) {
	rows, err := d.db.Query("SELECT DISTINCT device_id FROM reports ORDER BY device_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
