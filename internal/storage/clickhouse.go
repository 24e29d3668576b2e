package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for signal history analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS signal_history (
			timestamp       DateTime64(3),
			device_id       LowCardinality(String),
			tuner_index     UInt8,
			rf_channel      UInt16,
			lock_type       LowCardinality(String),
			bsid            Int64,
			signal_strength Int16,
			signal_dbm      Int16,
			signal_quality  Int16,
			snr_db          Int16,
			symbol_quality  Int16,
			bits_per_sec    Int64,
			packets_per_sec Int64,
			created_at      DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (device_id, tuner_index, timestamp)
		SETTINGS index_granularity = 8192`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	return nil
}

// SignalSample is one signal history row.
type SignalSample struct {
	Timestamp      time.Time
	DeviceID       string
	TunerIndex     uint8
	RFChannel      uint16
	LockType       string
	BSID           int64
	SignalStrength int16
	SignalDBm      int16
	SignalQuality  int16
	SNRdB          int16
	SymbolQuality  int16
	BitsPerSec     int64
	PacketsPerSec  int64
}

// InsertSample stores a single signal history row.
func (d *ClickHouseDB) InsertSample(ctx context.Context, s SignalSample) error {
	err := d.conn.Exec(ctx, `
		INSERT INTO signal_history (timestamp, device_id, tuner_index, rf_channel, lock_type, bsid,
			signal_strength, signal_dbm, signal_quality, snr_db, symbol_quality, bits_per_sec, packets_per_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Timestamp, s.DeviceID, s.TunerIndex, s.RFChannel, s.LockType, s.BSID,
		s.SignalStrength, s.SignalDBm, s.SignalQuality, s.SNRdB, s.SymbolQuality,
		s.BitsPerSec, s.PacketsPerSec)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}

	return nil
}

// InsertSampleBatch stores multiple signal history rows efficiently.
func (d *ClickHouseDB) InsertSampleBatch(ctx context.Context, samples []SignalSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO signal_history (timestamp, device_id, tuner_index, rf_channel, lock_type, bsid,
			signal_strength, signal_dbm, signal_quality, snr_db, symbol_quality, bits_per_sec, packets_per_sec)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, s := range samples {
		err := batch.Append(s.Timestamp, s.DeviceID, s.TunerIndex, s.RFChannel, s.LockType, s.BSID,
			s.SignalStrength, s.SignalDBm, s.SignalQuality, s.SNRdB, s.SymbolQuality,
			s.BitsPerSec, s.PacketsPerSec)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// SampleQueryParams contains filtering options for querying signal history.
type SampleQueryParams struct {
	DeviceID   string
	TunerIndex int // -1 for any
	RFChannel  uint16
	Since      time.Time
	Until      time.Time
	Limit      int
}

// QuerySamples retrieves signal history rows matching the given parameters,
// most recent first.
func (d *ClickHouseDB) QuerySamples(ctx context.Context, p SampleQueryParams) ([]SignalSample, error) {
	var conditions []string
	var args []interface{}

	if p.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, p.DeviceID)
		if p.TunerIndex >= 0 {
			conditions = append(conditions, "tuner_index = ?")
			args = append(args, uint8(p.TunerIndex))
		}
	}
	if p.RFChannel != 0 {
		conditions = append(conditions, "rf_channel = ?")
		args = append(args, p.RFChannel)
	}
	if !p.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, p.Since)
	}
	if !p.Until.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, p.Until)
	}

	query := `SELECT timestamp, device_id, tuner_index, rf_channel, lock_type, bsid,
		signal_strength, signal_dbm, signal_quality, snr_db, symbol_quality, bits_per_sec, packets_per_sec
		FROM signal_history`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []SignalSample
	for rows.Next() {
		var s SignalSample
		err := rows.Scan(&s.Timestamp, &s.DeviceID, &s.TunerIndex, &s.RFChannel, &s.LockType, &s.BSID,
			&s.SignalStrength, &s.SignalDBm, &s.SignalQuality, &s.SNRdB, &s.SymbolQuality,
			&s.BitsPerSec, &s.PacketsPerSec)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return samples, nil
}

// SignalSummary aggregates signal quality for one tuner over a window.
type SignalSummary struct {
	DeviceID   string
	TunerIndex uint8
	Samples    uint64
	AvgSNRdB   float64
	MinSNRdB   int16
	MaxSNRdB   int16
	AvgDBm     float64
}

// SummarizeSignal aggregates signal history per tuner since the given time.
func (d *ClickHouseDB) SummarizeSignal(ctx context.Context, since time.Time) ([]SignalSummary, error) {
	rows, err := d.conn.Query(ctx, `
		SELECT device_id, tuner_index, count(), avg(snr_db), min(snr_db), max(snr_db), avg(signal_dbm)
		FROM signal_history
		WHERE timestamp >= ? AND snr_db != -999
		GROUP BY device_id, tuner_index
		ORDER BY device_id, tuner_index
	`, since)
	if err != nil {
		return nil, fmt.Errorf("summarize signal: %w", err)
	}
	defer rows.Close()

	var summaries []SignalSummary
	for rows.Next() {
		var s SignalSummary
		if err := rows.Scan(&s.DeviceID, &s.TunerIndex, &s.Samples, &s.AvgSNRdB, &s.MinSNRdB, &s.MaxSNRdB, &s.AvgDBm); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}

	return summaries, nil
}

// Count returns the total number of signal history rows.
func (d *ClickHouseDB) Count(ctx context.Context) (uint64, error) {
	var count uint64
	row := d.conn.QueryRow(ctx, "SELECT count() FROM signal_history")
	err := row.Scan(&count)
	return count, err
}
