package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for tuner state storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Ephemeral: current state of each tuner
	CREATE TABLE IF NOT EXISTS tuner_state (
		device_id       TEXT NOT NULL,
		tuner_index     INTEGER NOT NULL,
		channel         TEXT,
		lock_type       TEXT,
		rf_channel      INTEGER,
		bsid            INTEGER,
		tsid            INTEGER,
		signal_strength INTEGER,
		signal_dbm      INTEGER,
		signal_quality  INTEGER,
		snr_db          INTEGER,
		symbol_quality  INTEGER,
		bits_per_sec    BIGINT,
		packets_per_sec BIGINT,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		snapshot_count  INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (device_id, tuner_index)
	);

	CREATE INDEX IF NOT EXISTS idx_tuner_state_rf ON tuner_state(rf_channel);
	CREATE INDEX IF NOT EXISTS idx_tuner_state_last_seen ON tuner_state(last_seen);

	-- Reference data: broadcast streams observed on air
	CREATE TABLE IF NOT EXISTS broadcast_streams (
		bsid            INTEGER PRIMARY KEY,
		rf_channel      INTEGER NOT NULL,
		tsid            INTEGER,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		observation_count INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_broadcast_streams_rf ON broadcast_streams(rf_channel);
	`

	_, err := d.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// TunerState represents the current state of one tuner.
type TunerState struct {
	DeviceID       string
	TunerIndex     int
	Channel        string
	LockType       string
	RFChannel      uint
	BSID           int64
	TSID           int64
	SignalStrength int64 // percentage
	SignalDBm      int64
	SignalQuality  int64 // percentage
	SNRdB          int64
	SymbolQuality  int64 // percentage
	BitsPerSec     int64
	PacketsPerSec  int64
	FirstSeen      time.Time
	LastSeen       time.Time
	SnapshotCount  int
}

// UpsertTunerState inserts or updates the state row for a tuner.
func (d *PostgresDB) UpsertTunerState(ctx context.Context, s TunerState) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO tuner_state (device_id, tuner_index, channel, lock_type, rf_channel, bsid, tsid,
			signal_strength, signal_dbm, signal_quality, snr_db, symbol_quality, bits_per_sec, packets_per_sec,
			first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (device_id, tuner_index) DO UPDATE SET
			channel = EXCLUDED.channel,
			lock_type = EXCLUDED.lock_type,
			rf_channel = EXCLUDED.rf_channel,
			bsid = EXCLUDED.bsid,
			tsid = EXCLUDED.tsid,
			signal_strength = EXCLUDED.signal_strength,
			signal_dbm = EXCLUDED.signal_dbm,
			signal_quality = EXCLUDED.signal_quality,
			snr_db = EXCLUDED.snr_db,
			symbol_quality = EXCLUDED.symbol_quality,
			bits_per_sec = EXCLUDED.bits_per_sec,
			packets_per_sec = EXCLUDED.packets_per_sec,
			last_seen = EXCLUDED.last_seen,
			snapshot_count = tuner_state.snapshot_count + 1
	`, s.DeviceID, s.TunerIndex, s.Channel, s.LockType, s.RFChannel, s.BSID, s.TSID,
		s.SignalStrength, s.SignalDBm, s.SignalQuality, s.SNRdB, s.SymbolQuality,
		s.BitsPerSec, s.PacketsPerSec, s.FirstSeen, s.LastSeen)
	return err
}

// GetTunerState retrieves the state row for a tuner.
func (d *PostgresDB) GetTunerState(ctx context.Context, deviceID string, tunerIndex int) (*TunerState, error) {
	var s TunerState
	err := d.pool.QueryRow(ctx, `
		SELECT device_id, tuner_index, channel, lock_type, rf_channel, bsid, tsid,
			signal_strength, signal_dbm, signal_quality, snr_db, symbol_quality, bits_per_sec, packets_per_sec,
			first_seen, last_seen, snapshot_count
		FROM tuner_state WHERE device_id = $1 AND tuner_index = $2
	`, deviceID, tunerIndex).Scan(&s.DeviceID, &s.TunerIndex, &s.Channel, &s.LockType, &s.RFChannel,
		&s.BSID, &s.TSID, &s.SignalStrength, &s.SignalDBm, &s.SignalQuality, &s.SNRdB, &s.SymbolQuality,
		&s.BitsPerSec, &s.PacketsPerSec, &s.FirstSeen, &s.LastSeen, &s.SnapshotCount)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListTunerStates retrieves the state of every known tuner, most recent first.
func (d *PostgresDB) ListTunerStates(ctx context.Context) ([]TunerState, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT device_id, tuner_index, channel, lock_type, rf_channel, bsid, tsid,
			signal_strength, signal_dbm, signal_quality, snr_db, symbol_quality, bits_per_sec, packets_per_sec,
			first_seen, last_seen, snapshot_count
		FROM tuner_state
		ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []TunerState
	for rows.Next() {
		var s TunerState
		if err := rows.Scan(&s.DeviceID, &s.TunerIndex, &s.Channel, &s.LockType, &s.RFChannel,
			&s.BSID, &s.TSID, &s.SignalStrength, &s.SignalDBm, &s.SignalQuality, &s.SNRdB, &s.SymbolQuality,
			&s.BitsPerSec, &s.PacketsPerSec, &s.FirstSeen, &s.LastSeen, &s.SnapshotCount); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// BroadcastStream represents a broadcast stream observed on air.
type BroadcastStream struct {
	BSID             int64
	RFChannel        uint
	TSID             int64
	FirstSeen        time.Time
	LastSeen         time.Time
	ObservationCount int
}

// UpsertBroadcastStream inserts or updates a broadcast stream record.
func (d *PostgresDB) UpsertBroadcastStream(ctx context.Context, b BroadcastStream) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO broadcast_streams (bsid, rf_channel, tsid, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bsid) DO UPDATE SET
			rf_channel = EXCLUDED.rf_channel,
			tsid = EXCLUDED.tsid,
			last_seen = EXCLUDED.last_seen,
			observation_count = broadcast_streams.observation_count + 1
	`, b.BSID, b.RFChannel, b.TSID, b.FirstSeen, b.LastSeen)
	return err
}

// ListBroadcastStreams retrieves all known broadcast streams ordered by RF channel.
func (d *PostgresDB) ListBroadcastStreams(ctx context.Context) ([]BroadcastStream, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT bsid, rf_channel, tsid, first_seen, last_seen, observation_count
		FROM broadcast_streams
		ORDER BY rf_channel, bsid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var streams []BroadcastStream
	for rows.Next() {
		var b BroadcastStream
		if err := rows.Scan(&b.BSID, &b.RFChannel, &b.TSID, &b.FirstSeen, &b.LastSeen, &b.ObservationCount); err != nil {
			return nil, err
		}
		streams = append(streams, b)
	}
	return streams, rows.Err()
}

// Pool returns the underlying connection pool for advanced operations.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}
