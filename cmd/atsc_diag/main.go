// Command-line entry point for the ATSC 3.0 tuner diagnostics tool.
//
// Note about input formats
// ------------------------
// The decoder works on tuner status snapshots: the raw diagnostic blobs an
// HDHomeRun-class device returns (status, plpinfo, streaminfo, and the
// Base64-coded L1 Detail capture). Snapshots arrive as:
//  1. JSON files / JSONL streams handed to `decode`
//  2. A NATS feed consumed by `monitor`
//
// The L1 Detail blob is decoded bit-by-bit into a field-per-line report; the
// PLP summary is annotated with the SNR each modulation/code-rate pair needs.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"atsc_diag/internal/b64"
	"atsc_diag/internal/ingest"
	"atsc_diag/internal/report"
	"atsc_diag/internal/status"
	"atsc_diag/internal/storage"
	"atsc_diag/internal/tuner"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "atsc_diag - ATSC 3.0 tuner diagnostics:")
	fmt.Fprintln(w, "  decode   - decode snapshot JSON into a diagnostic report")
	fmt.Fprintln(w, "  monitor  - consume snapshots from NATS and store diagnostics")
	fmt.Fprintln(w, "  init-db  - create ClickHouse and PostgreSQL schemas")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  atsc_diag decode [-input snapshots.jsonl] [-save] [-archive reports.db]")
	fmt.Fprintln(w, "  atsc_diag monitor [-nats-url URL] [-subject SUBJ] [-archive reports.db] [-db]")
	fmt.Fprintln(w, "  atsc_diag init-db")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Input must be a JSON snapshot per line (or a single JSON object).")
	fmt.Fprintln(w, "  - -save writes each report to rfN-bsidN-details-YYYYMMDD-HHMMSS.txt.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "decode":
		runDecode(os.Args[2:])
	case "monitor":
		runMonitor(os.Args[2:])
	case "init-db":
		runInitDB(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

type decodeStats struct {
	Lines   int
	Decoded int
	Skipped int
	Saved   int
}

func runDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	inPath := fs.String("input", "", "Input snapshot JSON/JSONL file (default: stdin)")
	outPath := fs.String("output", "", "Output file (default: stdout)")
	save := fs.Bool("save", false, "Also save each report to rfN-bsidN-details-<timestamp>.txt")
	archivePath := fs.String("archive", "", "SQLite archive to store reports in (optional)")
	showStats := fs.Bool("stats", false, "Print basic counters to stderr")
	_ = fs.Parse(args)

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		wout = f
	}

	var archive *storage.SQLiteDB
	if *archivePath != "" {
		var err error
		archive, err = storage.OpenSQLite(*archivePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open archive: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = archive.Close() }()
	}

	scanner := bufio.NewScanner(r)
	// L1 captures can make snapshot lines long; bump buffer (1MB).
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	st := &decodeStats{}

	for scanner.Scan() {
		st.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var snap tuner.Snapshot
		if err := json.Unmarshal([]byte(line), &snap); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping malformed snapshot on line %d: %v\n", st.Lines, err)
			st.Skipped++
			continue
		}

		lines, truncated := decodeSnapshot(&snap)
		st.Decoded++

		for _, l := range lines {
			fmt.Fprintln(wout, l)
		}

		if *save {
			name, err := saveReport(&snap, lines)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: Could not save report: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "Saved details to %s\n", name)
				st.Saved++
			}
		}

		if archive != nil {
			if err := archiveReport(archive, &snap, lines, truncated); err != nil {
				fmt.Fprintf(os.Stderr, "Error: Could not archive report: %v\n", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
		os.Exit(1)
	}

	if *showStats {
		fmt.Fprintf(os.Stderr, "stats: lines=%d decoded=%d skipped=%d saved=%d\n",
			st.Lines, st.Decoded, st.Skipped, st.Saved)
	}
}

// decodeSnapshot assembles the full report for one snapshot and reports
// whether the L1 capture was truncated.
func decodeSnapshot(snap *tuner.Snapshot) ([]string, bool) {
	var l1Data []byte
	if snap.L1Detail != "" {
		data, err := b64.Decode(snap.L1Detail)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping undecodable L1 capture for %s/%d: %v\n",
				snap.DeviceID, snap.Tuner, err)
		} else {
			l1Data = data
		}
	}

	lines := report.Assemble(snap.PLPInfo, snap.StreamInfo, l1Data)

	truncated := false
	for _, l := range lines {
		if strings.Contains(l, "Truncated") {
			truncated = true
			break
		}
	}
	return lines, truncated
}

// saveReport writes the report to rfN-bsidN-details-<timestamp>.txt in the
// current directory. The id in the filename prefers bsid, then tsid, then 0.
func saveReport(snap *tuner.Snapshot, lines []string) (string, error) {
	id := snap.TSID()
	if bsid := snap.BSID(); bsid != status.NotFound {
		id = bsid
	}
	if id == status.NotFound {
		id = 0
	}

	name := fmt.Sprintf("rf%d-bsid%d-details-%s.txt",
		snap.RFChannel(), id, time.Now().Format("20060102-150405"))

	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return name, nil
}

func archiveReport(archive *storage.SQLiteDB, snap *tuner.Snapshot, lines []string, truncated bool) error {
	_, err := archive.Insert(storage.ReportInsertParams{
		Timestamp:   snap.Time().Format(time.RFC3339),
		DeviceID:    snap.DeviceID,
		TunerIndex:  int(snap.Tuner),
		RFChannel:   snap.RFChannel(),
		BSID:        snap.BSID(),
		TSID:        snap.TSID(),
		Lock:        snap.Lock,
		ReportText:  strings.Join(lines, "\n") + "\n",
		L1DetailB64: snap.L1Detail,
		Truncated:   truncated,
	})
	return err
}

func runMonitor(args []string) {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	natsURL := fs.String("nats-url", envOrDefault("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	subject := fs.String("subject", envOrDefault("NATS_SUBJECT", "tuner.snapshots.>"), "NATS subject to consume")
	queue := fs.String("queue", "atsc-diag", "NATS queue group (empty for plain subscription)")
	archivePath := fs.String("archive", "reports.db", "SQLite archive for decoded reports")
	useDB := fs.Bool("db", false, "Also store tuner state in PostgreSQL and signal history in ClickHouse")
	dbFlags := registerDBFlags(fs)
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive, err := storage.OpenSQLite(*archivePath)
	if err != nil {
		log.Fatalf("open archive: %v", err)
	}
	defer func() { _ = archive.Close() }()

	var db *storage.DB
	if *useDB {
		db, err = storage.Open(ctx, dbFlags.config())
		if err != nil {
			log.Fatalf("open databases: %v", err)
		}
		defer func() { _ = db.Close() }()
	}

	handler := func(ctx context.Context, snap *tuner.Snapshot) error {
		lines, truncated := decodeSnapshot(snap)

		if err := archiveReport(archive, snap, lines, truncated); err != nil {
			return fmt.Errorf("archive: %w", err)
		}

		if db == nil {
			return nil
		}

		now := snap.Time()
		if err := db.PG.UpsertTunerState(ctx, storage.TunerState{
			DeviceID:       snap.DeviceID,
			TunerIndex:     int(snap.Tuner),
			Channel:        snap.Channel,
			LockType:       snap.Lock,
			RFChannel:      snap.RFChannel(),
			BSID:           snap.BSID(),
			TSID:           snap.TSID(),
			SignalStrength: snap.SignalStrengthPct(),
			SignalDBm:      snap.SignalStrengthDBm(),
			SignalQuality:  snap.SignalQualityPct(),
			SNRdB:          snap.SignalQualityDB(),
			SymbolQuality:  snap.SymbolQualityPct(),
			BitsPerSec:     snap.BitsPerSecond(),
			PacketsPerSec:  snap.PacketsPerSecond(),
			FirstSeen:      now,
			LastSeen:       now,
		}); err != nil {
			return fmt.Errorf("tuner state: %w", err)
		}

		if bsid := snap.BSID(); bsid != status.NotFound && snap.RFChannel() != 0 {
			if err := db.PG.UpsertBroadcastStream(ctx, storage.BroadcastStream{
				BSID:      bsid,
				RFChannel: snap.RFChannel(),
				TSID:      snap.TSID(),
				FirstSeen: now,
				LastSeen:  now,
			}); err != nil {
				return fmt.Errorf("broadcast stream: %w", err)
			}
		}

		if err := db.CH.InsertSample(ctx, storage.SignalSample{
			Timestamp:      now,
			DeviceID:       snap.DeviceID,
			TunerIndex:     uint8(snap.Tuner),
			RFChannel:      uint16(snap.RFChannel()),
			LockType:       snap.Lock,
			BSID:           snap.BSID(),
			SignalStrength: int16(snap.SignalStrengthPct()),
			SignalDBm:      int16(snap.SignalStrengthDBm()),
			SignalQuality:  int16(snap.SignalQualityPct()),
			SNRdB:          int16(snap.SignalQualityDB()),
			SymbolQuality:  int16(snap.SymbolQualityPct()),
			BitsPerSec:     snap.BitsPerSecond(),
			PacketsPerSec:  snap.PacketsPerSecond(),
		}); err != nil {
			return fmt.Errorf("signal sample: %w", err)
		}

		return nil
	}

	sub, err := ingest.Subscribe(ctx, ingest.Config{
		URL:     *natsURL,
		Subject: *subject,
		Queue:   *queue,
	}, handler)
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	log.Printf("Monitoring %s on %s", *subject, *natsURL)
	<-ctx.Done()

	log.Printf("Shutting down")
	if err := sub.Close(); err != nil {
		log.Printf("close subscriber: %v", err)
	}
}

func runInitDB(args []string) {
	fs := flag.NewFlagSet("init-db", flag.ExitOnError)
	dbFlags := registerDBFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()

	db, err := storage.Open(ctx, dbFlags.config())
	if err != nil {
		log.Fatalf("open databases: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.CreateSchemas(ctx); err != nil {
		log.Fatalf("create schemas: %v", err)
	}

	log.Printf("Schemas created")
}

// dbFlagSet collects the shared database connection flags.
type dbFlagSet struct {
	chHost     *string
	chPort     *int
	chDB       *string
	chUser     *string
	chPassword *string
	pgHost     *string
	pgPort     *int
	pgDB       *string
	pgUser     *string
	pgPassword *string
}

func registerDBFlags(fs *flag.FlagSet) *dbFlagSet {
	return &dbFlagSet{
		chHost:     fs.String("ch-host", envOrDefault("CLICKHOUSE_HOST", "localhost"), "ClickHouse host"),
		chPort:     fs.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", 9000), "ClickHouse port"),
		chDB:       fs.String("ch-database", envOrDefault("CLICKHOUSE_DATABASE", "atsc"), "ClickHouse database"),
		chUser:     fs.String("ch-user", envOrDefault("CLICKHOUSE_USER", "default"), "ClickHouse user"),
		chPassword: fs.String("ch-password", envOrDefault("CLICKHOUSE_PASSWORD", ""), "ClickHouse password"),
		pgHost:     fs.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host"),
		pgPort:     fs.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port"),
		pgDB:       fs.String("pg-database", envOrDefault("POSTGRES_DATABASE", "atsc_state"), "PostgreSQL database"),
		pgUser:     fs.String("pg-user", envOrDefault("POSTGRES_USER", "atsc"), "PostgreSQL user"),
		pgPassword: fs.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "atsc"), "PostgreSQL password"),
	}
}

func (f *dbFlagSet) config() storage.Config {
	return storage.Config{
		ClickHouse: storage.ClickHouseConfig{
			Host:     *f.chHost,
			Port:     *f.chPort,
			Database: *f.chDB,
			User:     *f.chUser,
			Password: *f.chPassword,
		},
		Postgres: storage.PostgresConfig{
			Host:     *f.pgHost,
			Port:     *f.pgPort,
			Database: *f.pgDB,
			User:     *f.pgUser,
			Password: *f.pgPassword,
		},
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
