// Command recount rebuilds emotion.emotion_summaries and the per-session
// total_detections counter from the raw emotion.emotions rows. The aggregator
// keeps these consistent in normal operation; this tool recovers from drift
// after a crash mid-migration or after a client-supplied total override.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

var (
	dsn         = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	sessionID   = flag.String("session", "", "Limit the rebuild to one session ID (default: all sessions)")
	dryRun      = flag.Bool("dry-run", false, "Report drift only; no DB writes")
	confirm     = flag.Bool("confirm", false, "Required to perform the rebuild")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key (e.g., 424242). 0 = disabled")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer conn.Close()

	if *advisoryKey != 0 {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
		defer conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, *advisoryKey)
	}

	drifted, err := reportDrift(ctx, conn, *sessionID)
	if err != nil {
		fatalf("drift report: %v", err)
	}
	if drifted == 0 {
		fmt.Println("No counter drift detected")
		if *sessionID == "" && !*confirm {
			return
		}
	}

	if *dryRun {
		fmt.Println("Dry run; no changes written")
		return
	}
	if !*confirm {
		fatalf("refusing to rebuild without --confirm (use --dry-run to inspect)")
	}

	if err := rebuild(ctx, conn, *sessionID); err != nil {
		fatalf("rebuild failed: %v", err)
	}
	fmt.Println("Rebuild complete")
}

// reportDrift lists sessions whose stored total_detections disagrees with the
// actual observation count, and returns how many it found.
func reportDrift(ctx context.Context, conn *sql.DB, session string) (int, error) {
	query := `
		SELECT s.id, s.total_detections, COUNT(e.id)
		FROM emotion.sessions s
		LEFT JOIN emotion.emotions e ON e.session_id = s.id
		WHERE ($1 = '' OR s.id = $1)
		GROUP BY s.id, s.total_detections
		HAVING s.total_detections <> COUNT(e.id)
		ORDER BY s.id
	`
	rows, err := conn.QueryContext(ctx, query, session)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	drifted := 0
	for rows.Next() {
		var id string
		var stored, actual int
		if err := rows.Scan(&id, &stored, &actual); err != nil {
			return drifted, err
		}
		fmt.Printf("session %s: total_detections=%d, actual observations=%d\n", id, stored, actual)
		drifted++
	}
	return drifted, rows.Err()
}

// rebuild replaces the summary rows and total counters with values
// re-aggregated from emotion.emotions, all in one transaction.
func rebuild(ctx context.Context, conn *sql.DB, session string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM emotion.emotion_summaries
		WHERE ($1 = '' OR session_id = $1)
	`, session); err != nil {
		return fmt.Errorf("clear summaries: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO emotion.emotion_summaries
			(id, session_id, emotion_type, count, avg_confidence, first_detected, last_detected)
		SELECT gen_random_uuid(), session_id, emotion_type,
			COUNT(*), AVG(confidence), MIN(detected_at), MAX(detected_at)
		FROM emotion.emotions
		WHERE ($1 = '' OR session_id = $1)
		GROUP BY session_id, emotion_type
	`, session)
	if err != nil {
		return fmt.Errorf("rebuild summaries: %w", err)
	}
	inserted, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `
		UPDATE emotion.sessions s
		SET total_detections = (
			SELECT COUNT(*) FROM emotion.emotions e WHERE e.session_id = s.id
		)
		WHERE ($1 = '' OR s.id = $1)
	`, session)
	if err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	updated, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return err
	}
	fmt.Printf("Rebuilt %d summary rows, reset %d session counters\n", inserted, updated)
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
