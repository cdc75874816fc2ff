package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/vncsmyrnk/votecast/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/votecast/internal/config"
	"github.com/vncsmyrnk/votecast/internal/core/integrity"
	"github.com/vncsmyrnk/votecast/internal/core/services"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Println(err)
	}

	cfg, err := config.LoadIntegrity()
	if err != nil {
		log.Fatalf("CRITICAL: invalid configuration: %v", err)
	}

	var sessionID string
	var concurrency int
	var timeout time.Duration
	flag.StringVar(&sessionID, "session", os.Getenv("AUDIT_SESSION_ID"), "Verify a single voting session")
	flag.IntVar(&concurrency, "concurrency", 4, "Sessions verified in parallel")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Job timeout")
	flag.Parse()

	keys, err := integrity.NewKeyDeriver([]byte(cfg.VotingSecret))
	if err != nil {
		log.Fatalf("CRITICAL: voting integrity is not configured: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	sessionRepo := postgres.NewSessionRepository(db)
	voteRepo := postgres.NewVoteRepository(db)
	auditService := services.NewAuditService(sessionRepo, voteRepo, voteRepo, keys, concurrency)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Println("Starting audit chain verification...")

	var ids []string
	if sessionID != "" {
		ids = []string{sessionID}
	}
	reports, err := auditService.VerifyAll(ctx, ids...)
	if err != nil {
		log.Fatalf("Error verifying sessions: %v", err)
	}

	broken := 0
	for _, report := range reports {
		if report.Valid {
			log.Printf("session=%s ok entries=%d votes=%d", report.SessionID, report.EntriesChecked, report.VotesChecked)
			continue
		}
		broken++
		log.Printf("CRITICAL: session=%s integrity broken at seq=%d: %s", report.SessionID, report.BrokenAtSeq, report.Problem)
	}

	if broken > 0 {
		log.Printf("Audit verification found %d broken session(s).", broken)
		os.Exit(1)
	}
	log.Println("Audit verification completed successfully.")
}
