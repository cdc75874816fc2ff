package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/vncsmyrnk/votecast/internal/adapters/handler/http"
	"github.com/vncsmyrnk/votecast/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/votecast/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/votecast/internal/config"
	"github.com/vncsmyrnk/votecast/internal/core/integrity"
	"github.com/vncsmyrnk/votecast/internal/core/ports"
	"github.com/vncsmyrnk/votecast/internal/core/services"
)

type repositories struct {
	sessions ports.SessionRepository
	votes    ports.VoteRepository
	audit    ports.AuditLogRepository
	close    func() error
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Println(err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("CRITICAL: invalid configuration: %v", err)
	}

	keys, err := integrity.NewKeyDeriver([]byte(cfg.VotingSecret))
	if err != nil {
		log.Fatalf("CRITICAL: voting integrity is not configured: %v", err)
	}

	repos, err := openRepositories(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer repos.close()

	voteService := services.NewVoteService(repos.sessions, repos.votes, keys,
		integrity.NewReceiptGenerator(cfg.VerificationCodeCost),
		services.WithCastTimeout(cfg.CastTimeout))

	handler := http.NewHandler(http.Handlers{
		Sessions: http.NewSessionHandler(services.NewSessionService(repos.sessions)),
		Votes:    http.NewVoteHandler(voteService),
		Audit:    http.NewAuditHandler(services.NewAuditService(repos.sessions, repos.votes, repos.audit, keys, 0)),
		Auth:     http.NewAuthenticator(cfg.JWTSecret),

		VerifyConcurrency: cfg.VerifyConcurrency,
	})
	server := &stdhttp.Server{Addr: cfg.HTTPAddr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Listening with %s", cfg)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	fmt.Println("Gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
}

func openRepositories(cfg config.Config) (*repositories, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		store := memory.NewStore()
		if cfg.MemorySeedFile != "" {
			if err := store.LoadSeedFile(cfg.MemorySeedFile); err != nil {
				return nil, err
			}
		}
		log.Println("Using in-memory storage; votes are lost on restart")
		return &repositories{sessions: store, votes: store, audit: store, close: func() error { return nil }}, nil
	default:
		db, err := sql.Open("postgres", cfg.DSN())
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to reach database: %w", err)
		}
		votes := postgres.NewVoteRepository(db)
		return &repositories{
			sessions: postgres.NewSessionRepository(db),
			votes:    votes,
			audit:    votes,
			close:    db.Close,
		}, nil
	}
}
