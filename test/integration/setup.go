package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	handler "github.com/vncsmyrnk/votecast/internal/adapters/handler/http"
	repo "github.com/vncsmyrnk/votecast/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/votecast/internal/core/integrity"
	"github.com/vncsmyrnk/votecast/internal/core/ports"
	"github.com/vncsmyrnk/votecast/internal/core/services"
)

const (
	testJWTSecret    = "test-secret"
	testVotingSecret = "integration-suite-voting-master-secret"
)

type TestApp struct {
	DB          *sql.DB
	Server      *httptest.Server
	Client      *http.Client
	Sessions    *repo.SessionRepository
	AuditSvc    ports.AuditService
	DBContainer testcontainers.Container
}

func setupPostgresContainer(ctx context.Context) (testcontainers.Container, string, error) {
	dbName := "testdb"
	user := "user"
	password := "password"

	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

func applyMigrations(db *sql.DB) error {
	dirPath := "../../internal/adapters/repository/postgres/migrations"

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()

	ctx := context.Background()
	dbContainer, dbURL, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	require.NoError(t, applyMigrations(db))

	keys, err := integrity.NewKeyDeriver([]byte(testVotingSecret))
	require.NoError(t, err)

	sessionRepo := repo.NewSessionRepository(db)
	voteRepo := repo.NewVoteRepository(db)

	voteSvc := services.NewVoteService(sessionRepo, voteRepo, keys, integrity.NewReceiptGenerator(bcrypt.MinCost))
	auditSvc := services.NewAuditService(sessionRepo, voteRepo, voteRepo, keys, 2)

	router := handler.NewHandler(handler.Handlers{
		Sessions: handler.NewSessionHandler(services.NewSessionService(sessionRepo)),
		Votes:    handler.NewVoteHandler(voteSvc),
		Audit:    handler.NewAuditHandler(auditSvc),
		Auth:     handler.NewAuthenticator(testJWTSecret),
	})

	server := httptest.NewServer(router)

	return &TestApp{
		DB:          db,
		Server:      server,
		Client:      server.Client(),
		Sessions:    sessionRepo,
		AuditSvc:    auditSvc,
		DBContainer: dbContainer,
	}
}

func (app *TestApp) Teardown(t *testing.T) {
	app.Server.Close()
	app.DB.Close()
	if err := app.DBContainer.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

func createToken(t *testing.T, memberID, role string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  memberID,
		"role": role,
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signedToken
}
