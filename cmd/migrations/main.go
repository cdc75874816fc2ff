package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"

	_ "github.com/lib/pq"

	"github.com/vncsmyrnk/votecast/internal/config"
)

// Usage: migrations <name>, e.g. "0001_voting.up" or "voting.down".
func main() {
	if len(os.Args) < 2 {
		log.Fatal("a migration name is required.")
	}
	migrationName := os.Args[1]

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	basePath := filepath.Join(".", "internal", "adapters", "repository", "postgres", "migrations")
	fileContent, err := migrationFileContent(basePath, migrationName)
	if err != nil {
		log.Fatal(err)
	}

	_, err = db.Exec(string(fileContent))
	if err != nil {
		log.Fatalf("Failed to execute SQL file: %v", err)
	}

	fmt.Println("Migration file executed successfully.")
}

func migrationFileContent(basePath string, migrationName string) ([]byte, error) {
	filePath, err := migrationFilePath(basePath, migrationName)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(filepath.Join(basePath, filePath))
}

func migrationFilePath(basePath string, migrationName string) (string, error) {
	regex, err := regexp.Compile(fmt.Sprintf(`^.*%s\.sql$`, regexp.QuoteMeta(migrationName)))
	if err != nil {
		return "", fmt.Errorf("invalid migration name: %w", err)
	}

	files, err := os.ReadDir(basePath)
	if err != nil {
		return "", fmt.Errorf("failed to read migrations directory: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if regex.MatchString(f.Name()) {
			return f.Name(), nil
		}
	}

	return "", fmt.Errorf("migration file %q not found", migrationName)
}
