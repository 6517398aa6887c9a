package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the connection settings for the grading archive
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
}

// NewDatabaseConfiguration reads the database configuration from GRADER_DB_* environment variables.
// A .env file in the working directory is loaded first if present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	err := LoadEnvFile()
	if err != nil {
		return nil, err
	}

	config := &DatabaseConfiguration{
		Host:     EnvString("GRADER_DB_HOST", "localhost"),
		Port:     EnvString("GRADER_DB_PORT", "5432"),
		Database: os.Getenv("GRADER_DB_DATABASE"),
		Username: os.Getenv("GRADER_DB_USERNAME"),
		Password: os.Getenv("GRADER_DB_PASSWORD"),
		Schema:   EnvString("GRADER_DB_SCHEMA", "public"),
		SSLMode:  EnvString("GRADER_DB_SSLMODE", "disable"),
	}
	if config.Database == "" || config.Username == "" {
		return nil, NewError("database configuration", fmt.Errorf("GRADER_DB_DATABASE and GRADER_DB_USERNAME must be set"))
	}

	return config, nil
}

// DSN returns the lib/pq connection string
func (c *DatabaseConfiguration) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	if c.Schema != "" {
		q.Set("search_path", c.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Database bundles a connection pool with the logger of its owner
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens and pings a connection to the configured database.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, NewError("database configuration", fmt.Errorf("configuration is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	instance, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, NewError("open database", err)
	}
	instance.SetMaxOpenConns(10)
	instance.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = instance.PingContext(ctx)
	if err != nil {
		instance.Close()
		return nil, NewError("ping database", err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host), slog.String("database", config.Database))

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
	}, nil
}

// Close closes the underlying connection pool
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}

// NewTestDatabase connects with a discarding logger and fails hard on error
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	db, err := NewDatabase("test", config, logger)
	if err != nil {
		log.Fatalf("error connecting to test database: %v", err)
	}
	return db
}

// SetTestDatabaseConfigEnvs points the GRADER_DB_* variables at the test container
func SetTestDatabaseConfigEnvs(t *testing.T, dbPort string) {
	t.Setenv("GRADER_DB_HOST", "localhost")
	t.Setenv("GRADER_DB_PORT", dbPort)
	t.Setenv("GRADER_DB_DATABASE", testDatabaseName)
	t.Setenv("GRADER_DB_USERNAME", testDatabaseUser)
	t.Setenv("GRADER_DB_PASSWORD", testDatabasePassword)
	t.Setenv("GRADER_DB_SCHEMA", "public")
	t.Setenv("GRADER_DB_SSLMODE", "disable")
}
