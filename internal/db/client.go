// Package db stores user settings, modes and last-seen markers in SurrealDB.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/raphaelgruber/recap/internal/store"
)

const (
	dialTimeout  = 5 * time.Second
	closeTimeout = 5 * time.Second

	// defaultReconnects bounds reconnect attempts. A CLI run is short, so a
	// dead server should fail the command quickly.
	defaultReconnects = 3
)

func init() {
	// WebSocket upgrades fail when ALPN negotiates HTTP/2 on wss:// URLs.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" (default) or "database"

	// Reconnects is the number of reconnect attempts after the socket
	// drops; zero means defaultReconnects.
	Reconnects int
}

// endpoint is the base URL without the /rpc suffix that gorillaws appends.
func (c Config) endpoint() string {
	return strings.TrimSuffix(c.URL, "/rpc")
}

func (c Config) credentials() surrealdb.Auth {
	if c.AuthLevel == "database" {
		return surrealdb.Auth{
			Namespace: c.Namespace,
			Database:  c.Database,
			Username:  c.Username,
			Password:  c.Password,
		}
	}
	return surrealdb.Auth{Username: c.Username, Password: c.Password}
}

func (c Config) retryer() *rews.ExponentialBackoffRetryer {
	r := rews.NewExponentialBackoffRetryer()
	r.InitialDelay = 250 * time.Millisecond
	r.MaxDelay = 2 * time.Second
	r.MaxRetries = c.Reconnects
	if r.MaxRetries <= 0 {
		r.MaxRetries = defaultReconnects
	}
	return r
}

// Client is a store.Store backed by one reconnecting SurrealDB socket.
type Client struct {
	conn *rews.Connection[*gorillaws.Connection]
	db   *surrealdb.DB
	log  *slog.Logger
}

// Compile-time check that Client implements store.Store.
var _ store.Store = (*Client)(nil)

// NewClient connects, signs in, selects the namespace and database and
// applies SchemaSQL. The schema statements are idempotent.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("store", "surrealdb", "url", cfg.URL)
	sdkLog := logger.New(log.Handler())
	codec := surrealcbor.New()

	conn := rews.New(
		func(context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     cfg.endpoint(),
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLog,
			}), nil
		},
		dialTimeout,
		codec,
		sdkLog,
	)
	conn.Retryer = cfg.retryer()

	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	c := &Client{conn: conn, log: log}
	if err := c.open(ctx, cfg); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	log.Debug("surrealdb ready", "namespace", cfg.Namespace, "database", cfg.Database)
	return c, nil
}

func (c *Client) open(ctx context.Context, cfg Config) error {
	db, err := surrealdb.FromConnection(ctx, c.conn)
	if err != nil {
		return fmt.Errorf("from connection: %w", err)
	}
	if _, err := db.SignIn(ctx, cfg.credentials()); err != nil {
		return fmt.Errorf("signin as %s (%s): %w", cfg.Username, orRoot(cfg.AuthLevel), err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	if _, err := surrealdb.Query[any](ctx, db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	c.db = db
	return nil
}

func orRoot(level string) string {
	if level == "" {
		return "root"
	}
	return level
}

// Close closes the connection.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.conn.Close(ctx)
}
