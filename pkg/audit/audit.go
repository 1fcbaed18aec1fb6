package audit

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Config struct {
	DSN     string        `envconfig:"DSN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
}

// Entry is one dispatch outcome.
type Entry struct {
	bun.BaseModel `bun:"table:dispatch_audit,alias:da"`

	ID        int64     `bun:"id,pk,autoincrement"`
	RequestID string    `bun:"request_id,notnull"`
	Intent    string    `bun:"intent"`
	Source    string    `bun:"source"`
	Status    string    `bun:"status,notnull"`
	LatencyMS int64     `bun:"latency_ms"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Logger writes one row per dispatched request. A nil Logger is a valid
// no-op, so wiring stays unconditional even when auditing is disabled.
type Logger struct {
	db      *bun.DB
	timeout time.Duration
}

// NewLogger connects to Postgres when a DSN is configured and returns nil
// (auditing off) otherwise.
func NewLogger(cfg Config) (*Logger, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, nil
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	l := &Logger{db: db, timeout: timeout}
	if err := l.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	_, err := l.db.NewCreateTable().Model((*Entry)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Record persists one entry. Audit failures are logged and swallowed; they
// must never fail the request they describe.
func (l *Logger) Record(ctx context.Context, e *Entry) {
	if l == nil || l.db == nil || e == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if _, err := l.db.NewInsert().Model(e).Exec(ctx); err != nil {
		log.Warn().Err(err).Str("request_id", e.RequestID).Msg("audit insert failed")
	}
}

// Close releases the underlying pool.
func (l *Logger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
