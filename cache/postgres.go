package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/raushankrgupta/fitchy/models"
)

const createTable = `
create table if not exists shopping_cache (
	key        text primary key,
	payload    jsonb not null,
	created_at timestamptz not null default now()
)`

// Postgres is the shared second cache tier for multi-worker deployments.
type Postgres struct {
	DB  *sql.DB
	TTL time.Duration

	marshal func(v interface{}) ([]byte, error)
}

func NewPostgres(db *sql.DB, ttl time.Duration) *Postgres {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Postgres{DB: db, TTL: ttl, marshal: json.Marshal}
}

// OpenPostgres connects with the pgx driver and makes sure the cache table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	p := NewPostgres(db, DefaultTTL)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create shopping_cache: %w", err)
	}
	return nil
}

// Get returns a cached list younger than the TTL. Errors count as a miss.
func (p *Postgres) Get(ctx context.Context, key string) ([]models.Candidate, bool) {
	const q = `select payload, created_at from shopping_cache where key=$1`
	var (
		js []byte
		ts time.Time
	)
	if err := p.DB.QueryRowContext(ctx, q, key).Scan(&js, &ts); err != nil {
		if err != sql.ErrNoRows {
			log.Printf("shopping cache read %q: %v", key, err)
		}
		return nil, false
	}
	if time.Since(ts) >= p.TTL {
		return nil, false
	}
	var cands []models.Candidate
	if err := json.Unmarshal(js, &cands); err != nil {
		return nil, false
	}
	return cands, true
}

func (p *Postgres) Set(ctx context.Context, key string, cands []models.Candidate) {
	js, err := p.marshal(cands)
	if err != nil {
		log.Printf("shopping cache encode %q: %v", key, err)
		return
	}
	const q = `
insert into shopping_cache(key, payload)
values ($1, $2)
on conflict (key)
do update set payload=excluded.payload, created_at=now()`
	if _, err := p.DB.ExecContext(ctx, q, key, js); err != nil {
		log.Printf("shopping cache write %q: %v", key, err)
	}
}

func (p *Postgres) Close() error {
	return p.DB.Close()
}
