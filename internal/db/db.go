package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"route-refresh/internal/route"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS refresh_route_sets (
  session_id text PRIMARY KEY,
  version    bigint NOT NULL,
  reason     text NOT NULL,
  routes     jsonb NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
)`

// EnsureSchema creates the route set table if it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create refresh_route_sets: %w", err)
	}
	return nil
}

// RouteSet is the persisted snapshot of a session's live routes.
type RouteSet struct {
	SessionID string
	Version   uint64
	Reason    route.UpdateReason
	Routes    []*route.Route
	UpdatedAt time.Time
}

// SaveRouteSet upserts the route set of a session.
func SaveRouteSet(ctx context.Context, db *sql.DB, rs RouteSet) error {
	payload, err := encodeRoutes(rs.Routes)
	if err != nil {
		return err
	}
	q := `
INSERT INTO refresh_route_sets (session_id, version, reason, routes, updated_at)
VALUES ($1, $2, $3, $4::jsonb, now())
ON CONFLICT (session_id) DO UPDATE
SET version = EXCLUDED.version,
    reason = EXCLUDED.reason,
    routes = EXCLUDED.routes,
    updated_at = EXCLUDED.updated_at`
	if _, err := db.ExecContext(ctx, q, rs.SessionID, int64(rs.Version), string(rs.Reason), string(payload)); err != nil {
		return fmt.Errorf("save route set %q: %w", rs.SessionID, err)
	}
	return nil
}

// LoadRouteSet returns the last saved route set of a session, or nil if
// none was saved.
func LoadRouteSet(ctx context.Context, db *sql.DB, sessionID string) (*RouteSet, error) {
	q := `SELECT version, reason, routes::text, updated_at FROM refresh_route_sets WHERE session_id = $1`
	var (
		version int64
		reason  string
		payload string
		updated time.Time
	)
	err := db.QueryRowContext(ctx, q, sessionID).Scan(&version, &reason, &payload, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load route set %q: %w", sessionID, err)
	}
	routes, err := decodeRoutes([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("load route set %q: %w", sessionID, err)
	}
	return &RouteSet{
		SessionID: sessionID,
		Version:   uint64(version),
		Reason:    route.UpdateReason(reason),
		Routes:    routes,
		UpdatedAt: updated,
	}, nil
}

func encodeRoutes(routes []*route.Route) ([]byte, error) {
	if routes == nil {
		routes = []*route.Route{}
	}
	b, err := json.Marshal(routes)
	if err != nil {
		return nil, fmt.Errorf("encode routes: %w", err)
	}
	return b, nil
}

func decodeRoutes(b []byte) ([]*route.Route, error) {
	var routes []*route.Route
	if err := json.Unmarshal(b, &routes); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}
	out := routes[:0]
	for _, r := range routes {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}
