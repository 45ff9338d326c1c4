package canvas

import (
	"context"
	"crypto/rand"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Semantics:
// - Updates are last-write-wins: the stored data is overlaid and rewritten
//   under a row lock, with no merge logic beyond the top-level overlay.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "slate").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("canvas: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("canvas: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "slate",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("canvas: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// Permission returns subject's level on a canvas, distinguishing a missing
// canvas (ErrNotFound) from an absent grant (the canvas default).
func (s *PostgresStore) Permission(ctx context.Context, canvasID, subject string) (Level, error) {
	if s == nil || s.pool == nil {
		return LevelNone, errors.New("canvas: nil store")
	}
	canvasID = strings.TrimSpace(canvasID)
	if canvasID == "" {
		return LevelNone, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return LevelNone, err
	}

	canvases := pgIdent(s.schema, "canvases")
	permissions := pgIdent(s.schema, "canvas_permissions")

	var defaultLevel string
	err := s.pool.QueryRow(ctx,
		`SELECT default_permission FROM `+canvases+` WHERE id = $1`,
		canvasID,
	).Scan(&defaultLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return LevelNone, ErrNotFound
	}
	if err != nil {
		return LevelNone, err
	}

	var level string
	err = s.pool.QueryRow(ctx,
		`SELECT permission FROM `+permissions+` WHERE canvas_id = $1 AND subject = $2`,
		canvasID, subject,
	).Scan(&level)
	if errors.Is(err, pgx.ErrNoRows) {
		return parseLevel(defaultLevel), nil
	}
	if err != nil {
		return LevelNone, err
	}
	return parseLevel(level), nil
}

// CreateObject inserts a new object row, assigning a ULID when no id is given.
func (s *PostgresStore) CreateObject(ctx context.Context, in CreateObjectInput) (Object, error) {
	if s == nil || s.pool == nil {
		return Object{}, errors.New("canvas: nil store")
	}
	if strings.TrimSpace(in.CanvasID) == "" || len(in.Data) == 0 {
		return Object{}, errors.New("canvas: invalid input")
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id := strings.TrimSpace(in.ObjectID)
	if id == "" {
		id = ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	}

	objects := pgIdent(s.schema, "canvas_objects")

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+objects+` (id, canvas_id, data, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, in.CanvasID, []byte(in.Data), in.UserID, now,
	)
	if err != nil {
		return Object{}, err
	}

	return Object{
		ID:        id,
		CanvasID:  in.CanvasID,
		Data:      in.Data,
		UpdatedBy: in.UserID,
		UpdatedAt: now,
	}, nil
}

// UpdateObject overlays properties onto the stored data under a row lock.
// Last write wins; concurrent updates to the same object serialize on the
// row and the later commit is authoritative.
func (s *PostgresStore) UpdateObject(ctx context.Context, in UpdateObjectInput) (Object, error) {
	if s == nil || s.pool == nil {
		return Object{}, errors.New("canvas: nil store")
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Object{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	objects := pgIdent(s.schema, "canvas_objects")

	var data []byte
	err = tx.QueryRow(ctx,
		`SELECT data FROM `+objects+` WHERE canvas_id = $1 AND id = $2 FOR UPDATE`,
		in.CanvasID, in.ObjectID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, err
	}

	merged, err := MergeProperties(data, in.Properties)
	if err != nil {
		return Object{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+objects+` SET data = $1, updated_by = $2, updated_at = $3
		  WHERE canvas_id = $4 AND id = $5`,
		[]byte(merged), in.UserID, now, in.CanvasID, in.ObjectID,
	); err != nil {
		return Object{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Object{}, err
	}

	return Object{
		ID:        in.ObjectID,
		CanvasID:  in.CanvasID,
		Data:      merged,
		UpdatedBy: in.UserID,
		UpdatedAt: now,
	}, nil
}

// DeleteObject removes an object row.
func (s *PostgresStore) DeleteObject(ctx context.Context, canvasID, objectID string) error {
	if s == nil || s.pool == nil {
		return errors.New("canvas: nil store")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	objects := pgIdent(s.schema, "canvas_objects")

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+objects+` WHERE canvas_id = $1 AND id = $2`,
		canvasID, objectID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "view":
		return LevelView
	case "edit":
		return LevelEdit
	default:
		return LevelNone
	}
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
