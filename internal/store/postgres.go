package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/propscout/propscout-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Narrowed so tests can
// substitute a mock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the database and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id                         TEXT PRIMARY KEY,
	url                        TEXT NOT NULL UNIQUE,
	tipo_operacion             TEXT,
	tipo_inmueble              TEXT,
	direccion                  TEXT,
	barrio                     TEXT,
	metros_cuadrados_cubiertos DOUBLE PRECISION,
	metros_cuadrados_totales   DOUBLE PRECISION,
	precio                     DOUBLE PRECISION,
	moneda                     TEXT,
	cantidad_dormitorios       BIGINT,
	cantidad_banos             BIGINT,
	cantidad_ambientes         BIGINT,
	tiene_patio                BOOLEAN,
	tiene_quincho              BOOLEAN,
	tiene_pileta               BOOLEAN,
	tiene_cochera              BOOLEAN,
	tiene_balcon               BOOLEAN,
	tiene_terraza              BOOLEAN,
	piso                       TEXT,
	orientacion                TEXT,
	antiguedad                 BIGINT,
	descripcion_breve          TEXT,
	costo_metro_cuadrado       DOUBLE PRECISION,
	costo_m2_ponderado         DOUBLE PRECISION,
	status                     TEXT NOT NULL DEFAULT '',
	created_at                 TIMESTAMPTZ NOT NULL,
	scraped_at                 TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgPlaceholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

func (s *PostgresStore) Upsert(ctx context.Context, url string, fm model.FieldMap, opts UpsertOptions) (Outcome, *model.PropertyRecord, error) {
	existing, err := s.GetByURL(ctx, url)
	if err != nil && !eris.Is(err, ErrNotFound) {
		return "", nil, err
	}

	now := time.Now().UTC()
	cost := model.DeriveCostM2(fm)
	costW := model.DeriveCostM2Weighted(fm)

	if existing != nil {
		if opts.SkipExisting {
			return OutcomeSkipped, existing, nil
		}
		return s.updateExisting(ctx, url, fm, existing, cost, costW, now)
	}

	id := uuid.New().String()
	args := append([]any{id, url}, fieldArgs(fm)...)
	args = append(args, cost, costW, string(model.StatusUnset), now, now)

	query := fmt.Sprintf("INSERT INTO properties (%s) VALUES (%s)",
		selectColumns(), pgPlaceholders(len(args)))
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		// Lost an insert race: a concurrent writer created the row between
		// our read and write. The URL is unique, so update instead.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if raced, gerr := s.GetByURL(ctx, url); gerr == nil {
				return s.updateExisting(ctx, url, fm, raced, cost, costW, now)
			}
		}
		return "", nil, eris.Wrapf(err, "postgres: insert %s", url)
	}

	return OutcomeCreated, &model.PropertyRecord{
		ID:        id,
		URL:       url,
		Fields:    fm.Clone(),
		CostM2:    cost,
		CostM2W:   costW,
		Status:    model.StatusUnset,
		CreatedAt: now,
		ScrapedAt: now,
	}, nil
}

func (s *PostgresStore) updateExisting(ctx context.Context, url string, fm model.FieldMap, existing *model.PropertyRecord, cost, costW *float64, now time.Time) (Outcome, *model.PropertyRecord, error) {
	setParts := make([]string, 0, len(fieldColumns)+3)
	i := 1
	for _, col := range fieldColumns {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", col, i))
		i++
	}
	setParts = append(setParts,
		fmt.Sprintf("costo_metro_cuadrado = $%d", i),
		fmt.Sprintf("costo_m2_ponderado = $%d", i+1),
		fmt.Sprintf("scraped_at = $%d", i+2),
	)

	args := fieldArgs(fm)
	args = append(args, cost, costW, now, url)

	query := fmt.Sprintf("UPDATE properties SET %s WHERE url = $%d", strings.Join(setParts, ", "), i+3)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return "", nil, eris.Wrapf(err, "postgres: update %s", url)
	}

	rec := *existing
	rec.Fields = fm.Clone()
	rec.CostM2 = cost
	rec.CostM2W = costW
	rec.ScrapedAt = now
	return OutcomeUpdated, &rec, nil
}

func (s *PostgresStore) GetByURL(ctx context.Context, url string) (*model.PropertyRecord, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM properties WHERE url = $1", selectColumns()), url)
	rec, err := scanRecord(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "url %s", url)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", url)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]model.PropertyRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM properties WHERE 1=1", selectColumns())
	var args []any

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list")
	}
	defer rows.Close()

	var out []model.PropertyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, url string, status model.Status) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE properties SET status = $1 WHERE url = $2", string(status), url)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: update status %s", url)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT status, COUNT(*) FROM properties GROUP BY status")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	out := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		out[model.Status(status)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate counts")
}
