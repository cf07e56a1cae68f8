package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/propscout/propscout-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id                         TEXT PRIMARY KEY,
	url                        TEXT NOT NULL UNIQUE,
	tipo_operacion             TEXT,
	tipo_inmueble              TEXT,
	direccion                  TEXT,
	barrio                     TEXT,
	metros_cuadrados_cubiertos REAL,
	metros_cuadrados_totales   REAL,
	precio                     REAL,
	moneda                     TEXT,
	cantidad_dormitorios       INTEGER,
	cantidad_banos             INTEGER,
	cantidad_ambientes         INTEGER,
	tiene_patio                INTEGER,
	tiene_quincho              INTEGER,
	tiene_pileta               INTEGER,
	tiene_cochera              INTEGER,
	tiene_balcon               INTEGER,
	tiene_terraza              INTEGER,
	piso                       TEXT,
	orientacion                TEXT,
	antiguedad                 INTEGER,
	descripcion_breve          TEXT,
	costo_metro_cuadrado       REAL,
	costo_m2_ponderado         REAL,
	status                     TEXT NOT NULL DEFAULT '',
	created_at                 DATETIME NOT NULL,
	scraped_at                 DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, url string, fm model.FieldMap, opts UpsertOptions) (Outcome, *model.PropertyRecord, error) {
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
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(fieldColumns)+7), ", ")

	args := append([]any{id, url}, fieldArgs(fm)...)
	args = append(args, cost, costW, string(model.StatusUnset), now, now)

	query := fmt.Sprintf("INSERT INTO properties (%s) VALUES (%s)", selectColumns(), placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		// Lost an insert race: a concurrent writer created the row between
		// our read and write. The URL is unique, so update instead.
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			if raced, gerr := s.GetByURL(ctx, url); gerr == nil {
				return s.updateExisting(ctx, url, fm, raced, cost, costW, now)
			}
		}
		return "", nil, eris.Wrapf(err, "sqlite: insert %s", url)
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

func (s *SQLiteStore) updateExisting(ctx context.Context, url string, fm model.FieldMap, existing *model.PropertyRecord, cost, costW *float64, now time.Time) (Outcome, *model.PropertyRecord, error) {
	setParts := make([]string, 0, len(fieldColumns)+3)
	for _, col := range fieldColumns {
		setParts = append(setParts, col+" = ?")
	}
	setParts = append(setParts, "costo_metro_cuadrado = ?", "costo_m2_ponderado = ?", "scraped_at = ?")

	args := fieldArgs(fm)
	args = append(args, cost, costW, now, url)

	query := fmt.Sprintf("UPDATE properties SET %s WHERE url = ?", strings.Join(setParts, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", nil, eris.Wrapf(err, "sqlite: update %s", url)
	}

	rec := *existing
	rec.Fields = fm.Clone()
	rec.CostM2 = cost
	rec.CostM2W = costW
	rec.ScrapedAt = now
	return OutcomeUpdated, &rec, nil
}

func (s *SQLiteStore) GetByURL(ctx context.Context, url string) (*model.PropertyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM properties WHERE url = ?", selectColumns()), url)
	rec, err := scanRecord(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "url %s", url)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", url)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]model.PropertyRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM properties WHERE 1=1", selectColumns())
	var args []any

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list")
	}
	defer rows.Close()

	var out []model.PropertyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, url string, status model.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE properties SET status = ? WHERE url = ?", string(status), url)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update status %s", url)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM properties GROUP BY status")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close()

	out := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		out[model.Status(status)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate counts")
}

// scannable covers *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.PropertyRecord, error) {
	var rec model.PropertyRecord
	var status string

	fieldDest, buildFields := fieldScanDest()

	dest := append([]any{&rec.ID, &rec.URL}, fieldDest...)
	dest = append(dest, &rec.CostM2, &rec.CostM2W, &status, &rec.CreatedAt, &rec.ScrapedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec.Fields = buildFields()
	rec.Status = model.Status(status)
	return &rec, nil
}
