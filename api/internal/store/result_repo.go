package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cbc-anemia/api/internal/cbc"
)

var ErrNotFound = sql.ErrNoRows

// ResultRow: одна сохранённая диагностика.
type ResultRow struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Classification string       `json:"classification"`
	Confidence     string       `json:"confidence_score"`
	Explanation    string       `json:"explanation"`
	HealthRisk     string       `json:"healthrisk"`
	Values         cbc.ValueMap `json:"values"`
	CreatedAt      time.Time    `json:"created_at"`
}

type ResultRepo struct {
	DB     *sql.DB
	driver string
}

func NewResultRepo(db *sql.DB, driver string) *ResultRepo {
	if driver == "" || driver == "postgres" {
		driver = DriverPostgres
	}
	return &ResultRepo{DB: db, driver: driver}
}

func (r *ResultRepo) q(s string) string { return rebind(r.driver, s) }

// EnsureSchema создаёт таблицу, если её нет.
func (r *ResultRepo) EnsureSchema(ctx context.Context) error {
	for _, s := range schema(r.driver) {
		if _, err := r.DB.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func schema(driver string) []string {
	const table = `create table if not exists diagnosis_results (
  id varchar(36) primary key,
  user_id varchar(128) not null default '',
  classification varchar(128) not null,
  confidence varchar(32) not null default '',
  explanation text not null,
  health_risk text not null,
  values_json %s not null,
  created_at %s%s
)`
	if driver == DriverMySQL {
		// у MySQL нет "create index if not exists", индекс объявляем в таблице
		return []string{fmt.Sprintf(table, "json", "timestamp(6) not null default current_timestamp(6)",
			",\n  index diagnosis_results_user_idx (user_id, created_at)")}
	}
	return []string{
		fmt.Sprintf(table, "jsonb", "timestamptz not null default now()", ""),
		`create index if not exists diagnosis_results_user_idx on diagnosis_results (user_id, created_at)`,
	}
}

// Insert сохраняет результат; CreatedAt проставляется, если пустой.
func (r *ResultRepo) Insert(ctx context.Context, row ResultRow) error {
	if row.ID == "" {
		return errors.New("result id is empty")
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	js, err := json.Marshal(row.Values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	const q = `
insert into diagnosis_results (
  id, user_id, classification, confidence, explanation, health_risk, values_json, created_at
) values ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = r.DB.ExecContext(ctx, r.q(q),
		row.ID, row.UserID, row.Classification, row.Confidence,
		row.Explanation, row.HealthRisk, js, row.CreatedAt,
	)
	return err
}

const selectColumns = `select id, user_id, classification, confidence, explanation, health_risk, values_json, created_at
from diagnosis_results`

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (*ResultRow, error) {
	var (
		row ResultRow
		js  []byte
	)
	if err := s.Scan(&row.ID, &row.UserID, &row.Classification, &row.Confidence,
		&row.Explanation, &row.HealthRisk, &js, &row.CreatedAt); err != nil {
		return nil, err
	}
	if len(js) > 0 {
		if err := json.Unmarshal(js, &row.Values); err != nil {
			return nil, fmt.Errorf("result %s: bad values_json: %w", row.ID, err)
		}
	}
	return &row, nil
}

func (r *ResultRepo) Get(ctx context.Context, id string) (*ResultRow, error) {
	return scanRow(r.DB.QueryRowContext(ctx, r.q(selectColumns+` where id = $1`), id))
}

// ListByUser: свежие сначала; limit <= 0 означает 50.
func (r *ResultRepo) ListByUser(ctx context.Context, userID string, limit int) ([]ResultRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		r.q(selectColumns+` where user_id = $1 order by created_at desc limit $2`), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ResultRow{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

func (r *ResultRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.q(`delete from diagnosis_results where id = $1`), id)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}
