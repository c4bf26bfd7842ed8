package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// PostgresStore implements Store backed by Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("storage: database url is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "storage: open postgres")
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "storage: ping postgres")
	}
	return NewPostgresStoreWithDB(ctx, db)
}

// NewPostgresStoreWithDB reuses an existing *sql.DB.
func NewPostgresStoreWithDB(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("storage: db is required")
	}
	if err := ensureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS tabml_datasets (
  id text PRIMARY KEY,
  owner_id text NOT NULL,
  name text NOT NULL,
  description text NOT NULL DEFAULT '',
  data bytea NOT NULL,
  columns text[] NOT NULL,
  row_count integer NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS tabml_models (
  id text PRIMARY KEY,
  owner_id text NOT NULL,
  dataset_id text NOT NULL,
  name text NOT NULL,
  description text NOT NULL DEFAULT '',
  algorithm text NOT NULL,
  feature_columns text[] NOT NULL,
  target_column text NOT NULL,
  contract jsonb NOT NULL,
  artifact bytea NOT NULL,
  metrics jsonb NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS tabml_predictions (
  seq bigserial PRIMARY KEY,
  id text NOT NULL UNIQUE,
  model_id text NOT NULL,
  input jsonb NOT NULL,
  output jsonb NOT NULL,
  confidence jsonb,
  created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tabml_predictions_model_idx ON tabml_predictions (model_id, seq DESC);
`

func ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "storage: ensure schema")
	}
	return nil
}

func (s *PostgresStore) SaveDataset(ctx context.Context, d *DatasetRecord) error {
	stamp(&d.ID, &d.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tabml_datasets (id, owner_id, name, description, data, columns, row_count, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.OwnerID, d.Name, d.Description, d.Data, pq.Array(d.Columns), d.RowCount, d.CreatedAt)
	return errors.Wrap(err, "storage: insert dataset")
}

func (s *PostgresStore) GetDataset(ctx context.Context, ownerID, id string) (*DatasetRecord, error) {
	var d DatasetRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, description, data, columns, row_count, created_at
		 FROM tabml_datasets WHERE id=$1 AND owner_id=$2`, id, ownerID).
		Scan(&d.ID, &d.OwnerID, &d.Name, &d.Description, &d.Data, pq.Array(&d.Columns), &d.RowCount, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage: select dataset")
	}
	return &d, nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context, ownerID string) ([]DatasetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, description, columns, row_count, created_at
		 FROM tabml_datasets WHERE owner_id=$1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "storage: list datasets")
	}
	defer rows.Close()

	var out []DatasetRecord
	for rows.Next() {
		var d DatasetRecord
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Name, &d.Description, pq.Array(&d.Columns), &d.RowCount, &d.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "storage: scan dataset")
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "storage: list datasets")
}

func (s *PostgresStore) SaveModel(ctx context.Context, m *ModelRecord) error {
	stamp(&m.ID, &m.CreatedAt)
	metrics, err := json.Marshal(m.Metrics)
	if err != nil {
		return errors.Wrap(err, "storage: encode metrics")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tabml_models (id, owner_id, dataset_id, name, description, algorithm,
		   feature_columns, target_column, contract, artifact, metrics, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.ID, m.OwnerID, m.DatasetID, m.Name, m.Description, m.Algorithm,
		pq.Array(m.FeatureColumns), m.TargetColumn, m.Contract, m.Artifact, metrics, m.CreatedAt)
	return errors.Wrap(err, "storage: insert model")
}

const modelColumns = `id, owner_id, dataset_id, name, description, algorithm, feature_columns, target_column, metrics, created_at`

func scanModel(sc interface{ Scan(...any) error }, m *ModelRecord, extra ...any) error {
	var metrics []byte
	dest := []any{&m.ID, &m.OwnerID, &m.DatasetID, &m.Name, &m.Description, &m.Algorithm,
		pq.Array(&m.FeatureColumns), &m.TargetColumn, &metrics, &m.CreatedAt}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	return json.Unmarshal(metrics, &m.Metrics)
}

func (s *PostgresStore) GetModel(ctx context.Context, ownerID, id string) (*ModelRecord, error) {
	var m ModelRecord
	row := s.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+`, contract, artifact FROM tabml_models WHERE id=$1 AND owner_id=$2`, id, ownerID)
	err := scanModel(row, &m, &m.Contract, &m.Artifact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage: select model")
	}
	return &m, nil
}

func (s *PostgresStore) ListModels(ctx context.Context, ownerID string) ([]ModelRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+modelColumns+` FROM tabml_models WHERE owner_id=$1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "storage: list models")
	}
	defer rows.Close()

	var out []ModelRecord
	for rows.Next() {
		var m ModelRecord
		if err := scanModel(rows, &m); err != nil {
			return nil, errors.Wrap(err, "storage: scan model")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "storage: list models")
}

func (s *PostgresStore) AppendPrediction(ctx context.Context, p *PredictionRecord) error {
	stamp(&p.ID, &p.CreatedAt)
	input, err := json.Marshal(p.Input)
	if err != nil {
		return errors.Wrap(err, "storage: encode prediction input")
	}
	output, err := json.Marshal(p.Values)
	if err != nil {
		return errors.Wrap(err, "storage: encode prediction output")
	}
	// nil のときは NULL として書き込む
	var confidence any
	if p.Confidence != nil {
		b, err := json.Marshal(p.Confidence)
		if err != nil {
			return errors.Wrap(err, "storage: encode confidence")
		}
		confidence = b
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tabml_predictions (id, model_id, input, output, confidence, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.ModelID, input, output, confidence, p.CreatedAt)
	return errors.Wrap(err, "storage: insert prediction")
}

func (s *PostgresStore) ListPredictions(ctx context.Context, modelID string, page Page) (*PredictionPage, error) {
	page = page.normalize()

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM tabml_predictions WHERE model_id=$1`, modelID).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "storage: count predictions")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model_id, input, output, confidence, created_at FROM tabml_predictions
		 WHERE model_id=$1 ORDER BY seq DESC LIMIT $2 OFFSET $3`,
		modelID, page.Size, page.offset())
	if err != nil {
		return nil, errors.Wrap(err, "storage: list predictions")
	}
	defer rows.Close()

	var items []PredictionRecord
	for rows.Next() {
		var (
			p                         PredictionRecord
			input, output, confidence []byte
		)
		if err := rows.Scan(&p.ID, &p.ModelID, &input, &output, &confidence, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "storage: scan prediction")
		}
		if err := decodePrediction(&p, input, output, confidence); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "storage: list predictions")
	}
	return newPredictionPage(items, total, page), nil
}

func decodePrediction(p *PredictionRecord, input, output, confidence []byte) error {
	if err := json.Unmarshal(input, &p.Input); err != nil {
		return errors.Wrap(err, "storage: decode prediction input")
	}
	if err := json.Unmarshal(output, &p.Values); err != nil {
		return errors.Wrap(err, "storage: decode prediction output")
	}
	if confidence != nil {
		if err := json.Unmarshal(confidence, &p.Confidence); err != nil {
			return errors.Wrap(err, "storage: decode confidence")
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
