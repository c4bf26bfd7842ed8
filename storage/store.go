// Package storage persists datasets, trained models and prediction history.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/tabml/pipeline"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// ErrNotFound is returned for missing rows and rows owned by someone else.
var ErrNotFound = errors.New("storage: not found")

// DefaultPageSize is used when a Page has no size.
const DefaultPageSize = 10

// DatasetRecord is an uploaded dataset. Data holds the bytes exactly as uploaded.
type DatasetRecord struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Data        []byte    `json:"data,omitempty"`
	Columns     []string  `json:"columns"`
	RowCount    int       `json:"row_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ModelRecord is a trained model. Contract and Artifact are always stored as a pair.
type ModelRecord struct {
	ID             string             `json:"id"`
	OwnerID        string             `json:"owner_id"`
	DatasetID      string             `json:"dataset_id"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Algorithm      string             `json:"algorithm"`
	FeatureColumns []string           `json:"feature_columns"`
	TargetColumn   string             `json:"target_column"`
	Contract       []byte             `json:"-"`
	Artifact       []byte             `json:"-"`
	Metrics        map[string]float64 `json:"metrics"`
	CreatedAt      time.Time          `json:"created_at"`
}

// PredictionRecord is one prediction call. It is never modified once appended.
type PredictionRecord struct {
	ID         string            `json:"id"`
	ModelID    string            `json:"model_id"`
	Input      []pipeline.Record `json:"input"`
	Values     []pipeline.Value  `json:"values"`
	Confidence []float64         `json:"confidence"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Page selects a 1-based page of results.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	return p
}

func (p Page) offset() int { return (p.Number - 1) * p.Size }

// PredictionPage is one page of prediction history, newest first.
type PredictionPage struct {
	Items   []PredictionRecord `json:"items"`
	Total   int                `json:"total"`
	Pages   int                `json:"pages"`
	Current int                `json:"current"`
}

func newPredictionPage(items []PredictionRecord, total int, p Page) *PredictionPage {
	return &PredictionPage{
		Items:   items,
		Total:   total,
		Pages:   (total + p.Size - 1) / p.Size,
		Current: p.Number,
	}
}

// Store is the persistence boundary used by the service layer.
//
// List methods return rows newest first and leave the large blob fields
// (Data, Contract, Artifact) empty.
type Store interface {
	SaveDataset(ctx context.Context, d *DatasetRecord) error
	GetDataset(ctx context.Context, ownerID, id string) (*DatasetRecord, error)
	ListDatasets(ctx context.Context, ownerID string) ([]DatasetRecord, error)

	SaveModel(ctx context.Context, m *ModelRecord) error
	GetModel(ctx context.Context, ownerID, id string) (*ModelRecord, error)
	ListModels(ctx context.Context, ownerID string) ([]ModelRecord, error)

	AppendPrediction(ctx context.Context, p *PredictionRecord) error
	ListPredictions(ctx context.Context, modelID string, page Page) (*PredictionPage, error)

	Close() error
}

// stamp fills in a missing id and creation time.
func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}
