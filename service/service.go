// Package service ties the pipeline to persistent storage. Every operation is
// scoped to an owner id; rows owned by someone else behave as missing.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/YuminosukeSato/tabml/config"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pipeline"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
	"github.com/YuminosukeSato/tabml/storage"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("service: upload exceeds size limit")

// Service runs dataset, training and prediction operations against a Store.
type Service struct {
	store  storage.Store
	logger log.Logger
	limits config.LimitsConfig
}

type pair struct {
	contract *pipeline.Contract
	artifact *pipeline.Artifact
}

// New returns a Service. A nil logger selects the process default.
func New(store storage.Store, logger log.Logger, cfg config.Config) *Service {
	if logger == nil {
		logger = log.GetLoggerWithName("service")
	}
	return &Service{
		store:  store,
		logger: logger,
		limits: cfg.Limits,
	}
}

// UploadDataset validates raw as a table and stores the bytes unchanged.
func (s *Service) UploadDataset(ctx context.Context, owner, name, description string, raw []byte) (*storage.DatasetRecord, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if limit := s.limits.MaxUploadBytes; limit > 0 && int64(len(raw)) > limit {
		return nil, errors.Wrapf(ErrTooLarge, "%d bytes (limit %d)", len(raw), limit)
	}
	table, err := pipeline.Ingest(raw)
	if err != nil {
		return nil, err
	}
	rec := &storage.DatasetRecord{
		OwnerID:     owner,
		Name:        name,
		Description: description,
		Data:        raw,
		Columns:     table.ColumnNames(),
		RowCount:    table.NumRows(),
	}
	if err := s.store.SaveDataset(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("dataset uploaded",
		log.OwnerKey, owner,
		log.DatasetIDKey, rec.ID,
		log.SamplesKey, rec.RowCount,
		log.FeaturesKey, len(rec.Columns),
		log.DataSizeKey, len(raw),
	)
	return rec, nil
}

// PreviewDataset returns the first n rows of a stored dataset. A non-positive
// n uses the configured preview size.
func (s *Service) PreviewDataset(ctx context.Context, owner, id string, n int) (*dataset.PreviewResult, error) {
	table, _, err := s.loadTable(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = s.limits.PreviewRows
	}
	p := dataset.Preview(table, n)
	return &p, nil
}

// ListDatasets returns the owner's datasets, newest first.
func (s *Service) ListDatasets(ctx context.Context, owner string) ([]storage.DatasetRecord, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return s.store.ListDatasets(ctx, owner)
}

// TrainRequest describes one training run over a stored dataset.
type TrainRequest struct {
	DatasetID   string
	Target      string
	Algorithm   string
	Drop        []string
	Name        string
	Description string
}

// TrainModel trains on a stored dataset and persists the contract and
// artifact together.
func (s *Service) TrainModel(ctx context.Context, owner string, req TrainRequest) (*ModelInfo, error) {
	rec, err := s.getDataset(ctx, owner, req.DatasetID)
	if err != nil {
		return nil, err
	}
	res, err := pipeline.TrainModel(rec.Data, req.Target, req.Algorithm, req.Drop)
	if err != nil {
		s.logger.Warn("training rejected", err,
			log.OwnerKey, owner,
			log.DatasetIDKey, req.DatasetID,
			log.AlgorithmKey, req.Algorithm,
		)
		return nil, err
	}

	contract, err := json.Marshal(res.Contract)
	if err != nil {
		return nil, errors.Wrap(err, "encode contract")
	}
	artifact, err := res.Artifact.MarshalBinary()
	if err != nil {
		return nil, err
	}
	m := &storage.ModelRecord{
		OwnerID:        owner,
		DatasetID:      rec.ID,
		Name:           req.Name,
		Description:    req.Description,
		Algorithm:      res.Artifact.Algorithm().String(),
		FeatureColumns: res.Contract.FeatureColumns,
		TargetColumn:   res.Contract.TargetColumn,
		Contract:       contract,
		Artifact:       artifact,
		Metrics:        res.Artifact.Metrics(),
		CreatedAt:      res.Artifact.CreatedAt(),
	}
	if err := s.store.SaveModel(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("model saved",
		log.OwnerKey, owner,
		log.ModelIDKey, m.ID,
		log.RunIDKey, res.Contract.RunID,
		log.AlgorithmKey, m.Algorithm,
	)
	return newModelInfo(m, res.Contract, res.Artifact), nil
}

// ModelInfo describes a trained model without its artifact bytes.
type ModelInfo struct {
	ID                  string             `json:"id,omitempty"`
	Name                string             `json:"name,omitempty"`
	Description         string             `json:"description,omitempty"`
	DatasetID           string             `json:"dataset_id,omitempty"`
	RunID               string             `json:"run_id"`
	Algorithm           string             `json:"algorithm"`
	TargetColumn        string             `json:"target_column"`
	TargetKind          string             `json:"target_kind"`
	FeatureColumns      []string           `json:"feature_columns"`
	CategoricalFeatures []string           `json:"categorical_features"`
	Classes             []string           `json:"classes,omitempty"`
	Metrics             map[string]float64 `json:"metrics"`
	CreatedAt           time.Time          `json:"created_at"`
}

// Describe summarizes a contract and artifact pair. Storage fields are left empty.
func Describe(c *pipeline.Contract, a *pipeline.Artifact) *ModelInfo {
	return &ModelInfo{
		RunID:               c.RunID,
		Algorithm:           a.Algorithm().String(),
		TargetColumn:        c.TargetColumn,
		TargetKind:          string(a.TargetKind()),
		FeatureColumns:      append([]string(nil), c.FeatureColumns...),
		CategoricalFeatures: c.CategoricalFeatures(),
		Classes:             a.Classes(),
		Metrics:             a.Metrics(),
		CreatedAt:           a.CreatedAt(),
	}
}

func newModelInfo(m *storage.ModelRecord, c *pipeline.Contract, a *pipeline.Artifact) *ModelInfo {
	info := Describe(c, a)
	info.ID = m.ID
	info.Name = m.Name
	info.Description = m.Description
	info.DatasetID = m.DatasetID
	info.CreatedAt = m.CreatedAt
	return info
}

// ModelInfo loads a stored model and describes it.
func (s *Service) ModelInfo(ctx context.Context, owner, id string) (*ModelInfo, error) {
	m, p, err := s.loadPair(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return newModelInfo(m, p.contract, p.artifact), nil
}

// ListModels returns the owner's models, newest first.
func (s *Service) ListModels(ctx context.Context, owner string) ([]storage.ModelRecord, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return s.store.ListModels(ctx, owner)
}

// Predict runs a stored model on records and appends the call to the
// model's prediction history. Failed predictions are not recorded.
func (s *Service) Predict(ctx context.Context, owner, modelID string, records []pipeline.Record) (*pipeline.Outcome, error) {
	_, p, err := s.loadPair(ctx, owner, modelID)
	if err != nil {
		return nil, err
	}
	out, err := pipeline.Predict(p.artifact, p.contract, records...)
	if err != nil {
		s.logger.Warn("prediction rejected", err,
			log.OwnerKey, owner,
			log.ModelIDKey, modelID,
			log.ErrorCategoryKey, errors.CategoryOf(err).String(),
		)
		return nil, err
	}
	rec := &storage.PredictionRecord{
		ModelID:    modelID,
		Input:      records,
		Values:     out.Values,
		Confidence: out.Confidence,
	}
	if err := s.store.AppendPrediction(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Debug("prediction recorded",
		log.ModelIDKey, modelID,
		log.PredsKey, len(out.Values),
	)
	return out, nil
}

// PredictionHistory returns one page of a model's predictions, newest first.
func (s *Service) PredictionHistory(ctx context.Context, owner, modelID string, page int) (*storage.PredictionPage, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if _, err := s.store.GetModel(ctx, owner, modelID); err != nil {
		return nil, err
	}
	return s.store.ListPredictions(ctx, modelID, storage.Page{Number: page, Size: s.limits.PageSize})
}

func (s *Service) getDataset(ctx context.Context, owner, id string) (*storage.DatasetRecord, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return s.store.GetDataset(ctx, owner, id)
}

func (s *Service) loadTable(ctx context.Context, owner, id string) (*dataset.Table, *storage.DatasetRecord, error) {
	rec, err := s.getDataset(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	table, err := dataset.Load(rec.Data)
	if err != nil {
		return nil, nil, err
	}
	return table, rec, nil
}

// loadPair fetches a model row and decodes its contract and artifact. The pair
// lives only for the calling operation and is decoded again on the next one.
func (s *Service) loadPair(ctx context.Context, owner, id string) (*storage.ModelRecord, *pair, error) {
	if err := requireOwner(owner); err != nil {
		return nil, nil, err
	}
	m, err := s.store.GetModel(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	c, err := pipeline.UnmarshalContract(m.Contract)
	if err != nil {
		return nil, nil, err
	}
	a, err := pipeline.UnmarshalArtifact(m.Artifact)
	if err != nil {
		return nil, nil, err
	}
	return m, &pair{contract: c, artifact: a}, nil
}

func requireOwner(owner string) error {
	if owner == "" {
		return errors.NewValidationError("owner", "owner id is required", owner)
	}
	return nil
}
