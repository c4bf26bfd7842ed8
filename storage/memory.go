package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in process memory, so contents are lost when
// the process exits. Tests and short-lived embedders use it; the CLI store
// commands require a database instead.
type MemoryStore struct {
	mu          sync.RWMutex
	datasets    []DatasetRecord
	models      []ModelRecord
	predictions map[string][]PredictionRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{predictions: make(map[string][]PredictionRecord)}
}

func (s *MemoryStore) SaveDataset(_ context.Context, d *DatasetRecord) error {
	stamp(&d.ID, &d.CreatedAt)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *d
	c.Data = append([]byte(nil), d.Data...)
	c.Columns = append([]string(nil), d.Columns...)
	s.datasets = append(s.datasets, c)
	return nil
}

func (s *MemoryStore) GetDataset(_ context.Context, ownerID, id string) (*DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.datasets {
		if d.ID == id && d.OwnerID == ownerID {
			c := d
			c.Data = append([]byte(nil), d.Data...)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListDatasets(_ context.Context, ownerID string) ([]DatasetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DatasetRecord
	for i := len(s.datasets) - 1; i >= 0; i-- {
		if d := s.datasets[i]; d.OwnerID == ownerID {
			d.Data = nil
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveModel(_ context.Context, m *ModelRecord) error {
	stamp(&m.ID, &m.CreatedAt)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *m
	c.Contract = append([]byte(nil), m.Contract...)
	c.Artifact = append([]byte(nil), m.Artifact...)
	s.models = append(s.models, c)
	return nil
}

func (s *MemoryStore) GetModel(_ context.Context, ownerID, id string) (*ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.models {
		if m.ID == id && m.OwnerID == ownerID {
			c := m
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListModels(_ context.Context, ownerID string) ([]ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ModelRecord
	for i := len(s.models) - 1; i >= 0; i-- {
		if m := s.models[i]; m.OwnerID == ownerID {
			m.Contract, m.Artifact = nil, nil
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendPrediction(_ context.Context, p *PredictionRecord) error {
	stamp(&p.ID, &p.CreatedAt)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[p.ModelID] = append(s.predictions[p.ModelID], *p)
	return nil
}

func (s *MemoryStore) ListPredictions(_ context.Context, modelID string, page Page) (*PredictionPage, error) {
	page = page.normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.predictions[modelID]
	total := len(all)

	var items []PredictionRecord
	for i := total - 1 - page.offset(); i >= 0 && len(items) < page.Size; i-- {
		items = append(items, all[i])
	}
	return newPredictionPage(items, total, page), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
