package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabml/pipeline"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// runStoreSuite exercises the behavior every Store implementation shares.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("dataset round trip", func(t *testing.T) {
		s := newStore(t)
		d := &DatasetRecord{
			OwnerID:  "alice",
			Name:     "houses",
			Data:     []byte("x,y\n1,2\n"),
			Columns:  []string{"x", "y"},
			RowCount: 1,
		}
		require.NoError(t, s.SaveDataset(ctx, d))
		assert.NotEmpty(t, d.ID)
		assert.False(t, d.CreatedAt.IsZero())

		got, err := s.GetDataset(ctx, "alice", d.ID)
		require.NoError(t, err)
		assert.Equal(t, d.Data, got.Data)
		assert.Equal(t, []string{"x", "y"}, got.Columns)
		assert.Equal(t, 1, got.RowCount)
	})

	t.Run("dataset owned by someone else is not found", func(t *testing.T) {
		s := newStore(t)
		d := &DatasetRecord{OwnerID: "alice", Name: "a", Data: []byte("a\n1\n"), Columns: []string{"a"}, RowCount: 1}
		require.NoError(t, s.SaveDataset(ctx, d))

		_, err := s.GetDataset(ctx, "bob", d.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetDataset(ctx, "alice", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list datasets newest first without data", func(t *testing.T) {
		s := newStore(t)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, name := range []string{"first", "second"} {
			require.NoError(t, s.SaveDataset(ctx, &DatasetRecord{
				OwnerID: "alice", Name: name, Data: []byte("a\n1\n"), Columns: []string{"a"},
				RowCount: 1, CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}))
		}
		require.NoError(t, s.SaveDataset(ctx, &DatasetRecord{OwnerID: "bob", Name: "other", Data: []byte("a\n1\n"), Columns: []string{"a"}, RowCount: 1}))

		list, err := s.ListDatasets(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "second", list[0].Name)
		assert.Equal(t, "first", list[1].Name)
		assert.Nil(t, list[0].Data)
	})

	t.Run("model round trip", func(t *testing.T) {
		s := newStore(t)
		m := &ModelRecord{
			OwnerID:        "alice",
			DatasetID:      "ds-1",
			Name:           "price",
			Algorithm:      "linear_regression",
			FeatureColumns: []string{"x1", "x2"},
			TargetColumn:   "y",
			Contract:       []byte(`{"run_id":"r1"}`),
			Artifact:       []byte("TABMLART\x01payload"),
			Metrics:        map[string]float64{"mse": 0.5},
		}
		require.NoError(t, s.SaveModel(ctx, m))

		got, err := s.GetModel(ctx, "alice", m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.Artifact, got.Artifact)
		assert.JSONEq(t, string(m.Contract), string(got.Contract))
		assert.Equal(t, []string{"x1", "x2"}, got.FeatureColumns)
		assert.InDelta(t, 0.5, got.Metrics["mse"], 1e-12)

		_, err = s.GetModel(ctx, "bob", m.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		list, err := s.ListModels(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Nil(t, list[0].Artifact)
		assert.Equal(t, "price", list[0].Name)
	})

	t.Run("prediction history pages newest first", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			p := &PredictionRecord{
				ModelID: "m1",
				Input:   []pipeline.Record{{"x": float64(i)}},
				Values:  []pipeline.Value{pipeline.NumberValue(float64(i))},
			}
			require.NoError(t, s.AppendPrediction(ctx, p))
		}
		require.NoError(t, s.AppendPrediction(ctx, &PredictionRecord{
			ModelID:    "m2",
			Input:      []pipeline.Record{{"c": "red"}},
			Values:     []pipeline.Value{pipeline.LabelValue("small")},
			Confidence: []float64{0.75},
		}))

		first, err := s.ListPredictions(ctx, "m1", Page{Number: 1, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, first.Total)
		assert.Equal(t, 3, first.Pages)
		assert.Equal(t, 1, first.Current)
		require.Len(t, first.Items, 2)
		assert.Equal(t, 4.0, first.Items[0].Values[0].Float())
		assert.Equal(t, 3.0, first.Items[1].Values[0].Float())
		assert.Nil(t, first.Items[0].Confidence)

		last, err := s.ListPredictions(ctx, "m1", Page{Number: 3, Size: 2})
		require.NoError(t, err)
		require.Len(t, last.Items, 1)
		assert.Equal(t, 0.0, last.Items[0].Values[0].Float())

		beyond, err := s.ListPredictions(ctx, "m1", Page{Number: 9, Size: 2})
		require.NoError(t, err)
		assert.Empty(t, beyond.Items)
		assert.Equal(t, 5, beyond.Total)

		labeled, err := s.ListPredictions(ctx, "m2", Page{})
		require.NoError(t, err)
		require.Len(t, labeled.Items, 1)
		assert.True(t, labeled.Items[0].Values[0].IsLabel())
		assert.Equal(t, "small", labeled.Items[0].Values[0].Label())
		assert.Equal(t, []float64{0.75}, labeled.Items[0].Confidence)
		assert.Equal(t, "red", labeled.Items[0].Input[0]["c"])
	})

	t.Run("unknown model has empty history", func(t *testing.T) {
		s := newStore(t)
		page, err := s.ListPredictions(ctx, "nothing", Page{})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
		assert.Equal(t, 0, page.Pages)
		assert.Empty(t, page.Items)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStore_CopiesOnSave(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("a\n1\n")
	d := &DatasetRecord{OwnerID: "o", Data: data, Columns: []string{"a"}}
	require.NoError(t, s.SaveDataset(context.Background(), d))
	data[0] = 'z'

	got, err := s.GetDataset(context.Background(), "o", d.ID)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), got.Data[0])
}

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		in   Page
		want Page
	}{
		{Page{}, Page{Number: 1, Size: DefaultPageSize}},
		{Page{Number: -2, Size: 3}, Page{Number: 1, Size: 3}},
		{Page{Number: 4, Size: 25}, Page{Number: 4, Size: 25}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%+v", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.normalize())
		})
	}
}

// TABML_TEST_DATABASE_URL が設定されている場合のみ実行する
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TABML_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TABML_TEST_DATABASE_URL not set")
	}
	runStoreSuite(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewPostgresStore(ctx, dsn)
		require.NoError(t, err)
		_, err = s.db.ExecContext(ctx, `TRUNCATE tabml_datasets, tabml_models, tabml_predictions`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestNewPostgresStore_RequiresURL(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "")
	assert.Error(t, err)

	_, err = NewPostgresStoreWithDB(context.Background(), nil)
	assert.Error(t, err)
}
