package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/tabml/pipeline"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/service"
	"github.com/YuminosukeSato/tabml/storage"
)

// errNoDatabase is returned by store commands when no database is configured.
var errNoDatabase = errors.New("store commands need database.url or DATABASE_URL")

// openStore is replaced in tests.
var openStore = func(ctx context.Context, e *env) (storage.Store, error) {
	if e.cfg.Database.URL == "" {
		return nil, errNoDatabase
	}
	return storage.NewPostgresStore(ctx, e.cfg.Database.URL)
}

// withService opens the store, runs fn and closes the store.
func withService(ctx context.Context, e *env, fn func(*service.Service) error) error {
	store, err := openStore(ctx, e)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(service.New(store, e.logger, e.cfg))
}

func runUpload(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("upload", e)
	owner := fs.String("owner", "", "owner id")
	data := fs.String("data", "", "CSV file")
	name := fs.String("name", "", "dataset name (defaults to the file name)")
	description := fs.String("description", "", "dataset description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "owner", "data"); err != nil {
		return err
	}
	raw, err := os.ReadFile(*data)
	if err != nil {
		return errors.Wrap(err, "read data")
	}
	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(*data), filepath.Ext(*data))
	}
	return withService(ctx, e, func(s *service.Service) error {
		rec, err := s.UploadDataset(ctx, *owner, *name, *description, raw)
		if err != nil {
			return err
		}
		rec.Data = nil
		return writeJSON(e.stdout, rec)
	})
}

func runDatasets(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("datasets", e)
	owner := fs.String("owner", "", "owner id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "owner"); err != nil {
		return err
	}
	return withService(ctx, e, func(s *service.Service) error {
		list, err := s.ListDatasets(ctx, *owner)
		if err != nil {
			return err
		}
		return writeJSON(e.stdout, list)
	})
}

func runFit(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("fit", e)
	owner := fs.String("owner", "", "owner id")
	req := service.TrainRequest{}
	fs.StringVar(&req.DatasetID, "dataset", "", "stored dataset id")
	fs.StringVar(&req.Target, "target", "", "target column")
	fs.StringVar(&req.Algorithm, "algorithm", "", "training algorithm")
	fs.StringVar(&req.Name, "name", "", "model name")
	fs.StringVar(&req.Description, "description", "", "model description")
	drop := fs.String("drop", "", "comma-separated columns to exclude")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "owner", "dataset", "target", "algorithm"); err != nil {
		return err
	}
	req.Drop = pipeline.ParseColumnList(*drop)
	return withService(ctx, e, func(s *service.Service) error {
		info, err := s.TrainModel(ctx, *owner, req)
		if err != nil {
			return err
		}
		return writeJSON(e.stdout, info)
	})
}

func runModels(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("models", e)
	owner := fs.String("owner", "", "owner id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "owner"); err != nil {
		return err
	}
	return withService(ctx, e, func(s *service.Service) error {
		list, err := s.ListModels(ctx, *owner)
		if err != nil {
			return err
		}
		return writeJSON(e.stdout, list)
	})
}

func runScore(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("score", e)
	owner := fs.String("owner", "", "owner id")
	model := fs.String("model", "", "stored model id")
	input := fs.String("input", "", "JSON file with a record or an array of records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "owner", "model", "input"); err != nil {
		return err
	}
	records, err := readRecords(e, *input)
	if err != nil {
		return err
	}
	return withService(ctx, e, func(s *service.Service) error {
		out, err := s.Predict(ctx, *owner, *model, records)
		if err != nil {
			return err
		}
		return writeJSON(e.stdout, out)
	})
}

func runHistory(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("history", e)
	owner := fs.String("owner", "", "owner id")
	model := fs.String("model", "", "stored model id")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "owner", "model"); err != nil {
		return err
	}
	return withService(ctx, e, func(s *service.Service) error {
		p, err := s.PredictionHistory(ctx, *owner, *model, *page)
		if err != nil {
			return err
		}
		return writeJSON(e.stdout, p)
	})
}
