package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pipeline"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
	"github.com/YuminosukeSato/tabml/report"
	"github.com/YuminosukeSato/tabml/service"
)

// モデルディレクトリ内のファイル名
const (
	contractFile = "contract.json"
	artifactFile = "model.bin"
)

func runPreview(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("preview", e)
	data := fs.String("data", "", "CSV file")
	n := fs.Int("n", e.cfg.Limits.PreviewRows, "rows to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "data"); err != nil {
		return err
	}
	table, err := loadTable(e, *data)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, dataset.Preview(table, *n))
}

func runTrain(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("train", e)
	data := fs.String("data", "", "CSV file")
	target := fs.String("target", "", "target column")
	algorithm := fs.String("algorithm", "", "one of linear_regression, logistic_regression, svm, decision_tree, random_forest")
	drop := fs.String("drop", "", "comma-separated columns to exclude")
	out := fs.String("out", "", "model directory to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "data", "target", "algorithm", "out"); err != nil {
		return err
	}
	raw, err := readInput(e, *data)
	if err != nil {
		return err
	}
	res, err := pipeline.TrainModel(raw, *target, *algorithm, pipeline.ParseColumnList(*drop))
	if err != nil {
		return err
	}
	if err := saveModelDir(*out, res.Contract, res.Artifact); err != nil {
		return err
	}
	e.logger.Info("model written", log.RunIDKey, res.Contract.RunID, "path", *out)
	return writeJSON(e.stdout, service.Describe(res.Contract, res.Artifact))
}

func runPredict(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("predict", e)
	dir := fs.String("model", "", "model directory")
	input := fs.String("input", "", "JSON file with a record or an array of records")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "model", "input"); err != nil {
		return err
	}
	c, a, err := loadModelDir(*dir)
	if err != nil {
		return err
	}
	records, err := readRecords(e, *input)
	if err != nil {
		return err
	}
	out, err := pipeline.Predict(a, c, records...)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, out)
}

func runInfo(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("info", e)
	dir := fs.String("model", "", "model directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "model"); err != nil {
		return err
	}
	c, a, err := loadModelDir(*dir)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, service.Describe(c, a))
}

// chart は学習時と同じ CSV からエンコード済みテーブルを作り直して描画する。
func runChart(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("chart", e)
	data := fs.String("data", "", "CSV file the model was trained on")
	dir := fs.String("model", "", "model directory")
	out := fs.String("out", "", "PNG file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "data", "model", "out"); err != nil {
		return err
	}
	c, a, err := loadModelDir(*dir)
	if err != nil {
		return err
	}
	table, err := loadTable(e, *data)
	if err != nil {
		return err
	}
	encoded, err := pipeline.Reencode(c, table)
	if err != nil {
		return err
	}
	png, err := report.TrainingChart(a, encoded)
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(*out, png, 0o644), "write chart")
}

func readInput(e *env, path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "read data")
	}
	if limit := e.cfg.Limits.MaxUploadBytes; limit > 0 && info.Size() > limit {
		return nil, errors.Newf("%s is %d bytes, above the %d byte limit", path, info.Size(), limit)
	}
	raw, err := os.ReadFile(path)
	return raw, errors.Wrap(err, "read data")
}

func loadTable(e *env, path string) (*dataset.Table, error) {
	raw, err := readInput(e, path)
	if err != nil {
		return nil, err
	}
	return pipeline.Ingest(raw)
}

// readRecords accepts a single JSON object or an array of objects. Numbers
// are kept as json.Number so integers survive unchanged.
func readRecords(e *env, path string) ([]pipeline.Record, error) {
	raw, err := readInput(e, path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if len(raw) > 0 && raw[0] == '{' {
		var r pipeline.Record
		if err := dec.Decode(&r); err != nil {
			return nil, errors.Wrap(err, "decode records")
		}
		return []pipeline.Record{r}, nil
	}
	var records []pipeline.Record
	if err := dec.Decode(&records); err != nil {
		return nil, errors.Wrap(err, "decode records")
	}
	return records, nil
}

func saveModelDir(dir string, c *pipeline.Contract, a *pipeline.Artifact) error {
	contract, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode contract")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create model directory")
	}
	if err := os.WriteFile(filepath.Join(dir, contractFile), contract, 0o644); err != nil {
		return errors.Wrap(err, "write contract")
	}
	f, err := os.Create(filepath.Join(dir, artifactFile))
	if err != nil {
		return errors.Wrap(err, "write artifact")
	}
	if err := model.SaveModelToWriter(a, f); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "write artifact")
}

func loadModelDir(dir string) (*pipeline.Contract, *pipeline.Artifact, error) {
	raw, err := os.ReadFile(filepath.Join(dir, contractFile))
	if err != nil {
		return nil, nil, errors.Wrap(err, "read contract")
	}
	c, err := pipeline.UnmarshalContract(raw)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(dir, artifactFile))
	if err != nil {
		return nil, nil, errors.Wrap(err, "read artifact")
	}
	defer f.Close()
	a := new(pipeline.Artifact)
	if err := model.LoadModelFromReader(a, f); err != nil {
		return nil, nil, err
	}
	return c, a, nil
}
