package pipeline

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/metrics"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
	"github.com/YuminosukeSato/tabml/preprocessing"
)

// Train fits the estimator selected by algorithm and the target's kind.
//
// Dispatch problems are reported before any fitting. Every estimator fault,
// including a panic, becomes a TrainingFailedError and no artifact is returned.
func Train(encoded *EncodedTable, target string, algorithm AlgorithmID) (*Artifact, error) {
	logger := log.GetLoggerWithName("pipeline").With(
		log.AlgorithmKey, string(algorithm),
		log.RunIDKey, encoded.runID,
		log.OperationKey, log.OperationFit,
	)

	if encoded.target.Name() != target {
		return nil, errors.NewTargetNotFoundError(target, []string{encoded.target.Name()})
	}
	kind := TargetKindOf(encoded.target)
	est, err := newEstimator(algorithm, kind)
	if err != nil {
		logger.Warn("dispatch rejected", err, log.TargetKindKey, string(kind))
		return nil, err
	}

	y, classes, err := encodeTarget(encoded.target, kind)
	if err != nil {
		logger.Error("training failed", err)
		return nil, errors.NewTrainingFailedError(string(algorithm), err)
	}

	logger.Info("training started",
		log.TargetKey, target,
		log.TargetKindKey, string(kind),
		log.SamplesKey, encoded.NumRows(),
		log.FeaturesKey, len(encoded.features),
		log.RandomSeedKey, Seed,
	)
	start := time.Now()

	scores, err := fitAndScore(est, encoded.x, y, kind)
	if err != nil {
		logger.Error("training failed", err)
		return nil, errors.NewTrainingFailedError(string(algorithm), err)
	}

	logger.Info("training finished",
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.ClassesKey, len(classes),
		"metrics", scores,
	)

	return &Artifact{
		runID:     encoded.runID,
		algorithm: algorithm,
		kind:      kind,
		classes:   classes,
		nFeatures: len(encoded.features),
		metrics:   scores,
		createdAt: time.Now().UTC(),
		estimator: est,
	}, nil
}

// encodeTarget maps class labels to indices in first-occurrence order.
func encodeTarget(c *dataset.Column, kind TargetKind) (*mat.Dense, []string, error) {
	if kind == Regression {
		nums := c.Numbers()
		return mat.NewDense(len(nums), 1, nums), nil, nil
	}
	enc := preprocessing.NewOrdinalEncoder(c.Name())
	codes, err := enc.FitTransform(c.Values())
	if err != nil {
		return nil, nil, err
	}
	classes := enc.Categories()
	if len(classes) < 2 {
		return nil, nil, errors.Wrapf(errors.ErrSingleClass, "target %q has %d distinct value", c.Name(), len(classes))
	}
	return mat.NewDense(len(codes), 1, codes), classes, nil
}

func fitAndScore(est model.Estimator, X, y *mat.Dense, kind TargetKind) (scores map[string]float64, err error) {
	defer errors.Recover(&err, "pipeline.Train")

	if err := est.Fit(X, y); err != nil {
		return nil, err
	}
	pred, err := est.Predict(X)
	if err != nil {
		return nil, err
	}
	if kind == Classification {
		return metrics.ClassificationScores(y, pred)
	}
	return metrics.RegressionScores(y, pred)
}
