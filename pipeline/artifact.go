package pipeline

import (
	"bytes"
	"time"

	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// artifactMagic prefixes every serialized artifact.
var artifactMagic = []byte("TABMLART\x01")

const artifactVersion = 1

var _ model.Persistable = (*Artifact)(nil)

// Artifact is a fitted estimator together with what is needed to interpret
// its output. It is never modified after training.
type Artifact struct {
	runID     string
	algorithm AlgorithmID
	kind      TargetKind
	classes   []string
	nFeatures int
	metrics   map[string]float64
	createdAt time.Time
	estimator model.PersistableEstimator
}

// RunID returns the training run shared with the contract.
func (a *Artifact) RunID() string { return a.runID }

// Algorithm returns the algorithm used for training.
func (a *Artifact) Algorithm() AlgorithmID { return a.algorithm }

// TargetKind returns the dispatched problem kind.
func (a *Artifact) TargetKind() TargetKind { return a.kind }

// Classes returns the class labels by index; nil for regression.
func (a *Artifact) Classes() []string { return append([]string(nil), a.classes...) }

// NumFeatures returns the width of the feature vectors the estimator expects.
func (a *Artifact) NumFeatures() int { return a.nFeatures }

// Metrics returns the scores measured on the training set.
func (a *Artifact) Metrics() map[string]float64 {
	out := make(map[string]float64, len(a.metrics))
	for k, v := range a.metrics {
		out[k] = v
	}
	return out
}

// CreatedAt returns when training finished.
func (a *Artifact) CreatedAt() time.Time { return a.createdAt }

// HasConfidence reports whether predictions carry a confidence score.
func (a *Artifact) HasConfidence() bool {
	_, ok := a.estimator.(model.ProbabilityPredictor)
	return ok && a.kind == Classification
}

type artifactEnvelope struct {
	Version   int
	RunID     string
	Algorithm string
	Kind      string
	Classes   []string
	NFeatures int
	Metrics   map[string]float64
	CreatedAt time.Time
	Estimator []byte
}

// MarshalBinary encodes the artifact. The estimator payload is produced by the
// estimator itself and is opaque to everything else.
func (a *Artifact) MarshalBinary() ([]byte, error) {
	payload, err := a.estimator.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encode estimator")
	}
	body, err := model.EncodeState(artifactEnvelope{
		Version:   artifactVersion,
		RunID:     a.runID,
		Algorithm: string(a.algorithm),
		Kind:      string(a.kind),
		Classes:   a.classes,
		NFeatures: a.nFeatures,
		Metrics:   a.metrics,
		CreatedAt: a.createdAt,
		Estimator: payload,
	})
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), artifactMagic...), body...), nil
}

// UnmarshalArtifact decodes an artifact written by MarshalBinary.
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	a := new(Artifact)
	if err := a.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return a, nil
}

// UnmarshalBinary restores an artifact into a zero Artifact.
func (a *Artifact) UnmarshalBinary(data []byte) error {
	restored, err := decodeArtifact(data)
	if err != nil {
		return err
	}
	*a = *restored
	return nil
}

func decodeArtifact(data []byte) (*Artifact, error) {
	if !bytes.HasPrefix(data, artifactMagic) {
		return nil, errors.NewModelError("UnmarshalArtifact", "not a tabml artifact", nil)
	}
	var env artifactEnvelope
	if err := model.DecodeState(data[len(artifactMagic):], &env); err != nil {
		return nil, errors.NewModelError("UnmarshalArtifact", "corrupt artifact", err)
	}
	if env.Version != artifactVersion {
		return nil, errors.NewModelError("UnmarshalArtifact", "unsupported artifact version", nil)
	}

	algorithm, err := ParseAlgorithm(env.Algorithm)
	if err != nil {
		return nil, err
	}
	kind := TargetKind(env.Kind)
	if kind == Classification && len(env.Classes) < 2 {
		return nil, errors.NewModelError("UnmarshalArtifact", "classification artifact without class labels", nil)
	}
	est, err := newEstimator(algorithm, kind)
	if err != nil {
		return nil, err
	}
	if err := est.UnmarshalBinary(env.Estimator); err != nil {
		return nil, errors.NewModelError("UnmarshalArtifact", "corrupt estimator payload", err)
	}

	return &Artifact{
		runID:     env.RunID,
		algorithm: algorithm,
		kind:      kind,
		classes:   env.Classes,
		nFeatures: env.NFeatures,
		metrics:   env.Metrics,
		createdAt: env.CreatedAt,
		estimator: est,
	}, nil
}
