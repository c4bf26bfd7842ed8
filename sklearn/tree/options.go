// Package tree implements CART decision trees for classification and regression.
package tree

import (
	"math/rand"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// params holds the hyperparameters shared by both tree estimators.
type params struct {
	criterion       string
	maxDepth        int // -1: unlimited; root is depth 0
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // <=0: every feature at every split
	randomState     int64
	nClasses        int // classifier only; 0: inferred from y
}

// Option configures a decision tree.
type Option func(*params)

// WithCriterion sets the impurity measure: "gini" or "entropy" for
// classification, "squared_error" for regression.
func WithCriterion(c string) Option {
	return func(p *params) { p.criterion = c }
}

// WithMaxDepth limits the depth of the tree. A negative value means unlimited.
func WithMaxDepth(d int) Option {
	return func(p *params) { p.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum number of samples a node needs to be split.
func WithMinSamplesSplit(n int) Option {
	return func(p *params) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each child.
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) { p.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many randomly chosen features are searched at each split.
func WithMaxFeatures(k int) Option {
	return func(p *params) { p.maxFeatures = k }
}

// WithRandomState seeds feature sampling.
func WithRandomState(seed int64) Option {
	return func(p *params) { p.randomState = seed }
}

// WithNClasses fixes the number of classes for a classifier. Ensembles use it
// so that every tree reports probabilities over the same columns even when a
// bootstrap sample misses a class.
func WithNClasses(k int) Option {
	return func(p *params) { p.nClasses = k }
}

func (p *params) validate(criteria ...string) error {
	ok := false
	for _, c := range criteria {
		if p.criterion == c {
			ok = true
		}
	}
	if !ok {
		return errors.NewValidationError("criterion", "unsupported criterion", p.criterion)
	}
	if p.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", p.minSamplesSplit)
	}
	if p.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", p.minSamplesLeaf)
	}
	return nil
}

func (p *params) rng() *rand.Rand {
	seed := p.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	return rand.New(rand.NewSource(seed))
}

func (p *params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"random_state":      p.randomState,
	}
}

func (p *params) setParams(values map[string]interface{}) error {
	for key, value := range values {
		var ok bool
		switch key {
		case "criterion":
			p.criterion, ok = value.(string)
		case "max_depth":
			p.maxDepth, ok = value.(int)
		case "min_samples_split":
			p.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			p.minSamplesLeaf, ok = value.(int)
		case "max_features":
			p.maxFeatures, ok = value.(int)
		case "random_state":
			p.randomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "wrong type", value)
		}
	}
	return nil
}
