// Package ensemble はバギングした決定木によるランダムフォレストを提供します。
package ensemble

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/parallel"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/sklearn/tree"
)

// DefaultNEstimators is the number of trees grown when no option overrides it.
const DefaultNEstimators = 100

type forestParams struct {
	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0: sqrt(p) for classification, p for regression
	bootstrap       bool
	randomState     int64
}

func defaultForestParams() forestParams {
	return forestParams{
		nEstimators:     DefaultNEstimators,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
		randomState:     42,
	}
}

// Option configures a random forest.
type Option func(*forestParams)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(p *forestParams) { p.nEstimators = n } }

// WithMaxDepth limits the depth of each tree. A negative value means unlimited.
func WithMaxDepth(d int) Option { return func(p *forestParams) { p.maxDepth = d } }

// WithMinSamplesSplit sets the per-tree minimum samples to split a node.
func WithMinSamplesSplit(n int) Option { return func(p *forestParams) { p.minSamplesSplit = n } }

// WithMinSamplesLeaf sets the per-tree minimum samples in a leaf.
func WithMinSamplesLeaf(n int) Option { return func(p *forestParams) { p.minSamplesLeaf = n } }

// WithMaxFeatures sets the number of features searched at each split.
func WithMaxFeatures(k int) Option { return func(p *forestParams) { p.maxFeatures = k } }

// WithBootstrap toggles sampling rows with replacement for each tree.
func WithBootstrap(b bool) Option { return func(p *forestParams) { p.bootstrap = b } }

// WithRandomState sets the base seed. Tree i is seeded with seed+i.
func WithRandomState(seed int64) Option { return func(p *forestParams) { p.randomState = seed } }

func (p forestParams) validate() error {
	if p.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", p.nEstimators)
	}
	return nil
}

func (p forestParams) getParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.nEstimators,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"bootstrap":         p.bootstrap,
		"random_state":      p.randomState,
	}
}

// treeOptions builds the options of tree i.
func (p forestParams) treeOptions(i, maxFeatures int) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(p.maxDepth),
		tree.WithMinSamplesSplit(p.minSamplesSplit),
		tree.WithMinSamplesLeaf(p.minSamplesLeaf),
		tree.WithMaxFeatures(maxFeatures),
		tree.WithRandomState(p.randomState + int64(i)),
	}
}

// sample returns the training rows for tree i.
func (p forestParams) sample(X, y mat.Matrix, i int) (*mat.Dense, *mat.Dense) {
	rows, cols := X.Dims()
	if !p.bootstrap {
		return mat.DenseCopyOf(X), mat.DenseCopyOf(y)
	}
	rng := rand.New(rand.NewSource(p.randomState + int64(i)))
	Xs := mat.NewDense(rows, cols, nil)
	ys := mat.NewDense(rows, 1, nil)
	for r := 0; r < rows; r++ {
		src := rng.Intn(rows)
		for c := 0; c < cols; c++ {
			Xs.Set(r, c, X.At(src, c))
		}
		ys.Set(r, 0, y.At(src, 0))
	}
	return Xs, ys
}

// fitTrees fits n trees concurrently. Results are stored by index so the
// ensemble does not depend on goroutine scheduling.
func fitTrees(n int, fit func(i int) error) error {
	errs := make([]error, n)
	parallel.ParallelizeWithThreshold(n, 4, func(start, end int) {
		for i := start; i < end; i++ {
			errs[i] = fit(i)
		}
	})
	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}
	return nil
}

func sqrtFeatures(p int) int {
	k := int(math.Sqrt(float64(p)))
	if k < 1 {
		k = 1
	}
	return k
}

type forestState struct {
	Params    forestSnapshot
	NClasses  int
	Trees     [][]byte
	NFeatures int
	NSamples  int
}

type forestSnapshot struct {
	NEstimators int
	MaxDepth    int
	MaxFeatures int
	Bootstrap   bool
	RandomState int64
}

func (p forestParams) snapshot() forestSnapshot {
	return forestSnapshot{
		NEstimators: p.nEstimators,
		MaxDepth:    p.maxDepth,
		MaxFeatures: p.maxFeatures,
		Bootstrap:   p.bootstrap,
		RandomState: p.randomState,
	}
}

func (s forestSnapshot) restore(p *forestParams) {
	p.nEstimators = s.NEstimators
	p.maxDepth = s.MaxDepth
	p.maxFeatures = s.MaxFeatures
	p.bootstrap = s.Bootstrap
	p.randomState = s.RandomState
}
