package tree

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/core/parallel"
)

// node is one entry of a flattened tree. Children are indices into the node
// slice; leaves have Feature == -1.
type node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64 // class distribution or [mean]
	NSamples  int
	Impurity  float64
}

// flatTree is the fitted structure shared by classifier and regressor.
type flatTree struct {
	Nodes       []node
	Depth       int
	NLeaves     int
	Importances []float64
}

// leafFor walks from the root to the leaf that row i of X falls into.
func (t *flatTree) leafFor(X mat.Matrix, i int) *node {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		if X.At(i, n.Feature) <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n
}

func (t *flatTree) valid(nFeatures, valueLen int) bool {
	if len(t.Nodes) == 0 || len(t.Importances) != nFeatures {
		return false
	}
	for _, n := range t.Nodes {
		if n.Feature >= nFeatures || len(n.Value) != valueLen {
			return false
		}
		if n.Feature >= 0 && (n.Left <= 0 || n.Right <= 0 || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes)) {
			return false
		}
	}
	return true
}

// splitter evaluates the impurity of candidate splits for one target type.
type splitter interface {
	value(idx []int) []float64
	impurity(idx []int) float64
	// bestSplit scans feature f and returns the threshold with the lowest
	// sample-weighted child impurity.
	bestSplit(X mat.Matrix, idx []int, f, minLeaf int) splitResult
}

type splitResult struct {
	ok        bool
	feature   int
	threshold float64
	score     float64
}

// sortedByFeature returns a copy of idx ordered by X[:, f].
func sortedByFeature(X mat.Matrix, idx []int, f int) []int {
	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.SliceStable(sorted, func(a, b int) bool {
		return X.At(sorted[a], f) < X.At(sorted[b], f)
	})
	return sorted
}

type builder struct {
	p         params
	X         mat.Matrix
	nFeatures int
	s         splitter
	rng       *rand.Rand
	tree      flatTree
}

func newBuilder(p params, X mat.Matrix, s splitter) *builder {
	_, nFeatures := X.Dims()
	return &builder{
		p:         p,
		X:         X,
		nFeatures: nFeatures,
		s:         s,
		rng:       p.rng(),
		tree:      flatTree{Importances: make([]float64, nFeatures)},
	}
}

func (b *builder) fit(idx []int) flatTree {
	b.grow(idx, 0)

	total := 0.0
	for _, v := range b.tree.Importances {
		total += v
	}
	if total > 0 {
		for j := range b.tree.Importances {
			b.tree.Importances[j] /= total
		}
	}
	return b.tree
}

func (b *builder) grow(idx []int, depth int) int {
	id := len(b.tree.Nodes)
	imp := b.s.impurity(idx)
	b.tree.Nodes = append(b.tree.Nodes, node{
		Feature:  -1,
		Value:    b.s.value(idx),
		NSamples: len(idx),
		Impurity: imp,
	})

	best := b.findSplit(idx, imp, depth)
	if !best.ok {
		b.tree.NLeaves++
		if depth > b.tree.Depth {
			b.tree.Depth = depth
		}
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X.At(i, best.feature) <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.tree.Importances[best.feature] += float64(len(idx)) * (imp - best.score)

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	n := &b.tree.Nodes[id]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = l
	n.Right = r
	return id
}

func (b *builder) findSplit(idx []int, imp float64, depth int) splitResult {
	n := len(idx)
	if imp <= 1e-12 || n < b.p.minSamplesSplit || n < 2*b.p.minSamplesLeaf {
		return splitResult{}
	}
	if b.p.maxDepth >= 0 && depth >= b.p.maxDepth {
		return splitResult{}
	}

	features := b.candidateFeatures()
	results := make([]splitResult, len(features))
	parallel.ParallelizeWithThreshold(len(features), 16, func(start, end int) {
		for k := start; k < end; k++ {
			results[k] = b.s.bestSplit(b.X, idx, features[k], b.p.minSamplesLeaf)
		}
	})

	// reduce in candidate order so ties resolve the same way on every run
	var best splitResult
	for _, r := range results {
		if r.ok && (!best.ok || r.score < best.score) {
			best = r
		}
	}
	return best
}

func (b *builder) candidateFeatures() []int {
	if b.p.maxFeatures <= 0 || b.p.maxFeatures >= b.nFeatures {
		all := make([]int, b.nFeatures)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return b.rng.Perm(b.nFeatures)[:b.p.maxFeatures]
}

// classSplitter scores splits by Gini impurity or entropy of class counts.
type classSplitter struct {
	y        []int
	nClasses int
	entropy  bool
}

func (c *classSplitter) counts(idx []int) []float64 {
	counts := make([]float64, c.nClasses)
	for _, i := range idx {
		counts[c.y[i]]++
	}
	return counts
}

func (c *classSplitter) value(idx []int) []float64 {
	counts := c.counts(idx)
	for k := range counts {
		counts[k] /= float64(len(idx))
	}
	return counts
}

func (c *classSplitter) impurity(idx []int) float64 {
	return c.impurityOf(c.counts(idx), float64(len(idx)))
}

func (c *classSplitter) impurityOf(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	if c.entropy {
		h := 0.0
		for _, cnt := range counts {
			if cnt > 0 {
				p := cnt / n
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, cnt := range counts {
		p := cnt / n
		g -= p * p
	}
	return g
}

func (c *classSplitter) bestSplit(X mat.Matrix, idx []int, f, minLeaf int) splitResult {
	sorted := sortedByFeature(X, idx, f)
	n := len(sorted)
	left := make([]float64, c.nClasses)
	right := c.counts(sorted)

	best := splitResult{feature: f}
	for k := 0; k < n-1; k++ {
		cls := c.y[sorted[k]]
		left[cls]++
		right[cls]--

		nLeft := k + 1
		nRight := n - nLeft
		if nLeft < minLeaf || nRight < minLeaf {
			continue
		}
		v, next := X.At(sorted[k], f), X.At(sorted[k+1], f)
		if v == next {
			continue
		}
		score := (float64(nLeft)*c.impurityOf(left, float64(nLeft)) +
			float64(nRight)*c.impurityOf(right, float64(nRight))) / float64(n)
		if !best.ok || score < best.score {
			best = splitResult{ok: true, feature: f, threshold: (v + next) / 2, score: score}
		}
	}
	return best
}

// regSplitter scores splits by the variance (mean squared error) of the target.
type regSplitter struct {
	y []float64
}

func (r *regSplitter) value(idx []int) []float64 {
	sum := 0.0
	for _, i := range idx {
		sum += r.y[i]
	}
	return []float64{sum / float64(len(idx))}
}

func (r *regSplitter) impurity(idx []int) float64 {
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += r.y[i]
		sumSq += r.y[i] * r.y[i]
	}
	return variance(sum, sumSq, float64(len(idx)))
}

func variance(sum, sumSq, n float64) float64 {
	if n == 0 {
		return 0
	}
	mean := sum / n
	return math.Max(sumSq/n-mean*mean, 0)
}

func (r *regSplitter) bestSplit(X mat.Matrix, idx []int, f, minLeaf int) splitResult {
	sorted := sortedByFeature(X, idx, f)
	n := len(sorted)
	totalSum, totalSq := 0.0, 0.0
	for _, i := range sorted {
		totalSum += r.y[i]
		totalSq += r.y[i] * r.y[i]
	}

	best := splitResult{feature: f}
	leftSum, leftSq := 0.0, 0.0
	for k := 0; k < n-1; k++ {
		yi := r.y[sorted[k]]
		leftSum += yi
		leftSq += yi * yi

		nLeft := k + 1
		nRight := n - nLeft
		if nLeft < minLeaf || nRight < minLeaf {
			continue
		}
		v, next := X.At(sorted[k], f), X.At(sorted[k+1], f)
		if v == next {
			continue
		}
		score := (float64(nLeft)*variance(leftSum, leftSq, float64(nLeft)) +
			float64(nRight)*variance(totalSum-leftSum, totalSq-leftSq, float64(nRight))) / float64(n)
		if !best.ok || score < best.score {
			best = splitResult{ok: true, feature: f, threshold: (v + next) / 2, score: score}
		}
	}
	return best
}
