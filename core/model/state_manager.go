// Package model defines the estimator interfaces and the shared fitted-state bookkeeping.
package model

import (
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// fitShape は学習時に観測した形状。fitted になるまで公開しない。
type fitShape struct {
	fitted    bool
	nFeatures int
	nSamples  int
}

// StateManager tracks whether an estimator has been fitted and the shape it
// was fitted on. It is safe for concurrent use; predictions running on
// several goroutines only read it.
type StateManager struct {
	shape atomic.Pointer[fitShape]
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	s := &StateManager{}
	s.shape.Store(&fitShape{})
	return s
}

func (s *StateManager) load() fitShape {
	if p := s.shape.Load(); p != nil {
		return *p
	}
	return fitShape{}
}

func (s *StateManager) update(fn func(*fitShape)) {
	for {
		old := s.shape.Load()
		next := fitShape{}
		if old != nil {
			next = *old
		}
		fn(&next)
		if s.shape.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (s *StateManager) IsFitted() bool {
	return s.load().fitted
}

func (s *StateManager) SetFitted() {
	s.update(func(f *fitShape) { f.fitted = true })
}

// Reset forgets the fit entirely.
func (s *StateManager) Reset() {
	s.shape.Store(&fitShape{})
}

// SetDimensions records the training shape. Fit calls it just before SetFitted.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.update(func(f *fitShape) {
		f.nFeatures = nFeatures
		f.nSamples = nSamples
	})
}

func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	f := s.load()
	return f.nFeatures, f.nSamples
}

// RequireFitted returns a NotFittedError naming the model and method when unfitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckPredictInput verifies that the model is fitted and X has the training feature count.
func (s *StateManager) CheckPredictInput(modelName, method string, X mat.Matrix) error {
	f := s.load()
	if !f.fitted {
		return errors.NewNotFittedError(modelName, method)
	}
	if _, c := X.Dims(); c != f.nFeatures {
		return errors.NewDimensionError(modelName+"."+method, f.nFeatures, c, 1)
	}
	return nil
}

// Restore marks a decoded model as fitted with its persisted shape in one step.
func (s *StateManager) Restore(nFeatures, nSamples int) {
	s.shape.Store(&fitShape{fitted: true, nFeatures: nFeatures, nSamples: nSamples})
}
