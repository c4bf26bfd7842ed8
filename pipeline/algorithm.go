package pipeline

import (
	"github.com/YuminosukeSato/tabml/core/model"
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/sklearn/ensemble"
	"github.com/YuminosukeSato/tabml/sklearn/linear_model"
	"github.com/YuminosukeSato/tabml/sklearn/svm"
	"github.com/YuminosukeSato/tabml/sklearn/tree"
)

// AlgorithmID names a supported training algorithm.
type AlgorithmID string

const (
	LinearRegression   AlgorithmID = "linear_regression"
	LogisticRegression AlgorithmID = "logistic_regression"
	SVM                AlgorithmID = "svm"
	DecisionTree       AlgorithmID = "decision_tree"
	RandomForest       AlgorithmID = "random_forest"
)

// Seed is the random state of every estimator with stochastic internals.
const Seed = 42

// ForestSize is the number of trees in a random_forest model.
const ForestSize = 100

// TargetKind is the kind of learning problem inferred from the target column.
type TargetKind string

const (
	Classification TargetKind = "classification"
	Regression     TargetKind = "regression"
)

// TargetKindOf infers the problem from a target column: categorical targets
// are classified, numeric ones regressed.
func TargetKindOf(c *dataset.Column) TargetKind {
	if c.Kind() == dataset.Categorical {
		return Classification
	}
	return Regression
}

// Capability is what an algorithm can be trained for.
type Capability int

const (
	RegressionOnly Capability = iota + 1
	ClassificationOnly
	Both
)

func (c Capability) String() string {
	switch c {
	case RegressionOnly:
		return "regression-only"
	case ClassificationOnly:
		return "classification-only"
	case Both:
		return "classification and regression"
	}
	return "unsupported"
}

// Supports reports whether the capability covers kind.
func (c Capability) Supports(kind TargetKind) bool {
	switch c {
	case Both:
		return kind == Classification || kind == Regression
	case RegressionOnly:
		return kind == Regression
	case ClassificationOnly:
		return kind == Classification
	}
	return false
}

var capabilities = map[AlgorithmID]Capability{
	LinearRegression:   RegressionOnly,
	LogisticRegression: ClassificationOnly,
	SVM:                ClassificationOnly,
	DecisionTree:       Both,
	RandomForest:       Both,
}

// Algorithms lists the supported identifiers in a fixed order.
func Algorithms() []AlgorithmID {
	return []AlgorithmID{LinearRegression, LogisticRegression, SVM, DecisionTree, RandomForest}
}

func supportedNames() []string {
	ids := Algorithms()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return names
}

// ParseAlgorithm validates an algorithm identifier.
func ParseAlgorithm(s string) (AlgorithmID, error) {
	id := AlgorithmID(s)
	if _, ok := capabilities[id]; !ok {
		return "", errors.NewUnknownAlgorithmError(s, supportedNames())
	}
	return id, nil
}

// Capability returns the capability of a known algorithm.
func (a AlgorithmID) Capability() (Capability, error) {
	c, ok := capabilities[a]
	if !ok {
		return 0, errors.NewUnknownAlgorithmError(string(a), supportedNames())
	}
	return c, nil
}

func (a AlgorithmID) String() string { return string(a) }

// checkDispatch fails before any fitting when the algorithm cannot model kind.
func checkDispatch(a AlgorithmID, kind TargetKind) error {
	c, err := a.Capability()
	if err != nil {
		return err
	}
	if !c.Supports(kind) {
		return errors.NewIncompatibleTargetError(string(a), string(kind), c.String())
	}
	return nil
}

// newEstimator returns an unfitted estimator for a dispatched pair.
func newEstimator(a AlgorithmID, kind TargetKind) (model.PersistableEstimator, error) {
	if err := checkDispatch(a, kind); err != nil {
		return nil, err
	}
	switch a {
	case LinearRegression:
		return linear_model.NewLinearRegression(), nil
	case LogisticRegression:
		return linear_model.NewLogisticRegression(linear_model.WithLRRandomState(Seed)), nil
	case SVM:
		return svm.NewSVC(svm.WithRandomState(Seed)), nil
	case DecisionTree:
		if kind == Classification {
			return tree.NewDecisionTreeClassifier(tree.WithRandomState(Seed)), nil
		}
		return tree.NewDecisionTreeRegressor(tree.WithRandomState(Seed)), nil
	case RandomForest:
		opts := []ensemble.Option{ensemble.WithNEstimators(ForestSize), ensemble.WithRandomState(Seed)}
		if kind == Classification {
			return ensemble.NewRandomForestClassifier(opts...), nil
		}
		return ensemble.NewRandomForestRegressor(opts...), nil
	}
	return nil, errors.NewUnknownAlgorithmError(string(a), supportedNames())
}
