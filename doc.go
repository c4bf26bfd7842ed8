// Package tabml trains machine learning models on uploaded tabular data and
// serves predictions from them.
//
// A training run turns CSV bytes into two halves that always travel
// together: a preprocessing contract (feature columns, target column and
// the category vocabulary of every categorical feature) and a model
// artifact (the fitted estimator plus class labels and training metrics).
// Both carry the same run id, and prediction refuses a contract paired with
// an artifact from another run.
//
// # Quick Start
//
//	res, err := pipeline.TrainModel(csvBytes, "price", "random_forest", []string{"id"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := pipeline.Predict(res.Artifact, res.Contract, pipeline.Record{
//	    "rooms": 3,
//	    "city":  "tokyo",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out.Values[0])
//
// Categorical targets are classified and numeric targets regressed. The
// supported algorithms are linear_regression, logistic_regression, svm,
// decision_tree and random_forest; asking an algorithm for a problem kind it
// cannot model is rejected before anything is fitted.
//
// # Packages
//
//   - dataset: CSV loading, column type inference and previews
//   - pipeline: contract building, replay, training dispatch and prediction
//   - sklearn/linear_model, sklearn/svm, sklearn/tree, sklearn/ensemble: estimators
//   - preprocessing: ordinal encoding of categorical values
//   - metrics: training scores (MSE, RMSE, MAE, R², accuracy)
//   - storage: dataset, model and prediction history persistence (memory or Postgres)
//   - service: owner-scoped operations over a store
//   - report: training charts rendered as PNG
//   - config: YAML and environment configuration
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//   - cmd/tabml: command line interface
//
// # Errors
//
// Every failure is a typed error from pkg/errors. errors.CategoryOf groups
// them into input, contract, dispatch and estimator faults:
//
//	var unknown *errors.UnknownCategoryError
//	if errors.As(err, &unknown) {
//	    fmt.Printf("column %s has no category %q\n", unknown.Column, unknown.Value)
//	}
package tabml
