/*
Package pipeline turns uploaded tabular data into a trained model and replays
the same preprocessing when that model is asked for predictions.

Training produces two values that always travel together: a Contract, which
freezes the feature order and the ordinal encoding of every categorical
feature, and an Artifact, which wraps the fitted estimator. Both carry the id
of the training run that created them and Predict refuses a pair whose ids
differ.

	res, err := pipeline.TrainModel(raw, "species", "random_forest", nil)
	if err != nil {
		return err
	}
	out, err := pipeline.Predict(res.Artifact, res.Contract, pipeline.Record{
		"petal_length": 1.4,
		"color":        "white",
	})

Contracts and artifacts are immutable once built and may be shared by any
number of goroutines.
*/
package pipeline
