package pipeline

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

func TestEndToEnd_RandomForestNumericTarget(t *testing.T) {
	res, err := TrainModel([]byte("feature,target\na,1\nb,0\na,1\n"), "target", "random_forest", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, res.Contract.Categories["feature"])
	row, err := Replay(res.Contract, Record{"feature": "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, row)

	out, err := Predict(res.Artifact, res.Contract, Record{"feature": "b"})
	require.NoError(t, err)
	require.Len(t, out.Values, 1)
	assert.False(t, out.Values[0].IsLabel())
	assert.Nil(t, out.Confidence)
	assert.Equal(t, Regression, res.Artifact.TargetKind())
}

func TestEndToEnd_LogisticTwoClasses(t *testing.T) {
	res, err := TrainModel([]byte(flowersCSV), "label", "logistic_regression", nil)
	require.NoError(t, err)

	records := []Record{
		{"length": 1.0, "color": "red"},
		{"length": 3.2, "color": "blue"},
		{"length": 2.0, "color": "red"},
	}
	out, err := Predict(res.Artifact, res.Contract, records...)
	require.NoError(t, err)
	require.Len(t, out.Values, 3)
	require.Len(t, out.Confidence, 3)
	for _, c := range out.Confidence {
		assert.Greater(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}
	assert.Equal(t, "small", out.Values[0].Label())
	assert.Equal(t, "large", out.Values[1].Label())
}

func TestPredict_ConfidencePresence(t *testing.T) {
	// housesCSV の note は x1 と完全に相関するので回帰では落とす
	tests := []struct {
		algorithm string
		csv       string
		target    string
		drop      []string
		record    Record
		want      bool
	}{
		{"logistic_regression", flowersCSV, "label", nil, Record{"length": 1.0, "color": "red"}, true},
		{"decision_tree", flowersCSV, "label", nil, Record{"length": 1.0, "color": "red"}, true},
		{"random_forest", flowersCSV, "label", nil, Record{"length": 1.0, "color": "red"}, true},
		{"svm", flowersCSV, "label", nil, Record{"length": 1.0, "color": "red"}, false},
		{"linear_regression", housesCSV, "y", []string{"note"}, Record{"x1": 1.0, "x2": 2.0, "city": "tokyo"}, false},
		{"decision_tree", housesCSV, "y", nil, Record{"x1": 1.0, "x2": 2.0, "city": "tokyo", "note": "a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.algorithm+"/"+tt.target, func(t *testing.T) {
			res, err := TrainModel([]byte(tt.csv), tt.target, tt.algorithm, tt.drop)
			require.NoError(t, err)
			out, err := Predict(res.Artifact, res.Contract, tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Confidence != nil)
			assert.Equal(t, tt.want, res.Artifact.HasConfidence())
		})
	}
}

func TestPredict_BatchOrder(t *testing.T) {
	res, err := TrainModel([]byte(housesCSV), "y", "linear_regression", []string{"note"})
	require.NoError(t, err)

	out, err := Predict(res.Artifact, res.Contract,
		Record{"x1": 1.0, "x2": 2.0, "city": "tokyo"},
		Record{"x1": 10.0, "x2": 0.0, "city": "osaka"},
		Record{"x1": 0.0, "x2": 10.0, "city": "kyoto"},
	)
	require.NoError(t, err)
	require.Len(t, out.Values, 3)
	assert.InDelta(t, 5.0, out.Values[0].Float(), 1e-6)
	assert.InDelta(t, 10.0, out.Values[1].Float(), 1e-6)
	assert.InDelta(t, 20.0, out.Values[2].Float(), 1e-6)
}

func TestPredict_Errors(t *testing.T) {
	res, err := TrainModel([]byte(flowersCSV), "label", "decision_tree", nil)
	require.NoError(t, err)

	_, err = Predict(res.Artifact, res.Contract, Record{"length": 1.0})
	var mf *errors.MissingFeatureError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, []string{"color"}, mf.Columns)

	_, err = Predict(res.Artifact, res.Contract, Record{"length": 1.0, "color": "green"})
	var uc *errors.UnknownCategoryError
	assert.True(t, errors.As(err, &uc))

	_, err = Predict(res.Artifact, res.Contract)
	var empty *errors.EmptyInputError
	assert.True(t, errors.As(err, &empty))

	// a missing numeric value reaches the estimator and fails there
	_, err = Predict(res.Artifact, res.Contract, Record{"length": nil, "color": "red"})
	var ie *errors.InferenceError
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, "tabml: inference failed", ie.Error())
	assert.Error(t, ie.Unwrap())

	other, err := TrainModel([]byte(flowersCSV), "label", "decision_tree", nil)
	require.NoError(t, err)
	_, err = Predict(res.Artifact, other.Contract, Record{"length": 1.0, "color": "red"})
	var cm *errors.ContractMismatchError
	require.True(t, errors.As(err, &cm))
	assert.Equal(t, other.Contract.RunID, cm.ContractRun)
	assert.Equal(t, res.Artifact.RunID(), cm.ArtifactRun)
}

func TestArtifact_RoundTrip(t *testing.T) {
	for _, id := range Algorithms() {
		t.Run(string(id), func(t *testing.T) {
			csv, target := flowersCSV, "label"
			var drop []string
			record := Record{"length": 2.9, "color": "blue"}
			if id == LinearRegression {
				csv, target, drop = housesCSV, "y", []string{"note"}
				record = Record{"x1": 2.0, "x2": 3.0, "city": "osaka"}
			}
			res, err := TrainModel([]byte(csv), target, string(id), drop)
			require.NoError(t, err)

			blob, err := res.Artifact.MarshalBinary()
			require.NoError(t, err)
			contractJSON, err := json.Marshal(res.Contract)
			require.NoError(t, err)

			artifact, err := UnmarshalArtifact(blob)
			require.NoError(t, err)
			contract, err := UnmarshalContract(contractJSON)
			require.NoError(t, err)

			assert.Equal(t, res.Artifact.RunID(), artifact.RunID())
			assert.Equal(t, res.Artifact.Algorithm(), artifact.Algorithm())
			assert.Equal(t, res.Artifact.Classes(), artifact.Classes())
			assert.Equal(t, res.Artifact.Metrics(), artifact.Metrics())
			assert.True(t, res.Artifact.CreatedAt().Equal(artifact.CreatedAt()))

			want, err := Predict(res.Artifact, res.Contract, record)
			require.NoError(t, err)
			got, err := Predict(artifact, contract, record)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestUnmarshalArtifact_Invalid(t *testing.T) {
	_, err := UnmarshalArtifact([]byte("pickle"))
	assert.Error(t, err)

	_, err = UnmarshalArtifact(append(append([]byte(nil), artifactMagic...), 0xff, 0x00))
	assert.Error(t, err)
}

func TestPredict_Concurrent(t *testing.T) {
	res, err := TrainModel([]byte(flowersCSV), "label", "random_forest", nil)
	require.NoError(t, err)
	want, err := Predict(res.Artifact, res.Contract, Record{"length": 3.0, "color": "blue"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Outcome, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Predict(res.Artifact, res.Contract, Record{"length": 3.0, "color": "blue"})
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestValue_JSON(t *testing.T) {
	out := Outcome{Values: []Value{LabelValue("cat"), NumberValue(2.5)}}
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"values":["cat",2.5],"confidence":null}`, string(data))

	var back Outcome
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, out.Values, back.Values)
	assert.Nil(t, back.Confidence)

	assert.Equal(t, "2.5", NumberValue(2.5).String())
	assert.Equal(t, "cat", LabelValue("cat").String())
	assert.Error(t, json.Unmarshal([]byte(`{"values":[true]}`), &back))
}
