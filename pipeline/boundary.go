package pipeline

import (
	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

// TrainResult is the contract and artifact of one training run.
type TrainResult struct {
	Contract *Contract
	Artifact *Artifact
	Encoded  *EncodedTable
}

// Ingest parses uploaded bytes into a table.
func Ingest(raw []byte) (*dataset.Table, error) {
	t, err := dataset.Load(raw)
	if err != nil {
		log.GetLoggerWithName("pipeline").Warn("ingest rejected", err,
			log.OperationKey, log.OperationIngest,
			log.DataSizeKey, len(raw),
		)
		return nil, err
	}
	return t, nil
}

// TrainModel runs the whole training path on uploaded bytes: the algorithm
// is validated first, then the bytes are loaded, the contract built and the
// estimator fitted.
func TrainModel(raw []byte, target, algorithm string, drop []string) (*TrainResult, error) {
	id, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	table, err := Ingest(raw)
	if err != nil {
		return nil, err
	}
	contract, encoded, err := Build(table, target, drop)
	if err != nil {
		return nil, err
	}
	artifact, err := Train(encoded, target, id)
	if err != nil {
		return nil, err
	}
	return &TrainResult{Contract: contract, Artifact: artifact, Encoded: encoded}, nil
}
