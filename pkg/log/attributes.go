package log

// Attribute keys follow a dotted naming convention so logs can be filtered by prefix.
const (
	ModelNameKey  = "model.name"
	ModelIDKey    = "model.id"
	AlgorithmKey  = "model.algorithm"
	RunIDKey      = "model.run_id"
	OperationKey  = "ml.operation"
	ComponentKey  = "ml.component"
	PhaseKey      = "ml.phase"
	RandomSeedKey = "config.random_seed"
)

// Data shape.
const (
	SamplesKey    = "data.samples"
	FeaturesKey   = "data.features"
	TargetKey     = "data.target"
	TargetKindKey = "data.target_kind"
	ClassesKey    = "data.classes"
	DatasetIDKey  = "dataset.id"
	DataSizeKey   = "data.size_bytes"
)

// Performance and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	R2ScoreKey    = "metrics.r2_score"
	MSEKey        = "metrics.mse"
	IterationKey  = "training.iteration"
)

// Predictions.
const (
	PredsKey      = "preds.count"
	ConfidenceKey = "preds.confidence"
)

// Errors and ownership.
const (
	ErrorTypeKey     = "error.type"
	ErrorCategoryKey = "error.category"
	OwnerKey         = "owner.id"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationIngest    = "ingest"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
