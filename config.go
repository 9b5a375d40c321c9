package gosemchunk

import "fmt"

// StrategyName selects one of the interchangeable chunking algorithms.
type StrategyName string

// Available chunking strategies.
const (
	StrategyAdaptive     StrategyName = "adaptive"
	StrategySemantic     StrategyName = "semantic"
	StrategyHierarchical StrategyName = "hierarchical"
	StrategyContextAware StrategyName = "context_aware"
)

// DetectorWeights holds the relative weight of each boundary sub-detector.
// Sub-detector scores are normalized to [0,1] before weighting; same-position
// candidates are merged by summing their weighted scores, capped at 1.0.
type DetectorWeights struct {
	WindowSimilarity float64 `json:"window_similarity" yaml:"window_similarity"`
	CoherenceBreak   float64 `json:"coherence_break" yaml:"coherence_break"`
	TopicShift       float64 `json:"topic_shift" yaml:"topic_shift"`
	LexicalCohesion  float64 `json:"lexical_cohesion" yaml:"lexical_cohesion"`
}

// DefaultDetectorWeights returns the contractual default detector weighting.
// The values are configurable because the rationale behind them is not
// documented in the source material.
func DefaultDetectorWeights() DetectorWeights {
	return DetectorWeights{
		WindowSimilarity: 0.30,
		CoherenceBreak:   0.25,
		TopicShift:       0.30,
		LexicalCohesion:  0.15,
	}
}

// Default configuration values, applied by withDefaults for zero fields.
const (
	defaultMaxChunkSize        = 1500
	defaultMinChunkSize        = 200
	defaultOverlapSize         = 50
	defaultSemanticThreshold   = 0.65
	defaultCoherenceThreshold  = 0.6
	defaultContinuityThreshold = 0.55
	defaultWindowSize          = 3

	// The topic-shift clusterer uses its own neighborhood parameters, tuned
	// independently of SemanticThreshold: epsilon is a cosine distance, and
	// reusing 0.65 there would collapse most units into one cluster.
	defaultTopicClusterEpsilon   = 0.45
	defaultTopicClusterMinPoints = 2
)

// Config holds the configuration for a chunking call. Sizes are character
// counts; thresholds are floats in [0,1]. Zero-valued sizes and thresholds
// are replaced by package defaults before processing, except OverlapSize,
// whose zero value means no overlap.
type Config struct {
	Strategy StrategyName `json:"strategy" yaml:"strategy"`

	MaxChunkSize int `json:"max_chunk_size" yaml:"max_chunk_size"`
	MinChunkSize int `json:"min_chunk_size" yaml:"min_chunk_size"`
	OverlapSize  int `json:"overlap_size" yaml:"overlap_size"`
	// AtomicSizeCeiling bounds chunks built from atomic structural content
	// (code blocks, tables, list runs), which are allowed to exceed
	// MaxChunkSize. Defaults to twice MaxChunkSize.
	AtomicSizeCeiling int `json:"atomic_size_ceiling" yaml:"atomic_size_ceiling"`

	SemanticThreshold   float64 `json:"semantic_threshold" yaml:"semantic_threshold"`
	CoherenceThreshold  float64 `json:"coherence_threshold" yaml:"coherence_threshold"`
	ContinuityThreshold float64 `json:"continuity_threshold" yaml:"continuity_threshold"`

	// TopicClusterEpsilon is the cosine-distance neighborhood radius of the
	// density-based topic-shift clusterer. TopicClusterMinPoints is its
	// minimum neighborhood size. Both are deliberately independent of
	// SemanticThreshold.
	TopicClusterEpsilon   float64 `json:"topic_cluster_epsilon" yaml:"topic_cluster_epsilon"`
	TopicClusterMinPoints int     `json:"topic_cluster_min_points" yaml:"topic_cluster_min_points"`

	// WindowSize is the number of units considered on each side of a seam by
	// the window-similarity and lexical-cohesion detectors.
	WindowSize int             `json:"window_size" yaml:"window_size"`
	Weights    DetectorWeights `json:"detector_weights" yaml:"detector_weights"`

	ExtractEntities     bool `json:"extract_entities" yaml:"extract_entities"`
	CalculateImportance bool `json:"calculate_importance" yaml:"calculate_importance"`
	TrackContext        bool `json:"track_context" yaml:"track_context"`
	PreserveStructure   bool `json:"preserve_structure" yaml:"preserve_structure"`
	BuildGraph          bool `json:"build_graph" yaml:"build_graph"`
}

// DefaultConfig returns a configuration with sensible defaults for prose
// documents: the semantic strategy, all feature toggles on, and the
// contractual detector weights.
func DefaultConfig() Config {
	return Config{
		Strategy:              StrategySemantic,
		MaxChunkSize:          defaultMaxChunkSize,
		MinChunkSize:          defaultMinChunkSize,
		OverlapSize:           defaultOverlapSize,
		AtomicSizeCeiling:     2 * defaultMaxChunkSize,
		SemanticThreshold:     defaultSemanticThreshold,
		CoherenceThreshold:    defaultCoherenceThreshold,
		ContinuityThreshold:   defaultContinuityThreshold,
		TopicClusterEpsilon:   defaultTopicClusterEpsilon,
		TopicClusterMinPoints: defaultTopicClusterMinPoints,
		WindowSize:            defaultWindowSize,
		Weights:               DefaultDetectorWeights(),
		ExtractEntities:       true,
		CalculateImportance:   true,
		TrackContext:          true,
		PreserveStructure:     true,
	}
}

// Validate checks the configuration for contradictions. It is called before
// any unit segmentation occurs; all returned errors wrap ErrConfiguration.
func (c Config) Validate() error {
	if c.MinChunkSize > c.MaxChunkSize {
		return fmt.Errorf("%w: min_chunk_size %d exceeds max_chunk_size %d",
			ErrConfiguration, c.MinChunkSize, c.MaxChunkSize)
	}
	if c.OverlapSize >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap_size %d must be smaller than max_chunk_size %d",
			ErrConfiguration, c.OverlapSize, c.MaxChunkSize)
	}
	if c.MaxChunkSize < 0 || c.MinChunkSize < 0 || c.OverlapSize < 0 {
		return fmt.Errorf("%w: sizes must be non-negative", ErrConfiguration)
	}
	for name, v := range map[string]float64{
		"semantic_threshold":   c.SemanticThreshold,
		"coherence_threshold":  c.CoherenceThreshold,
		"continuity_threshold": c.ContinuityThreshold,
		// Epsilon is a cosine distance, bounded like the thresholds.
		"topic_cluster_epsilon": c.TopicClusterEpsilon,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrConfiguration, name, v)
		}
	}
	if c.TopicClusterMinPoints < 0 {
		return fmt.Errorf("%w: topic_cluster_min_points %d must be non-negative",
			ErrConfiguration, c.TopicClusterMinPoints)
	}
	for name, v := range map[string]float64{
		"window_similarity": c.Weights.WindowSimilarity,
		"coherence_break":   c.Weights.CoherenceBreak,
		"topic_shift":       c.Weights.TopicShift,
		"lexical_cohesion":  c.Weights.LexicalCohesion,
	} {
		if v < 0 {
			return fmt.Errorf("%w: detector weight %s %v must be non-negative", ErrConfiguration, name, v)
		}
	}
	switch c.Strategy {
	case StrategyAdaptive, StrategySemantic, StrategyHierarchical, StrategyContextAware, "":
	default:
		return fmt.Errorf("%w: strategy %q", ErrUnknownStrategy, c.Strategy)
	}
	return nil
}

// withDefaults fills zero-valued fields with package defaults. Boolean
// toggles are left as given; their zero value means off.
func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = StrategySemantic
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = defaultMaxChunkSize
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = defaultMinChunkSize
	}
	if c.AtomicSizeCeiling == 0 {
		c.AtomicSizeCeiling = 2 * c.MaxChunkSize
	}
	if c.SemanticThreshold == 0 {
		c.SemanticThreshold = defaultSemanticThreshold
	}
	if c.CoherenceThreshold == 0 {
		c.CoherenceThreshold = defaultCoherenceThreshold
	}
	if c.ContinuityThreshold == 0 {
		c.ContinuityThreshold = defaultContinuityThreshold
	}
	if c.TopicClusterEpsilon == 0 {
		c.TopicClusterEpsilon = defaultTopicClusterEpsilon
	}
	if c.TopicClusterMinPoints == 0 {
		c.TopicClusterMinPoints = defaultTopicClusterMinPoints
	}
	if c.WindowSize == 0 {
		c.WindowSize = defaultWindowSize
	}
	zero := DetectorWeights{}
	if c.Weights == zero {
		c.Weights = DefaultDetectorWeights()
	}
	return c
}
