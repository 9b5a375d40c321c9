package gosemchunk_test

import (
	"errors"
	"math"
	"testing"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *gosemchunk.Config)
		wantErr error
	}{
		{
			name:   "Defaults are valid",
			mutate: func(*gosemchunk.Config) {},
		},
		{
			name: "Empty strategy is valid",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.Strategy = ""
			},
		},
		{
			name: "Min above max",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.MinChunkSize = 2000
				cfg.MaxChunkSize = 1000
			},
			wantErr: gosemchunk.ErrConfiguration,
		},
		{
			name: "Overlap not below max",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.OverlapSize = cfg.MaxChunkSize
			},
			wantErr: gosemchunk.ErrConfiguration,
		},
		{
			name: "Negative overlap",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.OverlapSize = -1
			},
			wantErr: gosemchunk.ErrConfiguration,
		},
		{
			name: "Semantic threshold above one",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.SemanticThreshold = 1.5
			},
			wantErr: gosemchunk.ErrConfiguration,
		},
		{
			name: "Continuity threshold below zero",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.ContinuityThreshold = -0.1
			},
			wantErr: gosemchunk.ErrConfiguration,
		},
		{
			name: "Negative cluster epsilon",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.TopicClusterEpsilon = -0.2
			},
			wantErr: gosemchunk.ErrConfiguration,
		},
		{
			name: "Cluster epsilon above one",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.TopicClusterEpsilon = 1.2
			},
			wantErr: gosemchunk.ErrConfiguration,
		},
		{
			name: "Negative cluster min points",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.TopicClusterMinPoints = -1
			},
			wantErr: gosemchunk.ErrConfiguration,
		},
		{
			name: "Negative detector weight",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.Weights.TopicShift = -0.3
			},
			wantErr: gosemchunk.ErrConfiguration,
		},
		{
			name: "Unknown strategy",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.Strategy = "recursive"
			},
			wantErr: gosemchunk.ErrUnknownStrategy,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := gosemchunk.DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Expected error %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDefaultDetectorWeightsSumToOne(t *testing.T) {
	w := gosemchunk.DefaultDetectorWeights()
	sum := w.WindowSimilarity + w.CoherenceBreak + w.TopicShift + w.LexicalCohesion
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("Detector weights sum to %v, want 1", sum)
	}
}

func TestKnownScore(t *testing.T) {
	if gosemchunk.KnownScore(gosemchunk.ScoreUnknown) {
		t.Error("ScoreUnknown should not be a known score")
	}
	if !gosemchunk.KnownScore(0) {
		t.Error("Zero should be a known score")
	}
	if !gosemchunk.KnownScore(0.7) {
		t.Error("0.7 should be a known score")
	}
}
