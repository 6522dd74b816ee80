package classifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
)

// Node is a decision tree node. Leaves have Votes, one per model label.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Votes     []float64 `json:"votes,omitempty"`
}

func (n Node) IsLeaf() bool {
	return len(n.Votes) > 0
}

// Tree is a flattened decision tree rooted at index 0.
type Tree []Node

// Model is a trained random forest.
type Model struct {
	Labels       []activity.Type `json:"labels"`
	FeatureCount int             `json:"featureCount"`
	Trees        []Tree          `json:"trees"`
}

func (m *Model) Validate() error {
	if len(m.Labels) == 0 {
		return fmt.Errorf("model has no labels")
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("model has no trees")
	}
	for ti, tree := range m.Trees {
		for ni, n := range tree {
			if n.IsLeaf() {
				if len(n.Votes) != len(m.Labels) {
					return fmt.Errorf("tree %d node %d: %d votes for %d labels", ti, ni, len(n.Votes), len(m.Labels))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= m.FeatureCount {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Right <= ni || n.Left >= len(tree) || n.Right >= len(tree) {
				return fmt.Errorf("tree %d node %d: bad children", ti, ni)
			}
		}
	}
	return nil
}

// Predict averages the normalized leaf votes of every tree.
func (m *Model) Predict(features []float64) (map[activity.Type]float64, error) {
	if len(features) != m.FeatureCount {
		return nil, ErrFeatureMismatch
	}
	sums := make([]float64, len(m.Labels))
	for _, tree := range m.Trees {
		n := tree[0]
		for !n.IsLeaf() {
			if features[n.Feature] <= n.Threshold {
				n = tree[n.Left]
			} else {
				n = tree[n.Right]
			}
		}
		total := 0.0
		for _, v := range n.Votes {
			total += v
		}
		if total == 0 {
			continue
		}
		for i, v := range n.Votes {
			sums[i] += v / total
		}
	}
	out := make(map[activity.Type]float64, len(m.Labels))
	for i, label := range m.Labels {
		out[label] = sums[i] / float64(len(m.Trees))
	}
	return out, nil
}

// Forest is the production classifier: a configuration plus a model
// named by the configuration's UID.
type Forest struct {
	config *Config
	model  *Model
	logger *slog.Logger
}

// NewForest returns a Forest that cannot predict until a model is loaded.
func NewForest(config *Config) *Forest {
	return &Forest{config: config, logger: slog.With("classifier", "forest")}
}

// LoadForest reads config.json from dir, then the model <uid>.json beside it.
// A missing model is not an error; the forest just cannot predict.
func LoadForest(dir string) (*Forest, error) {
	config, err := ReadConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("read classifier config: %w", err)
	}
	f := NewForest(config)
	if config.ModelUID == "" {
		f.logger.Warn("No model identifier in configuration")
		return f, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, config.ModelUID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			f.logger.Warn("Model file not found", "uid", config.ModelUID)
			return f, nil
		}
		return nil, err
	}
	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := f.SetModel(&model); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Forest) SetModel(m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	f.model = m
	return nil
}

func (f *Forest) CanPredict() bool {
	if f.model == nil {
		f.logger.Debug("Model is not loaded")
		return false
	}
	if f.model.FeatureCount != FeatureCount {
		f.logger.Debug("Feature count does not match", "model", f.model.FeatureCount, "want", FeatureCount)
		return false
	}
	return true
}

func (f *Forest) DesiredSessionDuration() time.Duration {
	return f.config.SessionDuration()
}

func (f *Forest) ModelIdentifier() string {
	return f.config.ModelUID
}

func (f *Forest) Classify(readings []prediction.AccelerometerReading) (map[activity.Type]float64, error) {
	if !f.CanPredict() {
		return nil, ErrNotReady
	}
	signal, err := Resample(readings, f.config.SampleCount, f.config.SamplingRateHz)
	if err != nil {
		return nil, err
	}
	return f.model.Predict(Features(signal, f.config.SamplingRateHz))
}
