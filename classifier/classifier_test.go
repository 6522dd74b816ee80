package classifier

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
)

const testConfig = `{"model_metadata_version": 1, "sampling": {"sample_count": 64, "sampling_rate_hz": 20}, "cv_sha256": "abc123"}`

// stumpModel splits on the mean magnitude: calm readings are stationary,
// shaky ones cycling.
func stumpModel() *Model {
	return &Model{
		Labels:       []activity.Type{activity.Stationary, activity.Cycling},
		FeatureCount: FeatureCount,
		Trees: []Tree{
			{
				{Feature: 3, Threshold: 0.05, Left: 1, Right: 2},
				{Votes: []float64{9, 1}},
				{Votes: []float64{1, 3}},
			},
			{
				{Votes: []float64{1, 1}},
			},
		},
	}
}

func readings(n int, rateHz float64, shake float64) []prediction.AccelerometerReading {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]prediction.AccelerometerReading, n)
	for i := range out {
		secs := float64(i) / rateHz
		out[i] = prediction.AccelerometerReading{
			Date: at.Add(time.Duration(secs * float64(time.Second))),
			Z:    1 + shake*math.Sin(2*math.Pi*2*secs),
		}
	}
	return out
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if c.SampleCount != 64 || c.SamplingRateHz != 20 || c.ModelUID != "abc123" {
		t.Errorf("unexpected config %+v", c)
	}
	if got, want := c.SessionDuration(), 3150*time.Millisecond; got != want {
		t.Errorf("have %v want %v", got, want)
	}

	bad := []string{
		`{"model_metadata_version": 2, "sampling": {"sample_count": 64, "sampling_rate_hz": 20}}`,
		`{"sampling": {"sample_count": 60, "sampling_rate_hz": 20}}`,
		`{"sampling": {"sample_count": 64}}`,
		`not json`,
	}
	for _, b := range bad {
		if _, err := ParseConfig([]byte(b)); err == nil {
			t.Errorf("%s: expected error", b)
		}
	}
}

func TestFeatures(t *testing.T) {
	signal, err := Resample(readings(80, 20, 0.5), 64, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(signal) != 64 {
		t.Fatalf("have %d samples want 64", len(signal))
	}
	f := Features(signal, 20)
	if len(f) != FeatureCount {
		t.Fatalf("have %d features want %d", len(f), FeatureCount)
	}
	for i, v := range f {
		if math.IsNaN(v) {
			t.Errorf("feature %d is NaN", i)
		}
	}
	if f[0] < 1.4 || f[0] > 1.5 {
		t.Errorf("max: have %f want ~1.5", f[0])
	}
	if math.Abs(f[1]-1) > 0.05 {
		t.Errorf("mean: have %f want ~1", f[1])
	}

	calm := Features(make([]float64, 64), 20)
	if calm[3] != 0 || calm[13] != 0 {
		t.Errorf("flat signal: std %f entropy %f", calm[3], calm[13])
	}
}

func TestResample_tooFew(t *testing.T) {
	if _, err := Resample(readings(1, 20, 0), 64, 20); err != ErrTooFewReadings {
		t.Errorf("have %v want %v", err, ErrTooFewReadings)
	}
}

func TestForest_Classify(t *testing.T) {
	c, _ := ParseConfig([]byte(testConfig))
	f := NewForest(c)
	if f.CanPredict() {
		t.Fatal("forest without a model cannot predict")
	}
	if _, err := f.Classify(readings(80, 20, 0)); err != ErrNotReady {
		t.Errorf("have %v want %v", err, ErrNotReady)
	}
	if err := f.SetModel(stumpModel()); err != nil {
		t.Fatal(err)
	}

	shaky, err := f.Classify(readings(80, 20, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	// (0.75 + 0.5) / 2
	if got := shaky[activity.Cycling]; math.Abs(got-0.625) > 1e-9 {
		t.Errorf("shaky cycling: have %f want 0.625", got)
	}
	calm, err := f.Classify(readings(80, 20, 0))
	if err != nil {
		t.Fatal(err)
	}
	// (0.9 + 0.5) / 2
	if got := calm[activity.Stationary]; math.Abs(got-0.7) > 1e-9 {
		t.Errorf("calm stationary: have %f want 0.7", got)
	}
}

func TestModel_Validate(t *testing.T) {
	m := stumpModel()
	m.Trees[0][0].Left = 0
	if m.Validate() == nil {
		t.Error("self-referencing node should not validate")
	}
	m = stumpModel()
	m.Trees[0][1].Votes = []float64{1}
	if m.Validate() == nil {
		t.Error("short votes should not validate")
	}
}

func TestLoadForest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := LoadForest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if f.CanPredict() {
		t.Error("missing model file should leave the forest unready")
	}

	b, _ := json.Marshal(stumpModel())
	if err := os.WriteFile(filepath.Join(dir, "abc123.json"), b, 0644); err != nil {
		t.Fatal(err)
	}
	f, err = LoadForest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !f.CanPredict() || f.ModelIdentifier() != "abc123" {
		t.Error("forest should be ready")
	}
}

func TestTemplate(t *testing.T) {
	tc := NewTemplate(time.Second,
		prediction.PredictedActivity{Type: activity.Cycling, Confidence: 0.9},
		prediction.PredictedActivity{Type: activity.Walking, Confidence: 0.4},
	)
	for i, want := range []activity.Type{activity.Cycling, activity.Walking, activity.Cycling} {
		got, err := tc.Classify(nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := got[want]; !ok {
			t.Errorf("i=%d have %v want %v", i, got, want)
		}
	}
	tc.SetTemplates()
	if tc.CanPredict() {
		t.Error("empty template cannot predict")
	}
}

func TestParseTemplates(t *testing.T) {
	got, err := ParseTemplates("cycling:0.9, walking:0.6,,stationary")
	if err != nil {
		t.Fatal(err)
	}
	want := []prediction.PredictedActivity{
		{Type: activity.Cycling, Confidence: 0.9},
		{Type: activity.Walking, Confidence: 0.6},
		{Type: activity.Stationary, Confidence: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d templates", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%d: got %+v want %+v", i, got[i], want[i])
		}
	}
	got, err = ParseTemplates("motorcycle:0.9")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Type != activity.Motorcycle {
		t.Errorf("got %+v want motorcycle", got)
	}
	if _, err := ParseTemplates("cycling:high"); err == nil {
		t.Error("expected an error for a non-numeric confidence")
	}
	if _, err := ParseTemplates("cycling:1.5"); err == nil {
		t.Error("expected an error for a confidence above 1")
	}
}
