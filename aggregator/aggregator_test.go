package aggregator

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/classifier"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func vote(a activity.Type, c float64) *prediction.Prediction {
	p := prediction.New(t0)
	p.Activities = []prediction.PredictedActivity{{Type: a, Confidence: c}}
	return p
}

func TestAggregator_voteCorrectness(t *testing.T) {
	agg := New(t0)
	votes := []struct {
		a activity.Type
		c float64
	}{
		{activity.Cycling, 0.9},
		{activity.Walking, 0.8},
		{activity.Walking, 0.7},
		{activity.Cycling, 0.9},
		{activity.Automotive, 0.2},
	}
	for _, v := range votes {
		agg.AddPrediction(vote(v.a, v.c))
	}
	got, ok := agg.Aggregate()
	if !ok {
		t.Fatal("expected an aggregate")
	}
	if got.Type != activity.Cycling {
		t.Errorf("have %v want cycling", got.Type)
	}
	if want := 1.8 / 5; math.Abs(got.Confidence-want) > 1e-9 {
		t.Errorf("have %f want %f", got.Confidence, want)
	}
}

func TestAggregator_IsComplete(t *testing.T) {
	config := params.DefaultAggregatorConfig

	agg := New(t0)
	for i := 0; i < config.MinimumSampleCountForSuccess; i++ {
		agg.AddPrediction(vote(activity.Cycling, 1))
		if agg.IsComplete(config) {
			t.Fatalf("complete after only %d windows", i+1)
		}
	}
	agg.AddPrediction(vote(activity.Cycling, 1))
	if !agg.IsComplete(config) {
		t.Error("confident aggregate should complete after the minimum")
	}

	unsure := New(t0)
	for i := 0; i < config.MaximumSampleBeforeFailure-1; i++ {
		unsure.AddPrediction(vote(activity.Type(i%3+1), 0.5))
		if unsure.IsComplete(config) {
			t.Fatalf("unsure aggregate complete after %d windows", i+1)
		}
	}
	unsure.AddPrediction(vote(activity.Walking, 0.5))
	if !unsure.IsComplete(config) {
		t.Error("aggregate should complete at the window ceiling")
	}
}

func TestAggregator_terminationProperty(t *testing.T) {
	config := params.DefaultAggregatorConfig
	rng := rand.New(rand.NewSource(42))
	types := []activity.Type{activity.Cycling, activity.Walking, activity.Automotive, activity.Stationary}
	for trial := 0; trial < 500; trial++ {
		agg := New(t0)
		completedAt := 0
		for n := 1; n <= config.MaximumSampleBeforeFailure; n++ {
			agg.AddPrediction(vote(types[rng.Intn(len(types))], rng.Float64()))
			if agg.IsComplete(config) {
				completedAt = n
				break
			}
		}
		if completedAt == 0 {
			t.Fatalf("trial %d never completed", trial)
		}
		if completedAt <= config.MinimumSampleCountForSuccess {
			t.Fatalf("trial %d completed after %d windows", trial, completedAt)
		}
	}
}

func TestAggregator_ForceUnknown(t *testing.T) {
	agg := New(t0)
	agg.AddPrediction(vote(activity.Cycling, 1))
	agg.StartWindow(t0)
	agg.ForceUnknown()
	got, _ := agg.Aggregate()
	if got.Type != activity.Unknown || got.Confidence != 1 {
		t.Errorf("have %v want unknown", got)
	}
	if agg.HasCurrentWindow() {
		t.Error("forced aggregator should have no current window")
	}
}

func TestAggregator_RunWindowIfReady(t *testing.T) {
	config := *params.DefaultAggregatorConfig
	c := classifier.NewTemplate(100*time.Millisecond, prediction.PredictedActivity{Type: activity.Cycling, Confidence: 0.9})

	agg := New(t0)
	agg.StartWindow(time.Time{})
	complete := false
	n := 0
	for i := 0; !complete && i < 1000; i++ {
		agg.AddReading(prediction.AccelerometerReading{Date: t0.Add(time.Duration(i) * 20 * time.Millisecond), Z: 1})
		complete = agg.RunWindowIfReady(c, &config)
		n = i
	}
	if !complete {
		t.Fatal("never completed")
	}
	preds := agg.Predictions()
	if len(preds) != config.MinimumSampleCountForSuccess+1 {
		t.Errorf("have %d windows want %d", len(preds), config.MinimumSampleCountForSuccess+1)
	}
	for i, p := range preds {
		if want := t0.Add(time.Duration(i) * config.SampleOffsetInterval); !p.StartDate.Equal(want) {
			t.Errorf("window %d: have start %v want %v", i, p.StartDate, want)
		}
	}
	// The 9th window starts at 2s and needs 100ms of readings.
	if want := (2100 * time.Millisecond) / (20 * time.Millisecond); n != int(want) {
		t.Errorf("completed at reading %d want %d", n, want)
	}
}

func TestAggregator_JSON(t *testing.T) {
	agg := New(t0, &location.Location{Date: t0, Latitude: 1, Longitude: 2, Source: location.SourcePassive})
	agg.AddReading(prediction.AccelerometerReading{Date: t0, X: 0.1})
	agg.AddPrediction(vote(activity.Walking, 0.8))
	b, err := json.Marshal(agg)
	if err != nil {
		t.Fatal(err)
	}
	var back Aggregator
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != agg.ID || back.ReadingCount() != 1 || len(back.Locations()) != 1 || back.Activity() != activity.Walking {
		t.Errorf("round trip lost data: %s", b)
	}
}
