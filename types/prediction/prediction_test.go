package prediction

import (
	"math"
	"testing"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
)

func TestAccelerometerReading_Magnitude(t *testing.T) {
	r := AccelerometerReading{X: 3, Y: 4, Z: 12}
	if got := r.Magnitude(); got != 13 {
		t.Errorf("have %f want 13", got)
	}
}

func TestPrediction_SetConfidences(t *testing.T) {
	p := New(time.Now())
	p.SetConfidences(map[activity.Type]float64{
		activity.Walking:    0.1,
		activity.Cycling:    0.7,
		activity.Automotive: 0.2,
	})
	if len(p.Activities) != 3 {
		t.Fatalf("have %d activities want 3", len(p.Activities))
	}
	if p.Activities[0].Type != activity.Cycling {
		t.Errorf("have %v want cycling first", p.Activities[0])
	}
	top, ok := p.Top()
	if !ok || top.Type != activity.Cycling || top.Confidence != 0.7 {
		t.Errorf("unexpected top %v", top)
	}
}

func TestVotes(t *testing.T) {
	a, b := New(time.Now()), New(time.Now())
	a.SetConfidences(map[activity.Type]float64{activity.Cycling: 0.6, activity.Walking: 0.4})
	b.SetConfidences(map[activity.Type]float64{activity.Cycling: 0.3, activity.Walking: 0.7})
	got := Votes([]*Prediction{a, b})
	if math.Abs(got[activity.Cycling]-0.9) > 1e-9 || math.Abs(got[activity.Walking]-1.1) > 1e-9 {
		t.Errorf("unexpected votes %v", got)
	}
}

func TestPrediction_TopEmpty(t *testing.T) {
	p := New(time.Now())
	if _, ok := p.Top(); ok {
		t.Error("empty prediction has no top vote")
	}
	p.AddUnknown()
	top, _ := p.Top()
	if top.Type != activity.Unknown || top.Confidence != 1 {
		t.Errorf("unexpected %v", top)
	}
}
