package classifier

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/types/activity"
	"github.com/RideReport/RideRecorderApp-sub003/types/prediction"
)

// Template replays scripted classifications in a loop, ignoring the readings.
type Template struct {
	mu        sync.Mutex
	templates []prediction.PredictedActivity
	index     int
	duration  time.Duration
}

func NewTemplate(windowDuration time.Duration, templates ...prediction.PredictedActivity) *Template {
	return &Template{templates: templates, duration: windowDuration}
}

// SetTemplates replaces the script and restarts it.
func (t *Template) SetTemplates(templates ...prediction.PredictedActivity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.templates = templates
	t.index = 0
}

func (t *Template) CanPredict() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.templates) > 0
}

func (t *Template) DesiredSessionDuration() time.Duration {
	return t.duration
}

func (t *Template) ModelIdentifier() string {
	return "template"
}

func (t *Template) Classify(_ []prediction.AccelerometerReading) (map[activity.Type]float64, error) {
	next, ok := t.Next()
	if !ok {
		return nil, ErrNotReady
	}
	return map[activity.Type]float64{next.Type: next.Confidence}, nil
}

// Next returns the next scripted prediction.
func (t *Template) Next() (prediction.PredictedActivity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.templates) == 0 {
		return prediction.PredictedActivity{}, false
	}
	p := t.templates[t.index]
	t.index = (t.index + 1) % len(t.templates)
	return p, true
}

// ParseTemplates reads a script like "cycling:0.9,walking:0.6".
// A missing confidence means 1.
func ParseTemplates(s string) ([]prediction.PredictedActivity, error) {
	out := []prediction.PredictedActivity{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, conf, found := strings.Cut(part, ":")
		p := prediction.PredictedActivity{Type: activity.FromString(name), Confidence: 1}
		if found {
			c, err := strconv.ParseFloat(conf, 64)
			if err != nil || c < 0 || c > 1 {
				return nil, fmt.Errorf("bad confidence in template %q", part)
			}
			p.Confidence = c
		}
		out = append(out, p)
	}
	return out, nil
}
