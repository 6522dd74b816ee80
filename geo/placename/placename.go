// Package placename names the places routes start and end at.
package placename

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/sams96/rgeo"
)

var ErrNoPlace = errors.New("no place found")

// Namer returns a short human name for a point, like "Portland, OR, USA".
type Namer interface {
	Name(pt orb.Point) (string, error)
}

// DefaultDatasets are loaded when NewRgeo is given none.
var DefaultDatasets = []func() []byte{
	rgeo.Countries10,
	rgeo.Provinces10,
	rgeo.Cities10,
}

// Rgeo is an offline reverse geocoder.
type Rgeo struct {
	r *rgeo.Rgeo

	mu   sync.Mutex
	memo map[orb.Point]string
}

// NewRgeo loads the datasets into memory. This takes a few seconds for
// the city dataset.
func NewRgeo(datasets ...func() []byte) (*Rgeo, error) {
	if len(datasets) == 0 {
		datasets = DefaultDatasets
	}
	slog.Info("Initializing rgeo", "datasets", len(datasets))
	r, err := rgeo.New(datasets...)
	if err != nil {
		return nil, fmt.Errorf("rgeo: %w", err)
	}
	return &Rgeo{r: r, memo: make(map[orb.Point]string)}, nil
}

func (n *Rgeo) Name(pt orb.Point) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if s, ok := n.memo[pt]; ok {
		return s, nil
	}
	loc, err := n.r.ReverseGeocode(pt)
	if err != nil {
		// Over open water, most likely.
		return "", ErrNoPlace
	}
	s := Format(loc)
	if s == "" {
		return "", ErrNoPlace
	}
	n.memo[pt] = s
	return s, nil
}

// Format joins the most specific available parts of loc.
// Provinces use their code when there is one.
func Format(loc rgeo.Location) string {
	province := loc.ProvinceCode
	if province == "" {
		province = loc.Province
	}
	// Province codes come prefixed with the country, eg. "US-OR".
	if i := strings.LastIndex(province, "-"); i >= 0 && i < len(province)-1 {
		province = province[i+1:]
	}
	country := loc.CountryCode3
	if country == "" {
		country = loc.CountryLong
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.City, province, country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Static names every point the same. Useful when no datasets are wanted.
type Static string

func (s Static) Name(orb.Point) (string, error) {
	if s == "" {
		return "", ErrNoPlace
	}
	return string(s), nil
}
