package state

import (
	"encoding/json"
	"time"

	"github.com/RideReport/RideRecorderApp-sub003/events"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/location"
)

// RecorderState is the recorder's singleton state, kept across restarts.
type RecorderState struct {
	Paused      bool               `json:"paused"`
	PausedUntil time.Time          `json:"pausedUntil,omitempty"`
	PauseReason events.PauseReason `json:"pauseReason"`

	// LastArrivalLocation anchors the start of the next route.
	LastArrivalLocation *location.Location `json:"lastArrivalLocation,omitempty"`
}

// ReadRecorderState returns the stored state, or the zero state if none was written.
func (s *Store) ReadRecorderState() (*RecorderState, error) {
	st := &RecorderState{}
	data, err := s.getKV(params.StoreRecorderBucket, params.StoreRecorderStateKey)
	if err != nil || data == nil {
		return st, err
	}
	if err := json.Unmarshal(data, st); err != nil {
		s.logger.Warn("Corrupt recorder state, starting fresh", "error", err)
		return &RecorderState{}, nil
	}
	return st, nil
}

func (s *Store) WriteRecorderState(st *RecorderState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.putKV(params.StoreRecorderBucket, params.StoreRecorderStateKey, data)
}

// UpdateRecorderState reads, modifies and writes the recorder state.
func (s *Store) UpdateRecorderState(fn func(st *RecorderState)) error {
	st, err := s.ReadRecorderState()
	if err != nil {
		return err
	}
	fn(st)
	return s.WriteRecorderState(st)
}
