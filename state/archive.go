package state

import (
	"errors"
	"os"

	"github.com/RideReport/RideRecorderApp-sub003/catdb/flat"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
)

// ArchiveRoutes moves matching routes out of the database and into the
// gzipped route archive. Only closed, uploaded routes are ever archived.
func (s *Store) ArchiveRoutes(match func(r *route.Route) bool) (int, error) {
	rs, err := s.Routes(func(r *route.Route) bool {
		return r.IsClosed && r.IsUploaded && (match == nil || match(r))
	})
	if err != nil || len(rs) == 0 {
		return 0, err
	}
	if err := flat.AppendJSON(s.Flat.Archive(), flat.RoutesFileName, rs...); err != nil {
		return 0, err
	}
	for _, r := range rs {
		if err := s.DeleteRoute(r.ID); err != nil {
			return 0, err
		}
	}
	s.logger.Info("## Archived routes", "count", len(rs))
	return len(rs), nil
}

// ArchivedRoutes reads back every archived route.
func (s *Store) ArchivedRoutes() ([]*route.Route, error) {
	rs, err := flat.ReadJSON[*route.Route](s.Flat.Archive(), flat.RoutesFileName)
	if errors.Is(err, os.ErrNotExist) {
		return []*route.Route{}, nil
	}
	return rs, err
}
