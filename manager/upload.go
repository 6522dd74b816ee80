package manager

import (
	"context"
	"errors"

	"github.com/RideReport/RideRecorderApp-sub003/lease"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/RideReport/RideRecorderApp-sub003/upload"
)

// startSummaryUpload posts the closed route's summary off the event loop.
// The result comes back as an uploadFinished event; l is released once it
// has been handled.
func (m *Manager) startSummaryUpload(rt *route.Route, attempt int, l *lease.Lease) {
	gw := m.recorder.Gateway
	if gw == nil {
		l.Release()
		return
	}
	// The live route stays with the loop. The upload reads a stored copy.
	snap, err := m.recorder.Store.RouteSnapshot(rt.ID)
	if err == nil {
		err = upload.CheckUploadable(snap)
	}
	if err != nil {
		m.logger.Warn("Route summary not uploadable", "id", rt.ID, "error", err)
		l.Release()
		return
	}

	ctx := m.ctx
	timeout := m.recorder.UploadConfig().Timeout
	m.uploadsInFlight++
	m.uploading.Add(1)
	go func() {
		defer m.uploading.Done()
		uctx, cancel := context.WithTimeout(ctx, timeout)
		err := gw.UploadRoute(uctx, snap, false)
		cancel()
		select {
		case m.internal <- uploadFinished{id: snap.ID, uuid: snap.UUID, attempt: attempt, lease: l, err: err}:
		case <-ctx.Done():
			l.Release()
		}
	}()
}

// summaryUploadFinished applies an upload result to the live route. A
// conflict on the first attempt regenerates the UUID and resubmits once.
func (m *Manager) summaryUploadFinished(ev uploadFinished) {
	m.uploadsInFlight--
	rt, err := m.recorder.Store.GetRoute(ev.id)
	if err != nil {
		m.logger.Warn("Uploaded route is gone", "id", ev.id, "error", err)
		ev.lease.Release()
		return
	}
	if !rt.IsClosed || rt.UUID != ev.uuid {
		// Resumed or resubmitted since. The next upload pass picks it up.
		m.logger.Debug("Dropping stale summary upload", "id", rt.ID, "uuid", ev.uuid)
		ev.lease.Release()
		return
	}
	if errors.Is(ev.err, upload.ErrConflict) && ev.attempt == 0 {
		if err := m.recorder.ResolveConflict(rt); err != nil {
			m.logger.Error("Failed to resolve route conflict", "id", rt.ID, "error", err)
			ev.lease.Release()
			return
		}
		m.startSummaryUpload(rt, ev.attempt+1, ev.lease)
		return
	}
	ev.lease.Release()
	if err := m.recorder.RecordUpload(rt, false, ev.err); err != nil {
		m.logger.Info("Route summary failed to sync", "id", rt.ID, "error", err)
		return
	}
	m.logger.Info("Route summary synced", "id", rt.ID, "uuid", rt.UUID)
}

// dropUnhandledUploads waits for uploads still running after Run returns
// and releases the leases of results nobody will handle.
func (m *Manager) dropUnhandledUploads() {
	m.uploading.Wait()
	for {
		select {
		case ev := <-m.internal:
			if up, ok := ev.(uploadFinished); ok {
				up.lease.Release()
			}
		default:
			m.uploadsInFlight = 0
			return
		}
	}
}
