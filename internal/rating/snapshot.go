package rating

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"traderboard/internal/domain"
)

// Serializable state of one week rating, enough to rebuild totals and the
// rank index after a restart. Pending inbound minutes are not captured:
// anything not yet folded at snapshot time is lost, same as a crash.
type Snapshot struct {
	Version int
	TakenAt time.Time
	Start   time.Time
	Finish  time.Time
	Totals  map[domain.UserID]domain.Amount
}

const snapshotVersion = 1

// Snapshot serializes the week's folded totals with gob.
func (w *WeekRating) Snapshot() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		Version: snapshotVersion,
		TakenAt: w.opts.Clock(),
		Start:   w.start,
		Finish:  w.finish,
		Totals:  make(map[domain.UserID]domain.Amount, len(w.totals)),
	}
	for id, amount := range w.totals {
		snap.Totals[id] = amount
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode week snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreWeekRating rebuilds a not-yet-started week rating from snapshot
// bytes. The caller checks the restored interval still matches the week it
// wants before starting it.
func RestoreWeekRating(log logger.Logger, data []byte, connected ConnectedFunc, upload UploadFunc, opts Options) (*WeekRating, error) {
	if len(data) == 0 {
		return nil, errors.New("empty snapshot data")
	}

	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode week snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported week snapshot version: %d", snap.Version)
	}

	w := NewWeekRating(log, snap.Start, snap.Finish, connected, upload, opts)
	for id, amount := range snap.Totals {
		if amount <= 0 {
			continue
		}
		w.totals[id] = amount
		w.index.add(id, amount)
	}

	log.Infof("Restored week snapshot [%s]: %d users", snap.Start.Format(time.DateOnly), len(w.totals))
	return w, nil
}
