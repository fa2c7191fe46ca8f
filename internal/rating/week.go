package rating

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"traderboard/internal/domain"
	"traderboard/internal/window"
)

const (
	// TopLimit caps the number of distinct-amount buckets in the Top group.
	TopLimit = 10
	// NeighborLimit caps the Above and Below groups.
	NeighborLimit = 10
)

var (
	ErrAlreadyStarted = errors.New("week rating already started")
	ErrNotStarted     = errors.New("week rating not started")
)

// ConnectedFunc returns a snapshot of currently connected users. It is
// called once per reporting cycle and must return promptly.
type ConnectedFunc func() []domain.UserID

// UploadFunc receives one finished rating result. Delivery is
// fire-and-forget: the week rating never retries.
type UploadFunc func(*domain.RatingResult)

// Options tunes the reporting loop. Zero values take production defaults;
// tests shrink them and inject their own clock.
type Options struct {
	SettleDelay  time.Duration // how long past a minute end before that minute is reported
	GracePeriod  time.Duration // how long past the week end the loop keeps folding
	PollInterval time.Duration // wake cadence when nothing is submitted
	Clock        window.Clock
}

func (o Options) withDefaults() Options {
	if o.SettleDelay <= 0 {
		o.SettleDelay = time.Second
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = 5 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// WeekRating owns one week's running per-user totals and the amount-ranked
// index, folds sealed minute ratings into them on a background goroutine,
// and periodically emits a rating result for every connected user with a
// nonzero total.
type WeekRating struct {
	log  logger.Logger
	opts Options

	start  time.Time
	finish time.Time

	mu      sync.Mutex
	inbound []*MinuteRating
	totals  map[domain.UserID]domain.Amount
	index   *rankIndex

	wake chan struct{}

	connected ConnectedFunc
	upload    UploadFunc

	started  atomic.Bool
	finished atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewWeekRating(log logger.Logger, start, finish time.Time, connected ConnectedFunc, upload UploadFunc, opts Options) *WeekRating {
	return &WeekRating{
		log:       log,
		opts:      opts.withDefaults(),
		start:     start,
		finish:    finish,
		totals:    make(map[domain.UserID]domain.Amount),
		index:     newRankIndex(),
		wake:      make(chan struct{}, 1),
		connected: connected,
		upload:    upload,
		done:      make(chan struct{}),
	}
}

// Start launches the reporting loop. Starting twice is caller misuse and is
// reported instead of being left undefined.
func (w *WeekRating) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx)
	return nil
}

// Stop cancels the loop and blocks until it has exited. No uploads happen
// after Stop returns. Stopping an already finished week is a no-op.
func (w *WeekRating) Stop() error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	w.cancel()
	<-w.done
	return nil
}

// SubmitMinute hands ownership of a sealed minute rating to this week.
// Non-blocking for the caller; out-of-week intervals are discarded by the
// loop, not here.
func (w *WeekRating) SubmitMinute(mr *MinuteRating) {
	w.mu.Lock()
	w.inbound = append(w.inbound, mr)
	w.mu.Unlock()
	w.notify()
}

func (w *WeekRating) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *WeekRating) StartTS() time.Time  { return w.start }
func (w *WeekRating) FinishTS() time.Time { return w.finish }
func (w *WeekRating) Started() bool       { return w.started.Load() }
func (w *WeekRating) Finished() bool      { return w.finished.Load() }

// RatingFor builds an on-demand result for one user from the current index.
// Scheduled reports remain the delivery contract; this only serves ad-hoc
// queries. Users with no recorded winnings get ok=false.
func (w *WeekRating) RatingFor(id domain.UserID) (*domain.RatingResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	amount, ok := w.totals[id]
	if !ok || amount <= 0 {
		return nil, false
	}
	return w.buildResult(w.opts.Clock(), id, amount), true
}

func (w *WeekRating) run(ctx context.Context) {
	defer close(w.done)
	defer w.finished.Store(true)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	_, minuteEnd := window.MinuteBounds(w.opts.Clock())
	deadline := w.finish.Add(w.opts.GracePeriod)

	for {
		w.fold(w.drain())

		now := w.opts.Clock()
		if now.After(deadline) {
			w.log.Infof("Week rating [%s] elapsed, reporting loop exiting", w.start.Format(time.DateOnly))
			return
		}

		// Hold the report back until the minute has settled, so deals still
		// in flight for it land in this report rather than being lost
		// between two.
		if !now.Before(minuteEnd.Add(w.opts.SettleDelay)) {
			w.report(now)
			_, minuteEnd = window.MinuteBounds(now)
		}

		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-ticker.C:
		}
	}
}

func (w *WeekRating) drain() []*MinuteRating {
	w.mu.Lock()
	defer w.mu.Unlock()

	batch := w.inbound
	w.inbound = nil
	return batch
}

// fold merges drained minute ratings into the weekly totals and keeps the
// rank index in step: stale bucket membership goes out before the new
// summed amount goes in. A user with a positive total missing from their
// bucket means the index is corrupt, and every later report would be wrong,
// so that fails loudly.
func (w *WeekRating) fold(batch []*MinuteRating) {
	if len(batch) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, mr := range batch {
		if mr.StartTS().Before(w.start) || mr.FinishTS().After(w.finish) {
			w.log.Debugf("Discarding minute [%s, %s) outside week [%s, %s)",
				mr.StartTS(), mr.FinishTS(), w.start, w.finish)
			continue
		}

		mr.Each(func(id domain.UserID, amount domain.Amount) {
			prev := w.totals[id]
			if prev > 0 && !w.index.remove(id, prev) {
				w.log.Panicf("Rank index lost user %d at amount %v", id, prev)
			}

			total := prev + amount
			w.totals[id] = total
			if total > 0 {
				w.index.add(id, total)
			}
		})
	}
}

func (w *WeekRating) report(now time.Time) {
	ids := w.connected()
	if len(ids) == 0 {
		return
	}

	w.mu.Lock()
	results := make([]*domain.RatingResult, 0, len(ids))
	for _, id := range ids {
		amount, ok := w.totals[id]
		if !ok || amount <= 0 {
			// no winnings this week -> excluded, not reported as zero
			continue
		}
		results = append(results, w.buildResult(now, id, amount))
	}
	w.mu.Unlock()

	// upload outside the lock: the sink must never be able to wedge folding
	for _, res := range results {
		w.upload(res)
	}
}

// buildResult is called with w.mu held.
func (w *WeekRating) buildResult(now time.Time, id domain.UserID, amount domain.Amount) *domain.RatingResult {
	return &domain.RatingResult{
		TS:        now,
		WeekStart: w.start,
		UserID:    id,
		Amount:    amount,
		Top:       w.index.top(TopLimit),
		Above:     w.index.above(amount, NeighborLimit),
		Below:     w.index.below(amount, NeighborLimit),
	}
}
