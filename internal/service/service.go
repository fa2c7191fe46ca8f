package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"traderboard/internal/command"
	"traderboard/internal/domain"
	"traderboard/internal/rating"
	"traderboard/internal/window"
)

// How often the dispatch loop re-checks window boundaries when the command
// queue stays empty.
const dispatchTick = 20 * time.Millisecond

var (
	ErrAlreadyStarted = errors.New("service already started")
	ErrNotStarted     = errors.New("service not started")
)

type Options struct {
	Clock window.Clock
	Week  rating.Options

	// Optional warm-start snapshot for the current week, usually loaded
	// from Redis by the hosting process. Ignored when it does not match
	// the week that is current at Start time.
	WeekSnapshot []byte
}

// Service is the orchestrator: it owns the registered/connected user sets,
// the multi-producer command queue, the currently open minute and week
// ratings and the archive of finished weeks. All mutations funnel through
// one dispatch goroutine, so callers never observe a half-applied event.
type Service struct {
	log   logger.Logger
	clock window.Clock

	queue *cmdQueue

	usersMu    sync.RWMutex
	registered map[domain.UserID]string
	connected  map[domain.UserID]struct{}

	// thisMinute is touched only by the dispatch goroutine. thisWeek is
	// swapped by the dispatch goroutine and read by queries, hence the lock.
	winMu      sync.RWMutex
	thisMinute *rating.MinuteRating
	thisWeek   *rating.WeekRating
	archive    map[int64]*rating.WeekRating

	upload       rating.UploadFunc
	weekOpts     rating.Options
	weekSnapshot []byte

	processed atomic.Uint64
	started   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(log logger.Logger, upload rating.UploadFunc, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	weekOpts := opts.Week
	if weekOpts.Clock == nil {
		weekOpts.Clock = clock
	}

	return &Service{
		log:          log,
		clock:        clock,
		queue:        newCmdQueue(),
		registered:   make(map[domain.UserID]string),
		connected:    make(map[domain.UserID]struct{}),
		archive:      make(map[int64]*rating.WeekRating),
		upload:       upload,
		weekOpts:     weekOpts,
		weekSnapshot: opts.WeekSnapshot,
		done:         make(chan struct{}),
	}
}

// Start opens the initial minute and week windows and launches the dispatch
// loop.
func (s *Service) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	now := s.clock()

	minStart, minEnd := window.MinuteBounds(now)
	weekStart, weekEnd := window.WeekBounds(now)

	s.thisMinute = rating.NewMinuteRating(minStart, minEnd)
	s.thisWeek = s.openWeek(weekStart, weekEnd)

	if err := s.thisWeek.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.dispatch(ctx)

	s.log.Infof("Rating service started, week=[%s], minute=[%s]",
		weekStart.Format(time.DateOnly), minStart.Format(time.TimeOnly))
	return nil
}

// openWeek builds the week rating for [start, end), restoring from the warm
// snapshot when one was provided for exactly this interval. The snapshot is
// consumed either way; later weeks always start fresh.
func (s *Service) openWeek(start, end time.Time) *rating.WeekRating {
	snap := s.weekSnapshot
	s.weekSnapshot = nil

	if len(snap) > 0 {
		wr, err := rating.RestoreWeekRating(s.log, snap, s.ConnectedUsers, s.upload, s.weekOpts)
		if err != nil {
			s.log.Errorf("Failed to restore week snapshot, starting fresh: %v", err)
		} else if !wr.StartTS().Equal(start) {
			s.log.Warnf("Week snapshot is for [%s], current week is [%s], starting fresh",
				wr.StartTS().Format(time.DateOnly), start.Format(time.DateOnly))
		} else {
			return wr
		}
	}

	return rating.NewWeekRating(s.log, start, end, s.ConnectedUsers, s.upload, s.weekOpts)
}

// Stop drains nothing: the loop exits after its current iteration, then the
// current and every archived week rating are stopped in turn. Shutdown is
// never partial.
func (s *Service) Stop() error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	s.cancel()
	<-s.done

	if err := s.thisWeek.Stop(); err != nil && !errors.Is(err, rating.ErrNotStarted) {
		s.log.Errorf("Failed to stop current week rating: %v", err)
	}
	for startTS, wr := range s.archive {
		if err := wr.Stop(); err != nil && !errors.Is(err, rating.ErrNotStarted) {
			s.log.Errorf("Failed to stop archived week rating [%d]: %v", startTS, err)
		}
	}

	s.log.Info("Rating service stopped")
	return nil
}

// --- fire-and-forget ingestion API; each call only enqueues ---

func (s *Service) OnUserRegistered(id domain.UserID, name string) {
	s.queue.push(command.NewUserRegistered(id, name, s.applyUserRegistered))
}

func (s *Service) OnUserRenamed(id domain.UserID, name string) {
	s.queue.push(command.NewUserRenamed(id, name, s.applyUserRenamed))
}

func (s *Service) OnUserConnected(id domain.UserID) {
	s.queue.push(command.NewUserConnected(id, s.applyUserConnected))
}

func (s *Service) OnUserDisconnected(id domain.UserID) {
	s.queue.push(command.NewUserDisconnected(id, s.applyUserDisconnected))
}

func (s *Service) OnUserDealWon(ts time.Time, id domain.UserID, amount domain.Amount) {
	s.queue.push(command.NewUserDealWon(ts, id, amount, s.applyUserDealWon))
}

// --- queries; these reflect fully-applied events only ---

func (s *Service) IsUserRegistered(id domain.UserID) bool {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	_, ok := s.registered[id]
	return ok
}

func (s *Service) IsUserConnected(id domain.UserID) bool {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	_, ok := s.connected[id]
	return ok
}

func (s *Service) UserName(id domain.UserID) (string, bool) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	name, ok := s.registered[id]
	return name, ok
}

// ConnectedUsers returns a snapshot copy of the connected set. Week ratings
// call this from their reporting goroutines while the dispatch loop keeps
// mutating the set.
func (s *Service) ConnectedUsers() []domain.UserID {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	ids := make([]domain.UserID, 0, len(s.connected))
	for id := range s.connected {
		ids = append(ids, id)
	}
	return ids
}

// CurrentWeek exposes the open week rating for ad-hoc rating queries and
// shutdown snapshots.
func (s *Service) CurrentWeek() *rating.WeekRating {
	s.winMu.RLock()
	defer s.winMu.RUnlock()
	return s.thisWeek
}

func (s *Service) ArchivedWeeks() int {
	s.winMu.RLock()
	defer s.winMu.RUnlock()
	return len(s.archive)
}

func (s *Service) ProcessedCommands() uint64 { return s.processed.Load() }

// --- dispatch loop; the sole writer of user sets and window rotation ---

func (s *Service) dispatch(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(dispatchTick)
	defer ticker.Stop()

	for {
		s.rotate()

		cmd, ok := s.queue.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.queue.wake:
			case <-ticker.C:
			}
			continue
		}

		cmd.Handle()
		s.processed.Add(1)
	}
}

// rotate seals the minute and rolls the week when their ends have passed.
// The minute is sealed first: a minute ending on the week boundary still
// belongs to the old week.
func (s *Service) rotate() {
	now := s.clock()

	if !now.Before(s.thisMinute.FinishTS()) {
		s.thisWeek.SubmitMinute(s.thisMinute)
		start, end := window.MinuteBounds(now)
		s.thisMinute = rating.NewMinuteRating(start, end)
	}

	if !now.Before(s.thisWeek.FinishTS()) {
		finished := s.thisWeek
		start, end := window.WeekBounds(now)
		next := s.openWeek(start, end)
		if err := next.Start(); err != nil {
			s.log.Panicf("Failed to start week rating [%s]: %v", start.Format(time.DateOnly), err)
		}

		s.winMu.Lock()
		s.archive[finished.StartTS().Unix()] = finished
		s.thisWeek = next
		s.winMu.Unlock()

		s.log.Infof("Week rolled over: archived [%s], opened [%s]",
			finished.StartTS().Format(time.DateOnly), start.Format(time.DateOnly))
	}
}

// --- command handlers, invoked by the dispatch goroutine only ---

func (s *Service) applyUserRegistered(id domain.UserID, name string) {
	s.usersMu.Lock()
	s.registered[id] = name
	s.usersMu.Unlock()
}

func (s *Service) applyUserRenamed(id domain.UserID, name string) {
	s.usersMu.Lock()
	if _, ok := s.registered[id]; ok {
		s.registered[id] = name
	}
	s.usersMu.Unlock()
}

func (s *Service) applyUserConnected(id domain.UserID) {
	s.usersMu.Lock()
	// only registered users can connect; anything else is silently ignored
	if _, ok := s.registered[id]; ok {
		s.connected[id] = struct{}{}
	}
	s.usersMu.Unlock()
}

func (s *Service) applyUserDisconnected(id domain.UserID) {
	s.usersMu.Lock()
	delete(s.connected, id)
	s.usersMu.Unlock()
}

func (s *Service) applyUserDealWon(ts time.Time, id domain.UserID, amount domain.Amount) {
	// route to whichever minute is open; the minute itself drops deals
	// outside its interval
	s.thisMinute.Record(ts, id, amount)
}
