// Package matchmaking pairs queued players whose ratings are close enough,
// widening the acceptable gap the longer a player waits.
package matchmaking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/chessgame-go/internal/dependencies/clock"
	"github.com/mcoot/chessgame-go/internal/metrics"
	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/storage"
)

var (
	// ErrMatched ends a search whose player was claimed by another search
	ErrMatched = errors.New("matched by another player's search")
	// ErrLeftQueue ends a search whose player left or was replaced in the queue
	ErrLeftQueue = errors.New("left the matchmaking queue")
)

// Config controls tolerance widening and re-scan cadence
type Config struct {
	InitialTolerance int
	ToleranceStep    int
	WidenInterval    time.Duration
	PollInterval     time.Duration
}

// DefaultConfig returns the standard matchmaking settings
func DefaultConfig() Config {
	return Config{
		InitialTolerance: 50,
		ToleranceStep:    50,
		WidenInterval:    5 * time.Second,
		PollInterval:     500 * time.Millisecond,
	}
}

// Match is a pairing produced by one player's search
type Match struct {
	Requester model.QueueEntry
	Opponent  model.QueueEntry
	Tolerance int
	MatchedAt time.Time
}

// waiter is the in-process half of a queue entry
type waiter struct {
	entry  model.QueueEntry
	done   chan struct{}
	reason error
}

// Queue owns the matchmaking queue. Every read-decide-write over the queue
// happens under mu, so two searches can never claim the same entry.
type Queue struct {
	storage storage.Storage
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger

	mu      sync.Mutex
	waiters map[string]*waiter
	// wake is closed and replaced on every enqueue to re-run blocked searches
	wake chan struct{}
}

// New creates a matchmaking queue
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Queue {
	defaults := DefaultConfig()
	if cfg.InitialTolerance == 0 {
		cfg.InitialTolerance = defaults.InitialTolerance
	}
	if cfg.ToleranceStep == 0 {
		cfg.ToleranceStep = defaults.ToleranceStep
	}
	if cfg.WidenInterval == 0 {
		cfg.WidenInterval = defaults.WidenInterval
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	return &Queue{
		storage: storage,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "matchmaking")),
		waiters: make(map[string]*waiter),
		wake:    make(chan struct{}),
	}
}

// Tolerance returns the rating gap accepted for a player queued at enqueuedAt.
// It never decreases while the player waits.
func (q *Queue) Tolerance(enqueuedAt, now time.Time) int {
	waited := now.Sub(enqueuedAt)
	if waited < 0 {
		waited = 0
	}
	steps := int(waited / q.cfg.WidenInterval)
	return q.cfg.InitialTolerance + steps*q.cfg.ToleranceStep
}

// Ticket is a queued player's handle on their search
type Ticket struct {
	q *Queue
	w *waiter
}

// Entry returns the queue entry the ticket was issued for
func (t *Ticket) Entry() model.QueueEntry {
	return t.w.entry
}

// Enqueue adds a player to the queue and returns the ticket used to search.
// It returns model.ErrAlreadyQueued if the same session is already queued.
// A queued entry from an older session of the same user is replaced.
func (q *Queue) Enqueue(ctx context.Context, username string, sessionID model.SessionID, rating int) (*Ticket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	previous, ok := q.waiters[username]
	if ok && previous.entry.SessionID == sessionID {
		return nil, model.ErrAlreadyQueued
	}

	entry := model.QueueEntry{
		Username:   username,
		SessionID:  sessionID,
		Rating:     rating,
		EnqueuedAt: q.clock.Now(),
	}

	added, err := q.storage.EnqueuePlayer(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !added {
		// Stored entry without a live search, left behind by an earlier session
		if err := q.storage.RemoveFromQueue(ctx, username); err != nil {
			return nil, err
		}
		if _, err := q.storage.EnqueuePlayer(ctx, entry); err != nil {
			return nil, err
		}
	}

	// An older session's search ends only once the new entry is stored
	if previous != nil {
		q.dropLocked(previous, ErrLeftQueue)
	}

	w := &waiter{entry: entry, done: make(chan struct{})}
	q.waiters[username] = w
	metrics.QueueJoined()
	q.notifyLocked()

	q.logger.Info("player queued", slog.String("username", username), slog.Int("rating", rating))
	return &Ticket{q: q, w: w}, nil
}

// FindMatch blocks until the queued player is paired. It returns the match
// when this search claimed the opponent, ErrMatched when another search
// claimed this player, ErrLeftQueue when the player left, or the context
// error when ctx ends (the player is then removed from the queue).
func (t *Ticket) FindMatch(ctx context.Context) (*Match, error) {
	q, w := t.q, t.w
	for {
		match, wake, err := q.scan(ctx, w)
		if err != nil || match != nil {
			return match, err
		}

		timer := time.NewTimer(q.cfg.PollInterval)
		select {
		case <-w.done:
			timer.Stop()
			return nil, w.reason
		case <-ctx.Done():
			timer.Stop()
			q.leaveWaiter(context.WithoutCancel(ctx), w)
			return nil, ctx.Err()
		case <-wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// scan looks for the closest-rated live opponent within the requester's
// tolerance and claims both entries. It also returns the current wake channel
// so the caller cannot miss an enqueue that happens after the scan.
func (q *Queue) scan(ctx context.Context, w *waiter) (*Match, <-chan struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.waiters[w.entry.Username] != w {
		// Dropped waiters always have done closed and reason set
		return nil, nil, w.reason
	}

	snapshot, err := q.storage.SnapshotQueue(ctx)
	if err != nil {
		return nil, nil, q.abortLocked(ctx, w, err)
	}

	now := q.clock.Now()
	tolerance := q.Tolerance(w.entry.EnqueuedAt, now)

	var best *waiter
	bestDiff := 0
	// Snapshot is ordered by enqueue time, so ties keep the longest waiter
	for _, candidate := range snapshot {
		if candidate.Username == w.entry.Username {
			continue
		}
		other, ok := q.waiters[candidate.Username]
		if !ok || other.entry.SessionID != candidate.SessionID {
			continue
		}
		diff := abs(candidate.Rating - w.entry.Rating)
		if diff > tolerance {
			continue
		}
		if best == nil || diff < bestDiff {
			best = other
			bestDiff = diff
		}
	}

	if best == nil {
		return nil, q.wake, nil
	}

	if err := q.storage.RemoveFromQueue(ctx, w.entry.Username, best.entry.Username); err != nil {
		return nil, nil, q.abortLocked(ctx, w, err)
	}
	q.dropLocked(best, ErrMatched)
	q.dropLocked(w, ErrMatched)

	wait := now.Sub(w.entry.EnqueuedAt)
	metrics.MatchMade(wait)
	q.logger.Info("players matched",
		slog.String("requester", w.entry.Username),
		slog.String("opponent", best.entry.Username),
		slog.Int("rating_gap", bestDiff),
		slog.Int("tolerance", tolerance),
		slog.Duration("waited", wait),
	)

	return &Match{
		Requester: w.entry,
		Opponent:  best.entry,
		Tolerance: tolerance,
		MatchedAt: now,
	}, nil, nil
}

// Leave removes the session's queue entry, ending its search.
// Leaving when not queued is not an error.
func (q *Queue) Leave(ctx context.Context, username string, sessionID model.SessionID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	w, ok := q.waiters[username]
	if ok && w.entry.SessionID != sessionID {
		// The user has queued again from a newer session
		return nil
	}
	if ok {
		q.dropLocked(w, ErrLeftQueue)
		q.logger.Info("player left queue", slog.String("username", username))
	}
	return q.storage.RemoveFromQueue(ctx, username)
}

// IsQueued reports whether the session currently has a live search entry
func (q *Queue) IsQueued(username string, sessionID model.SessionID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, ok := q.waiters[username]
	return ok && w.entry.SessionID == sessionID
}

// Len returns the number of queued players
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

func (q *Queue) leaveWaiter(ctx context.Context, w *waiter) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.waiters[w.entry.Username] != w {
		return
	}
	q.dropLocked(w, ErrLeftQueue)
	if err := q.storage.RemoveFromQueue(ctx, w.entry.Username); err != nil {
		q.logger.Error("failed to remove abandoned queue entry",
			slog.String("username", w.entry.Username),
			slog.String("error", err.Error()),
		)
	}
}

// abortLocked ends w's search after a storage failure so the player is no
// longer queued anywhere and can search again
func (q *Queue) abortLocked(ctx context.Context, w *waiter, cause error) error {
	q.dropLocked(w, cause)
	if err := q.storage.RemoveFromQueue(context.WithoutCancel(ctx), w.entry.Username); err != nil {
		q.logger.Error("failed to remove queue entry after search failure",
			slog.String("username", w.entry.Username),
			slog.String("error", err.Error()),
		)
	}
	q.logger.Warn("search aborted",
		slog.String("username", w.entry.Username),
		slog.String("error", cause.Error()),
	)
	return cause
}

// dropLocked removes w from the in-process queue and ends its search
func (q *Queue) dropLocked(w *waiter, reason error) {
	delete(q.waiters, w.entry.Username)
	w.reason = reason
	close(w.done)
	metrics.QueueLeft()
}

func (q *Queue) notifyLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
