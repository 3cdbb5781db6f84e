package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chessgame-go/internal/dependencies/mocks"
	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/storage/memory"
	"github.com/mcoot/chessgame-go/internal/testutil"
)

type QueueSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	queue   *Queue
	ctx     context.Context
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func (s *QueueSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	s.queue = New(s.storage, s.clock, cfg, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *QueueSuite) enqueue(username string, rating int) *Ticket {
	ticket, err := s.queue.Enqueue(s.ctx, username, model.SessionID("sess-"+username), rating)
	s.Require().NoError(err)
	return ticket
}

type searchResult struct {
	username string
	match    *Match
	err      error
}

func (s *QueueSuite) search(ctx context.Context, ticket *Ticket) <-chan searchResult {
	ch := make(chan searchResult, 1)
	go func() {
		m, err := ticket.FindMatch(ctx)
		ch <- searchResult{username: ticket.Entry().Username, match: m, err: err}
	}()
	return ch
}

// Tolerance tests

func (s *QueueSuite) TestToleranceWidensEveryInterval() {
	start := s.clock.Now()
	s.Equal(50, s.queue.Tolerance(start, start))
	s.Equal(50, s.queue.Tolerance(start, start.Add(4900*time.Millisecond)))
	s.Equal(100, s.queue.Tolerance(start, start.Add(5*time.Second)))
	s.Equal(150, s.queue.Tolerance(start, start.Add(12*time.Second)))
}

func (s *QueueSuite) TestToleranceIsNonDecreasing() {
	start := s.clock.Now()
	prev := s.queue.Tolerance(start, start.Add(-time.Second))
	for d := time.Duration(0); d < time.Minute; d += 700 * time.Millisecond {
		cur := s.queue.Tolerance(start, start.Add(d))
		s.GreaterOrEqual(cur, prev)
		prev = cur
	}
}

// Enqueue tests

func (s *QueueSuite) TestEnqueueIsIdempotent() {
	s.enqueue("alice", 1200)

	_, err := s.queue.Enqueue(s.ctx, "alice", "sess-alice", 1200)
	s.ErrorIs(err, model.ErrAlreadyQueued)

	s.Equal(1, s.queue.Len())
	snapshot, err := s.storage.SnapshotQueue(s.ctx)
	s.Require().NoError(err)
	s.Len(snapshot, 1)
	s.True(s.queue.IsQueued("alice", "sess-alice"))
}

func (s *QueueSuite) TestEnqueueFromNewSessionReplacesOld() {
	old := s.search(s.ctx, s.enqueue("alice", 1200))

	_, err := s.queue.Enqueue(s.ctx, "alice", "sess-new", 1200)
	s.Require().NoError(err)

	res := <-old
	s.ErrorIs(res.err, ErrLeftQueue)
	s.True(s.queue.IsQueued("alice", "sess-new"))
	s.False(s.queue.IsQueued("alice", "sess-alice"))

	snapshot, err := s.storage.SnapshotQueue(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(snapshot, 1)
	s.Equal(model.SessionID("sess-new"), snapshot[0].SessionID)
}

func (s *QueueSuite) TestEnqueueReplacesStaleStoredEntry() {
	_, err := s.storage.EnqueuePlayer(s.ctx, model.QueueEntry{Username: "alice", SessionID: "dead", Rating: 900})
	s.Require().NoError(err)

	s.enqueue("alice", 1200)

	snapshot, err := s.storage.SnapshotQueue(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(snapshot, 1)
	s.Equal(1200, snapshot[0].Rating)
	s.Equal(model.SessionID("sess-alice"), snapshot[0].SessionID)
}

// FindMatch tests

func (s *QueueSuite) TestEqualRatingsMatchImmediately() {
	alice := s.search(s.ctx, s.enqueue("alice", 1200))
	bob := s.search(s.ctx, s.enqueue("bob", 1200))

	results := []searchResult{<-alice, <-bob}

	var matches []*Match
	for _, r := range results {
		if r.match != nil {
			matches = append(matches, r.match)
		} else {
			s.ErrorIs(r.err, ErrMatched)
		}
	}
	s.Require().Len(matches, 1)
	pair := []string{matches[0].Requester.Username, matches[0].Opponent.Username}
	s.ElementsMatch([]string{"alice", "bob"}, pair)
	s.Equal(50, matches[0].Tolerance)

	snapshot, err := s.storage.SnapshotQueue(s.ctx)
	s.Require().NoError(err)
	s.Empty(snapshot)
	s.Equal(0, s.queue.Len())
}

func (s *QueueSuite) TestOutOfToleranceWaitsForWidening() {
	ticket := s.enqueue("alice", 1200)
	s.enqueue("bob", 1300)
	res := s.search(s.ctx, ticket)

	select {
	case r := <-res:
		s.Failf("matched too early", "%+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	// After 5s alice accepts a 100 point gap
	s.clock.Advance(5 * time.Second)

	select {
	case r := <-res:
		s.Require().NoError(r.err)
		s.Equal("bob", r.match.Opponent.Username)
		s.Equal(100, r.match.Tolerance)
	case <-time.After(2 * time.Second):
		s.Fail("expected a match after widening")
	}
}

func (s *QueueSuite) TestPicksClosestRating() {
	s.enqueue("bob", 1240)
	s.enqueue("carol", 1210)
	ticket := s.enqueue("alice", 1200)

	m, err := ticket.FindMatch(s.ctx)
	s.Require().NoError(err)
	s.Equal("carol", m.Opponent.Username)
	s.True(s.queue.IsQueued("bob", "sess-bob"))
}

func (s *QueueSuite) TestTieGoesToLongestWaiter() {
	s.enqueue("bob", 1210)
	s.clock.Advance(time.Second)
	s.enqueue("carol", 1190)
	ticket := s.enqueue("alice", 1200)

	m, err := ticket.FindMatch(s.ctx)
	s.Require().NoError(err)
	s.Equal("bob", m.Opponent.Username)
}

func (s *QueueSuite) TestIgnoresStoredEntriesWithoutSearch() {
	_, err := s.storage.EnqueuePlayer(s.ctx, model.QueueEntry{Username: "ghost", SessionID: "dead", Rating: 1200, EnqueuedAt: s.clock.Now()})
	s.Require().NoError(err)
	ticket := s.enqueue("alice", 1200)

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()

	_, err = ticket.FindMatch(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *QueueSuite) TestEnqueueWakesWaitingSearch() {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Hour
	s.queue = New(s.storage, s.clock, cfg, testutil.NopLogger())

	res := s.search(s.ctx, s.enqueue("alice", 1200))
	time.Sleep(10 * time.Millisecond)
	s.enqueue("bob", 1210)

	// bob never searches, so only the wakeup can pair them
	select {
	case r := <-res:
		s.Require().NoError(r.err)
		s.Equal("bob", r.match.Opponent.Username)
	case <-time.After(time.Second):
		s.Fail("enqueue did not wake the waiting search")
	}
}

// Leave tests

func (s *QueueSuite) TestLeaveEndsSearch() {
	res := s.search(s.ctx, s.enqueue("alice", 1200))

	s.Require().NoError(s.queue.Leave(s.ctx, "alice", "sess-alice"))

	r := <-res
	s.ErrorIs(r.err, ErrLeftQueue)
	s.False(s.queue.IsQueued("alice", "sess-alice"))

	snapshot, err := s.storage.SnapshotQueue(s.ctx)
	s.Require().NoError(err)
	s.Empty(snapshot)

	// Idempotent
	s.NoError(s.queue.Leave(s.ctx, "alice", "sess-alice"))
}

func (s *QueueSuite) TestLeaveFromOtherSessionIsIgnored() {
	s.enqueue("alice", 1200)

	s.Require().NoError(s.queue.Leave(s.ctx, "alice", "sess-stale"))
	s.True(s.queue.IsQueued("alice", "sess-alice"))
}

func (s *QueueSuite) TestTicketReusedAfterMatch() {
	ticket := s.enqueue("alice", 1200)
	s.enqueue("bob", 1200)

	_, err := ticket.FindMatch(s.ctx)
	s.Require().NoError(err)

	_, err = ticket.FindMatch(s.ctx)
	s.ErrorIs(err, ErrMatched)
}

func (s *QueueSuite) TestCancelledSearchLeavesQueue() {
	ticket := s.enqueue("alice", 1200)
	ctx, cancel := context.WithCancel(s.ctx)
	res := s.search(ctx, ticket)

	cancel()

	r := <-res
	s.ErrorIs(r.err, context.Canceled)
	s.Equal(0, s.queue.Len())
	snapshot, err := s.storage.SnapshotQueue(s.ctx)
	s.Require().NoError(err)
	s.Empty(snapshot)
}

// Concurrency

func (s *QueueSuite) TestConcurrentSearchesNeverShareAnEntry() {
	const players = 20
	tickets := make([]*Ticket, 0, players)
	for i := 0; i < players; i++ {
		tickets = append(tickets, s.enqueue(fmt.Sprintf("p%02d", i), 1200+i%3))
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		matches []*Match
		claimed int
	)
	for _, ticket := range tickets {
		wg.Add(1)
		go func(ticket *Ticket) {
			defer wg.Done()
			name := ticket.Entry().Username
			m, err := ticket.FindMatch(ctx)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				matches = append(matches, m)
			case errors.Is(err, ErrMatched):
				claimed++
			default:
				s.Failf("unexpected search error", "%s: %v", name, err)
			}
		}(ticket)
	}
	wg.Wait()

	s.Len(matches, players/2)
	s.Equal(players/2, claimed)

	seen := map[string]int{}
	for _, m := range matches {
		seen[m.Requester.Username]++
		seen[m.Opponent.Username]++
		s.LessOrEqual(abs(m.Requester.Rating-m.Opponent.Rating), m.Tolerance)
	}
	s.Len(seen, players)
	for name, n := range seen {
		s.Equal(1, n, name)
	}
}

// Storage failure tests

var errStoreDown = errors.New("store unavailable")

// flakyStorage fails selected queue operations on demand
type flakyStorage struct {
	*memory.Storage
	failSnapshot atomic.Bool
	failEnqueue  atomic.Bool
}

func (f *flakyStorage) SnapshotQueue(ctx context.Context) ([]model.QueueEntry, error) {
	if f.failSnapshot.Load() {
		return nil, errStoreDown
	}
	return f.Storage.SnapshotQueue(ctx)
}

func (f *flakyStorage) EnqueuePlayer(ctx context.Context, entry model.QueueEntry) (bool, error) {
	if f.failEnqueue.Load() {
		return false, errStoreDown
	}
	return f.Storage.EnqueuePlayer(ctx, entry)
}

func (s *QueueSuite) flakyQueue() (*Queue, *flakyStorage) {
	store := &flakyStorage{Storage: s.storage}
	cfg := DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	return New(store, s.clock, cfg, testutil.NopLogger()), store
}

func (s *QueueSuite) TestFailedSearchLeavesQueue() {
	queue, store := s.flakyQueue()

	ticket, err := queue.Enqueue(s.ctx, "alice", "sess-alice", 1200)
	s.Require().NoError(err)

	store.failSnapshot.Store(true)
	_, err = ticket.FindMatch(s.ctx)
	s.ErrorIs(err, errStoreDown)

	s.False(queue.IsQueued("alice", "sess-alice"))
	s.Equal(0, queue.Len())
	snapshot, err := s.storage.SnapshotQueue(s.ctx)
	s.Require().NoError(err)
	s.Empty(snapshot)

	// The player can search again once the store recovers
	store.failSnapshot.Store(false)
	_, err = queue.Enqueue(s.ctx, "alice", "sess-alice", 1200)
	s.NoError(err)
}

func (s *QueueSuite) TestFailedSearchCannotBeMatched() {
	queue, store := s.flakyQueue()

	alice, err := queue.Enqueue(s.ctx, "alice", "sess-alice", 1200)
	s.Require().NoError(err)
	store.failSnapshot.Store(true)
	_, err = alice.FindMatch(s.ctx)
	s.Require().Error(err)
	store.failSnapshot.Store(false)

	bob, err := queue.Enqueue(s.ctx, "bob", "sess-bob", 1200)
	s.Require().NoError(err)
	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()
	_, err = bob.FindMatch(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *QueueSuite) TestFailedReplaceKeepsOlderSearch() {
	queue, store := s.flakyQueue()

	ticket, err := queue.Enqueue(s.ctx, "alice", "sess-old", 1200)
	s.Require().NoError(err)
	old := s.search(s.ctx, ticket)

	store.failEnqueue.Store(true)
	_, err = queue.Enqueue(s.ctx, "alice", "sess-new", 1200)
	s.ErrorIs(err, errStoreDown)
	s.True(queue.IsQueued("alice", "sess-old"))

	s.Require().NoError(queue.Leave(s.ctx, "alice", "sess-old"))
	res := <-old
	s.ErrorIs(res.err, ErrLeftQueue)
}
