package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/amqp"
	"finledger/internal/core"
)

var now = time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC)

func txn(id string, dir core.Direction, cents int64, y, m, d int) core.Transaction {
	return core.Transaction{
		ID:          id,
		UserID:      "u1",
		Description: id,
		Amount:      core.Money{Cents: cents},
		Date:        core.NewDate(y, m, d),
		Type:        dir,
	}
}

func scenario() Snapshot {
	return Snapshot{
		Transactions: []core.Transaction{
			txn("a", core.Income, 100000, 2024, 1, 1),
			txn("b", core.Expense, 20000, 2024, 1, 15),
			txn("c", core.Expense, 5000, 2024, 2, 1),
		},
		ScheduledExpenses: []core.ScheduledItem{{ID: "s1", UserID: "u1", Direction: core.Expense, Amount: core.Money{Cents: 30000}, DueDate: core.NewDate(2024, 2, 5)}},
	}
}

func TestSessionView(t *testing.T) {
	s := New()
	s.SignIn(Identity{UserID: "u1", Name: "Ana"})

	ticket, ok := s.Begin()
	require.True(t, ok)
	require.True(t, s.ApplySnapshot(ticket, scenario()))

	v := s.View(now)
	assert.True(t, v.SignedIn)
	assert.True(t, v.Loaded)
	assert.Equal(t, "Ana", v.Identity.Name)
	assert.Len(t, v.Snapshot.Transactions, 3)
	assert.Equal(t, int64(80000), v.Dashboard.Balance.Cents)
	assert.Equal(t, int64(100000), v.Dashboard.MonthIncome.Cents)
	assert.Equal(t, int64(20000), v.Dashboard.MonthExpense.Cents)

	v.Snapshot.Transactions[0].Amount.Cents = 1
	assert.Equal(t, int64(80000), s.View(now).Dashboard.Balance.Cents, "views are copies")
}

func TestSignOutClearsState(t *testing.T) {
	s := New()
	s.SignIn(Identity{UserID: "u1"})
	ticket, _ := s.Begin()
	s.ApplySnapshot(ticket, scenario())

	s.SignOut()

	v := s.View(now)
	assert.False(t, v.SignedIn)
	assert.False(t, v.Loaded)
	assert.Empty(t, v.Snapshot.Transactions)
	assert.Empty(t, v.Snapshot.ScheduledExpenses)
	assert.True(t, v.Dashboard.Balance.IsZero())
	_, ok := s.Begin()
	assert.False(t, ok)
}

func TestLateResponseAfterSignOutIsIgnored(t *testing.T) {
	s := New()
	s.SignIn(Identity{UserID: "u1"})
	ticket, _ := s.Begin()

	s.SignOut()
	assert.False(t, s.ApplySnapshot(ticket, scenario()))
	assert.False(t, s.ApplyTransactions(ticket, scenario().Transactions))

	// Signing back in does not revive the old ticket either.
	s.SignIn(Identity{UserID: "u1"})
	assert.False(t, s.ApplySnapshot(ticket, scenario()))
	assert.Empty(t, s.View(now).Snapshot.Transactions)
}

func TestOlderLoadNeverOverwritesNewer(t *testing.T) {
	s := New()
	s.SignIn(Identity{UserID: "u1"})
	older, _ := s.Begin()
	newer, _ := s.Begin()

	fresh := scenario()
	require.True(t, s.ApplySnapshot(newer, fresh))
	assert.False(t, s.ApplySnapshot(older, Snapshot{}))
	assert.Len(t, s.View(now).Snapshot.Transactions, 3)
}

func TestApplyScheduled(t *testing.T) {
	s := New()
	s.SignIn(Identity{UserID: "u1"})
	ticket, _ := s.Begin()

	incomes := []core.ScheduledItem{{ID: "i1", Direction: core.Income}}
	require.True(t, s.ApplyScheduled(ticket, core.Income, incomes))
	assert.False(t, s.ApplyScheduled(ticket, core.Direction("bogus"), incomes))

	v := s.View(now)
	assert.Len(t, v.Snapshot.ScheduledIncomes, 1)
	assert.Empty(t, v.Snapshot.ScheduledExpenses)
}

func TestGuard(t *testing.T) {
	s := New()
	s.SignIn(Identity{UserID: "u1"})
	key := GuardKey("confirm", "s1")

	release, ok := s.Guard(key)
	require.True(t, ok)

	_, again := s.Guard(key)
	assert.False(t, again, "second confirm while the first is in flight")

	_, other := s.Guard(GuardKey("confirm", "s2"))
	assert.True(t, other)

	release()
	release()
	_, ok = s.Guard(key)
	assert.True(t, ok)
}

func TestGuardConcurrent(t *testing.T) {
	s := New()
	s.SignIn(Identity{UserID: "u1"})

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Guard("delete:x"); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestGuardReleasedBySignOut(t *testing.T) {
	s := New()
	s.SignIn(Identity{UserID: "u1"})
	stale, _ := s.Guard("confirm:s1")

	s.SignOut()
	s.SignIn(Identity{UserID: "u1"})

	fresh, ok := s.Guard("confirm:s1")
	require.True(t, ok)
	stale()
	_, ok = s.Guard("confirm:s1")
	assert.False(t, ok, "a release from the previous epoch leaves the new latch alone")
	fresh()
}

type fakeLoader struct {
	mu      sync.Mutex
	snap    Snapshot
	err     error
	calls   int
	started chan struct{}
	blockCh chan struct{}
}

func (f *fakeLoader) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	if f.blockCh != nil {
		f.started <- struct{}{}
		<-f.blockCh
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap.Transactions, f.err
}

func (f *fakeLoader) ListScheduled(ctx context.Context, userID string, direction core.Direction) ([]core.ScheduledItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if direction == core.Income {
		return f.snap.ScheduledIncomes, f.err
	}
	return f.snap.ScheduledExpenses, f.err
}

func TestStoreOpenAndRefresh(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{snap: scenario()}
	st := NewStore(loader)

	sess, err := st.Open(ctx, Identity{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, sess.View(now).Snapshot.ScheduledExpenses, 1)

	again, err := st.Open(ctx, Identity{UserID: "u1"})
	require.NoError(t, err)
	assert.Same(t, sess, again)
	assert.Equal(t, 1, loader.calls, "loaded sessions are reused")

	loader.mu.Lock()
	loader.snap.Transactions = append(loader.snap.Transactions, txn("d", core.Income, 500, 2024, 1, 20))
	loader.mu.Unlock()
	require.NoError(t, st.Refresh(ctx, "u1"))
	assert.Len(t, sess.View(now).Snapshot.Transactions, 4)

	require.NoError(t, st.Refresh(ctx, "nobody"))
	assert.Equal(t, 1, st.Len())
}

func TestStoreOpenErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewStore(&fakeLoader{}).Open(ctx, Identity{})
	assert.ErrorIs(t, err, core.ErrEmptyUser)

	boom := errors.New("db down")
	_, err = NewStore(&fakeLoader{err: boom}).Open(ctx, Identity{UserID: "u1"})
	assert.ErrorIs(t, err, boom)
}

func TestStoreCloseDuringLoad(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{snap: scenario()}
	st := NewStore(loader)
	sess, err := st.Open(ctx, Identity{UserID: "u1"})
	require.NoError(t, err)

	loader.started = make(chan struct{}, 1)
	loader.blockCh = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- st.load(ctx, sess, "u1") }()
	<-loader.started

	st.Close("u1")
	close(loader.blockCh)
	require.NoError(t, <-done)

	v := sess.View(now)
	assert.False(t, v.SignedIn)
	assert.Empty(t, v.Snapshot.Transactions, "the late load did not repopulate the signed-out session")
	_, ok := st.Get("u1")
	assert.False(t, ok)
}

func TestStoreDashboard(t *testing.T) {
	ctx := context.Background()
	st := NewStore(&fakeLoader{snap: scenario()})

	d, err := st.Dashboard(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(80000), d.Balance.Cents, "computed without a session")

	_, err = st.Open(ctx, Identity{UserID: "u1"})
	require.NoError(t, err)
	d, err = st.Dashboard(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(80000), d.Balance.Cents)
}

func TestStoreHandleEvent(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{snap: scenario()}
	st := NewStore(loader)
	_, err := st.Open(ctx, Identity{UserID: "u1"})
	require.NoError(t, err)

	require.NoError(t, st.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventScheduledReminder, "u1", "s1")))
	assert.Equal(t, 1, loader.calls, "reminders do not reload")

	require.NoError(t, st.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventTransactionCreated, "u1", "t9")))
	assert.Equal(t, 2, loader.calls)
}

func TestStoreSnapshot(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{snap: scenario()}
	st := NewStore(loader)

	snap, err := st.Snapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 3)
	assert.Len(t, snap.ScheduledExpenses, 1)
	assert.Equal(t, 0, st.Len(), "reading does not open a session")

	_, err = st.Open(ctx, Identity{UserID: "u1"})
	require.NoError(t, err)
	calls := loader.calls

	snap, err = st.Snapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 3)
	assert.Equal(t, calls, loader.calls, "served from the open session")
}
