package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/ledger"
)

var ErrNotSignedIn = errors.New("not signed in")

// Loader reads a user's full collections.
type Loader interface {
	ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
	ListScheduled(ctx context.Context, userID string, direction core.Direction) ([]core.ScheduledItem, error)
}

// Store keeps one Session per signed-in user.
type Store struct {
	loader Loader

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(loader Loader) *Store {
	return &Store{
		loader:   loader,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for id, signing in and loading the snapshots on
// first use.
func (st *Store) Open(ctx context.Context, id Identity) (*Session, error) {
	if id.UserID == "" {
		return nil, core.ErrEmptyUser
	}

	st.mu.Lock()
	sess, ok := st.sessions[id.UserID]
	if !ok {
		sess = New()
		sess.SignIn(id)
		st.sessions[id.UserID] = sess
	}
	st.mu.Unlock()

	if ok && sess.Loaded() {
		return sess, nil
	}
	if err := st.load(ctx, sess, id.UserID); err != nil {
		return nil, err
	}
	return sess, nil
}

func (st *Store) Get(userID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[userID]
	return sess, ok
}

// Refresh reloads the snapshots of an open session. Users without a session
// are skipped.
func (st *Store) Refresh(ctx context.Context, userID string) error {
	sess, ok := st.Get(userID)
	if !ok {
		return nil
	}
	return st.load(ctx, sess, userID)
}

func (st *Store) load(ctx context.Context, sess *Session, userID string) error {
	ticket, ok := sess.Begin()
	if !ok {
		return ErrNotSignedIn
	}

	snap, err := st.fetch(ctx, userID)
	if err != nil {
		return err
	}

	if !sess.ApplySnapshot(ticket, snap) {
		slog.DebugContext(ctx, "Discarded stale snapshot", "user_id", userID, "epoch", ticket.Epoch, "seq", ticket.Seq)
	}
	return nil
}

func (st *Store) fetch(ctx context.Context, userID string) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := st.loader.ListTransactions(gctx, userID)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		snap.Transactions = txs
		return nil
	})
	g.Go(func() error {
		items, err := st.loader.ListScheduled(gctx, userID, core.Expense)
		if err != nil {
			return fmt.Errorf("load scheduled expenses: %w", err)
		}
		snap.ScheduledExpenses = items
		return nil
	})
	g.Go(func() error {
		items, err := st.loader.ListScheduled(gctx, userID, core.Income)
		if err != nil {
			return fmt.Errorf("load scheduled incomes: %w", err)
		}
		snap.ScheduledIncomes = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Snapshot returns the user's collections, from the open session when it is
// loaded and straight from the loader otherwise.
func (st *Store) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	if sess, ok := st.Get(userID); ok {
		if v := sess.View(time.Now()); v.Loaded {
			return v.Snapshot, nil
		}
	}
	return st.fetch(ctx, userID)
}

// Close signs the user out and forgets the session.
func (st *Store) Close(userID string) {
	st.mu.Lock()
	sess, ok := st.sessions[userID]
	delete(st.sessions, userID)
	st.mu.Unlock()

	if ok {
		sess.SignOut()
		slog.Info("Session closed", "user_id", userID)
	}
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Dashboard returns the user's dashboard for the day containing now, from
// the open session when there is one.
func (st *Store) Dashboard(ctx context.Context, userID string, now time.Time) (core.Dashboard, error) {
	if sess, ok := st.Get(userID); ok {
		if v := sess.View(now); v.Loaded {
			return v.Dashboard, nil
		}
	}
	txs, err := st.loader.ListTransactions(ctx, userID)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("load transactions: %w", err)
	}
	return ledger.Dashboard(txs, core.Today(now)), nil
}

// OnChange refreshes the user's session after a local mutation.
func (st *Store) OnChange(ctx context.Context, userID string) {
	if err := st.Refresh(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Session refresh failed", "user_id", userID, "error", err)
	}
}

// HandleEvent refreshes sessions when another process changed the ledger.
func (st *Store) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	if !event.ChangesLedger() {
		return nil
	}
	return st.Refresh(ctx, event.UserID)
}
