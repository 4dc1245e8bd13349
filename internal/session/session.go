// Package session holds the per-user state a signed-in client works with:
// the latest full snapshots of the ledger and the figures derived from them.
package session

import (
	"sync"
	"time"

	"finledger/internal/core"
	"finledger/internal/ledger"
)

type Identity struct {
	UserID string
	Name   string
	Email  string
}

type Snapshot struct {
	Transactions      []core.Transaction
	ScheduledExpenses []core.ScheduledItem
	ScheduledIncomes  []core.ScheduledItem
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Transactions:      append([]core.Transaction(nil), s.Transactions...),
		ScheduledExpenses: append([]core.ScheduledItem(nil), s.ScheduledExpenses...),
		ScheduledIncomes:  append([]core.ScheduledItem(nil), s.ScheduledIncomes...),
	}
}

// Ticket identifies one load. Results are applied only while the session is
// still in the epoch the load started in, and never over a newer load.
type Ticket struct {
	Epoch uint64
	Seq   uint64
}

// View is a consistent copy of the session's state.
type View struct {
	Identity  Identity
	SignedIn  bool
	Loaded    bool
	Version   uint64
	Snapshot  Snapshot
	Dashboard core.Dashboard
}

type Session struct {
	mu       sync.RWMutex
	identity Identity
	signedIn bool
	loaded   bool

	epoch   uint64
	seq     uint64
	applied uint64
	version uint64

	snapshot Snapshot
	inflight map[string]uint64
	guards   uint64
}

func New() *Session {
	return &Session{inflight: make(map[string]uint64)}
}

// SignIn resets all state for id and starts a new epoch.
func (s *Session) SignIn(id Identity) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.identity = id
	s.signedIn = true
	return s.epoch
}

// SignOut clears every snapshot and derived value. Loads started before the
// call are discarded when they complete.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.epoch++
	s.identity = Identity{}
	s.signedIn = false
	s.loaded = false
	s.applied = 0
	s.version = 0
	s.snapshot = Snapshot{}
	s.inflight = make(map[string]uint64)
}

func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.signedIn
}

// Loaded reports whether a full snapshot has been applied since sign-in.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Begin issues a ticket for a new load. ok is false when nobody is signed in.
func (s *Session) Begin() (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signedIn {
		return Ticket{}, false
	}
	s.seq++
	return Ticket{Epoch: s.epoch, Seq: s.seq}, true
}

func (s *Session) acceptLocked(t Ticket) bool {
	if !s.signedIn || t.Epoch != s.epoch || t.Seq < s.applied {
		return false
	}
	s.applied = t.Seq
	s.version++
	return true
}

// ApplySnapshot replaces all three collections wholesale. It reports whether
// the snapshot was accepted.
func (s *Session) ApplySnapshot(t Ticket, snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptLocked(t) {
		return false
	}
	s.snapshot = snap.clone()
	s.loaded = true
	return true
}

func (s *Session) ApplyTransactions(t Ticket, txs []core.Transaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptLocked(t) {
		return false
	}
	s.snapshot.Transactions = append([]core.Transaction(nil), txs...)
	return true
}

// ApplyScheduled replaces the pending set for one direction.
func (s *Session) ApplyScheduled(t Ticket, direction core.Direction, items []core.ScheduledItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if direction.Validate() != nil || !s.acceptLocked(t) {
		return false
	}
	cp := append([]core.ScheduledItem(nil), items...)
	if direction == core.Income {
		s.snapshot.ScheduledIncomes = cp
	} else {
		s.snapshot.ScheduledExpenses = cp
	}
	return true
}

// Guard latches key until release is called. A second caller with the same
// key gets ok == false. Signing out drops every latch.
func (s *Session) Guard(key string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return func() {}, false
	}
	s.guards++
	token := s.guards
	s.inflight[key] = token
	inflight := s.inflight

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if inflight[key] == token {
				delete(inflight, key)
			}
		})
	}, true
}

// View returns copies of the snapshots with the dashboard recomputed for the
// day containing now.
func (s *Session) View(now time.Time) View {
	s.mu.RLock()
	v := View{
		Identity: s.identity,
		SignedIn: s.signedIn,
		Loaded:   s.loaded,
		Version:  s.version,
		Snapshot: s.snapshot.clone(),
	}
	s.mu.RUnlock()

	if v.SignedIn {
		v.Dashboard = ledger.Dashboard(v.Snapshot.Transactions, core.Today(now))
	}
	return v
}

// GuardKey builds the latch key for an operation on one entity.
func GuardKey(op, id string) string {
	return op + ":" + id
}
