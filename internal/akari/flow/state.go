package flow

// state.go holds the per-user multi-turn session: which tool is pending,
// what has been collected so far, and what is still missing. Sessions live
// in memory only. A restart forgets half-finished flows, which is the right
// failure mode for a conversation the user can simply restart.

import (
	"sync"
	"time"

	"github.com/mkoriyama/Akari/internal/akari/intent"
)

// DefaultSessionTTL bounds how long a half-finished flow waits for the next
// reply. A message that arrives later than this starts fresh instead of
// being swallowed by a flow the user has long forgotten about.
const DefaultSessionTTL = 5 * time.Minute

// Stage names a step of the multi-turn execution flow.
type Stage string

const (
	// StageCollecting means the orchestrator is asking for missing
	// parameters, one per turn.
	StageCollecting Stage = "collecting_parameters"

	// StageAwaitingConfirmation means a preview was shown and the next
	// reply decides: run, cancel, or change a field.
	StageAwaitingConfirmation Stage = "awaiting_confirmation"

	// StageAwaitingModification means the user asked to change a field
	// without saying what the new value is.
	StageAwaitingModification Stage = "awaiting_modification"

	// StageExecuting and StageCancelled are terminal. They appear in logs
	// but are never stored: reaching either one clears the session.
	StageExecuting Stage = "executing"
	StageCancelled Stage = "cancelled"
)

// State is one user's pending flow. At most one exists per user; starting a
// new flow replaces whatever was there.
type State struct {
	UserID        string
	Tool          intent.Intent
	OriginalQuery string                 // the message that started the flow
	Collected     map[string]string      // parameter name -> value so far
	Missing       []intent.ParameterSpec // still to ask for, required first
	Stage         Stage
	CreatedAt     time.Time
}

func (s *State) clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Collected = make(map[string]string, len(s.Collected))
	for k, v := range s.Collected {
		c.Collected[k] = v
	}
	c.Missing = append([]intent.ParameterSpec(nil), s.Missing...)
	return &c
}

// userSlot is the unit the store tracks per user: the session itself plus
// the mutex that serialises that user's turns. They share a lifecycle, so
// they share a slot: it exists while the user has a session or a turn in
// flight and is reclaimed when both are gone.
type userSlot struct {
	turn    sync.Mutex // held for the duration of one turn
	refs    int        // turns holding or waiting on the lock
	state   *State
	touched time.Time // last Put, drives TTL expiry
}

// StateStore keeps flow sessions keyed by user ID and hands out per-user
// turn locks. All methods are safe for concurrent use; Get and Put return
// and accept copies, so callers never share memory with the store.
type StateStore struct {
	mu    sync.Mutex
	slots map[string]*userSlot
	ttl   time.Duration

	now func() time.Time // test hook
}

// NewStateStore returns an empty store. A non-positive ttl selects
// DefaultSessionTTL.
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &StateStore{
		slots: make(map[string]*userSlot),
		ttl:   ttl,
		now:   time.Now,
	}
}

// LockUser blocks until the caller owns userID's turn lock, then returns the
// release func. Holding the lock for the whole turn is what serialises stage
// transitions per user; different users proceed independently.
func (st *StateStore) LockUser(userID string) (unlock func()) {
	st.mu.Lock()
	slot := st.slots[userID]
	if slot == nil {
		slot = &userSlot{}
		st.slots[userID] = slot
	}
	slot.refs++
	st.mu.Unlock()

	slot.turn.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.turn.Unlock()
			st.mu.Lock()
			slot.refs--
			if slot.refs == 0 && slot.state == nil {
				delete(st.slots, userID)
			}
			st.mu.Unlock()
		})
	}
}

// Get returns a copy of userID's session, or nil when none exists. Sessions
// older than the TTL are dropped on read, so an abandoned flow cannot
// swallow a message sent ten minutes later.
func (st *StateStore) Get(userID string) *State {
	st.mu.Lock()
	defer st.mu.Unlock()
	slot := st.slots[userID]
	if slot == nil || slot.state == nil {
		return nil
	}
	if st.now().Sub(slot.touched) > st.ttl {
		slot.state = nil
		if slot.refs == 0 {
			delete(st.slots, userID)
		}
		return nil
	}
	return slot.state.clone()
}

// Put stores s as its user's session, replacing any previous one and
// refreshing the TTL.
func (st *StateStore) Put(s *State) {
	if s == nil || s.UserID == "" {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	slot := st.slots[s.UserID]
	if slot == nil {
		slot = &userSlot{}
		st.slots[s.UserID] = slot
	}
	slot.state = s.clone()
	slot.touched = st.now()
}

// Clear drops userID's session, if any.
func (st *StateStore) Clear(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	slot := st.slots[userID]
	if slot == nil {
		return
	}
	slot.state = nil
	if slot.refs == 0 {
		delete(st.slots, userID)
	}
}

// Active reports whether userID has a live (non-expired) session.
func (st *StateStore) Active(userID string) bool {
	return st.Get(userID) != nil
}

// Len reports how many users currently have a live session.
func (st *StateStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	n := 0
	for _, slot := range st.slots {
		if slot.state != nil && now.Sub(slot.touched) <= st.ttl {
			n++
		}
	}
	return n
}
