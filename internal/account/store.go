package account

import "sync"

// Store is the in-memory registry of all known accounts, keyed by account
// id. Grounded on internal/balance/multi_user.go's iterate-all-accounts
// shape, narrowed from per-user balances to per-account trading state.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

func NewStore() *Store {
	return &Store{accounts: make(map[string]*Account)}
}

func (s *Store) Put(a *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func (s *Store) Get(id string) (*Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// All returns every account, in no particular order.
func (s *Store) All() []*Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out
}

// ByRole returns every account with the given role.
func (s *Store) ByRole(role Role) []*Account {
	var out []*Account
	for _, a := range s.All() {
		if a.Role == role {
			out = append(out, a)
		}
	}
	return out
}

// Followers returns enabled followers targeting masterID.
func (s *Store) Followers(masterID string) []*Account {
	var out []*Account
	for _, a := range s.ByRole(RoleFollower) {
		if a.Follower.Enabled && a.Follower.FollowMasterID == masterID {
			out = append(out, a)
		}
	}
	return out
}

// LoggedIn returns every account not in loggedOut or disabled state.
func (s *Store) LoggedIn() []*Account {
	var out []*Account
	for _, a := range s.All() {
		switch a.GetState() {
		case StateLoggedOut, StateDisabled:
			continue
		default:
			out = append(out, a)
		}
	}
	return out
}

// TotalEquity sums Telemetry.Equity across logged-in accounts, used by the
// global risk stop (spec.md §4.B step 5).
func (s *Store) TotalEquity() float64 {
	var total float64
	for _, a := range s.LoggedIn() {
		total += a.Snapshot().Telemetry.Equity
	}
	return total
}
