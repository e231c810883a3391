package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore is an in-memory Store for exercising the guard, tracker,
// and service without a database. Individual operations can be made to
// fail via fail(op).
type fakeStore struct {
	mu     sync.Mutex
	users  map[string]*User
	failOn map[string]bool

	unlockCalls    int
	incrementCalls int
	now            func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]*User),
		failOn: make(map[string]bool),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *fakeStore) addUser(id, username, passwordHash string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	s.users[id] = u
	return u
}

func (s *fakeStore) fail(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = true
}

func (s *fakeStore) user(id string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *fakeStore) opErr(op string) error {
	if s.failOn[op] {
		return errStoreDown
	}
	return nil
}

func (s *fakeStore) HasAnyUser(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.opErr("HasAnyUser"); err != nil {
		return false, err
	}
	return len(s.users) > 0, nil
}

func (s *fakeStore) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	s.mu.Lock()
	if err := s.opErr("CreateUser"); err != nil {
		s.mu.Unlock()
		return User{}, err
	}
	s.mu.Unlock()

	u := s.addUser("user-"+username, username, passwordHash)
	return *u, nil
}

func (s *fakeStore) FindActiveByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.opErr("FindActiveByUsername"); err != nil {
		return nil, err
	}

	for _, u := range s.users {
		if u.Username == username && u.IsActive {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindActiveByID(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.opErr("FindActiveByID"); err != nil {
		return nil, err
	}

	u, ok := s.users[id]
	if !ok || !u.IsActive {
		return nil, nil
	}
	copied := *u
	copied.PasswordHash = ""
	return &copied, nil
}

func (s *fakeStore) UpdateLastLogin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.opErr("UpdateLastLogin"); err != nil {
		return err
	}

	if u, ok := s.users[id]; ok {
		now := s.now()
		u.LastLogin = &now
	}
	return nil
}

func (s *fakeStore) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.opErr("IncrementFailedAttempts"); err != nil {
		return 0, err
	}

	s.incrementCalls++
	u, ok := s.users[id]
	if !ok {
		return 0, errStoreDown
	}
	u.FailedLoginAttempts++
	now := s.now()
	u.LastFailedAttempt = &now
	return u.FailedLoginAttempts, nil
}

func (s *fakeStore) ClearFailedAttempts(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.opErr("ClearFailedAttempts"); err != nil {
		return err
	}

	if u, ok := s.users[id]; ok {
		u.FailedLoginAttempts = 0
		u.LastFailedAttempt = nil
	}
	return nil
}

func (s *fakeStore) Lock(ctx context.Context, id string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.opErr("Lock"); err != nil {
		return err
	}

	if u, ok := s.users[id]; ok {
		until := s.now().Add(duration)
		u.IsLocked = true
		u.LockedUntil = &until
	}
	return nil
}

func (s *fakeStore) Unlock(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.opErr("Unlock"); err != nil {
		return err
	}

	s.unlockCalls++
	if u, ok := s.users[id]; ok {
		u.IsLocked = false
		u.LockedUntil = nil
		u.FailedLoginAttempts = 0
		u.LastFailedAttempt = nil
	}
	return nil
}

func (s *fakeStore) GetLockInfo(ctx context.Context, id string) (LockInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.opErr("GetLockInfo"); err != nil {
		return LockInfo{}, err
	}

	u, ok := s.users[id]
	if !ok {
		return LockInfo{}, nil
	}
	return LockInfo{
		IsLocked:            u.IsLocked,
		LockedUntil:         u.LockedUntil,
		FailedLoginAttempts: u.FailedLoginAttempts,
	}, nil
}
