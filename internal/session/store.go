// Package session keeps the signed-in user, token, branch selection and
// registered-user directory of one storage partition, and mirrors writes
// made by other handles of that partition.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator checks credentials against a real credential service
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (User, string, error)
	Register(ctx context.Context, req RegisterRequest) error
}

// TokenSigner issues signed tokens in demo mode
type TokenSigner interface {
	Sign(id, email, role string) (string, error)
}

// Options configure a Store
type Options struct {
	Storage Storage // Required

	// Authenticator handles Login and Register. When nil the Store runs in
	// demo mode against its own registered-users list.
	Authenticator Authenticator

	Signer     TokenSigner // Required in demo mode
	BcryptCost int         // Demo directory hashing cost, default bcrypt.DefaultCost

	Logger   logrus.FieldLogger
	Now      func() time.Time
	OnChange func(key string) // Called after a change from another handle is applied
}

// Store is the session state of one handle
type Store struct {
	opts Options

	// persist serializes this store's writes so snapshots land in order.
	// The listener never takes it.
	persist sync.Mutex

	mu         sync.RWMutex
	user       *User
	token      string
	branch     string
	registered []User

	cancel context.CancelFunc
	done   chan struct{}
}

// New loads the partition, seeds the demo directory when running in demo
// mode and starts mirroring changes from other handles. Call Close to stop.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Storage == nil {
		return nil, errors.New("session: storage is required")
	}
	if opts.Authenticator == nil && opts.Signer == nil {
		return nil, errors.New("session: demo mode needs a token signer")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{opts: opts, branch: DefaultBranch, done: make(chan struct{})}

	lctx, cancel := context.WithCancel(context.Background())
	changes, err := opts.Storage.Subscribe(lctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	s.cancel = cancel

	if err := s.Refresh(ctx); err != nil {
		cancel()
		return nil, err
	}
	if s.demo() {
		if err := s.seed(ctx); err != nil {
			cancel()
			return nil, err
		}
	}

	go s.listen(changes)
	return s, nil
}

// Close stops mirroring changes
func (s *Store) Close() {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(time.Second):
	}
}

func (s *Store) demo() bool { return s.opts.Authenticator == nil }

func (s *Store) listen(changes <-chan Change) {
	defer close(s.done)
	for c := range changes {
		s.HandleChange(c)
	}
}

// User returns the current user, or nil
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token returns the current token, empty when logged out
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Branch returns the selected branch
func (s *Store) Branch() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.branch
}

// IsAuthenticated reports whether a user and token are present
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.token != ""
}

// RegisteredUsers returns the directory without password hashes
func (s *Store) RegisteredUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, len(s.registered))
	for i, u := range s.registered {
		out[i] = u.Public()
	}
	return out
}

// LoginWithToken stores an already authenticated user and token verbatim
func (s *Store) LoginWithToken(ctx context.Context, user User, token string) error {
	return s.setSession(ctx, user.Public(), token)
}

// Login authenticates identifier (email or username) and password, then
// stores the user and token. Unknown identifiers and wrong passwords both
// fail with ErrInvalidLogin.
func (s *Store) Login(ctx context.Context, identifier, password string) (User, error) {
	var (
		user  User
		token string
		err   error
	)
	if s.demo() {
		user, token, err = s.demoLogin(identifier, password)
	} else {
		user, token, err = s.opts.Authenticator.Login(ctx, identifier, password)
	}
	if err != nil {
		return User{}, err
	}
	user = user.Public()
	if err := s.setSession(ctx, user, token); err != nil {
		return User{}, err
	}
	s.opts.Logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("Session started")
	return user, nil
}

// Register creates an account. It does not log the new user in.
func (s *Store) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if s.demo() {
		if err := s.demoRegister(ctx, req); err != nil {
			return nil, err
		}
	} else if err := s.opts.Authenticator.Register(ctx, req); err != nil {
		return nil, err
	}
	return &RegisterResult{
		Success:  true,
		Email:    req.Email,
		Username: req.Username,
		Message:  "Registration successful! Please login.",
	}, nil
}

// Logout clears the current user and token. Branch and directory stay.
func (s *Store) Logout(ctx context.Context) error {
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	if err := s.opts.Storage.Delete(ctx, KeyCurrentUser); err != nil {
		return err
	}
	return s.opts.Storage.Delete(ctx, KeyToken)
}

// UpdateUser shallow-merges patch into the current user and persists it
func (s *Store) UpdateUser(ctx context.Context, patch map[string]any) (User, error) {
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.RLock()
	cur := s.user
	s.mu.RUnlock()
	if cur == nil {
		return User{}, ErrNotLoggedIn
	}

	merged, err := mergeUser(*cur, patch)
	if err != nil {
		return User{}, err
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	s.user = &merged
	s.mu.Unlock()

	if err := s.opts.Storage.Set(ctx, KeyCurrentUser, string(raw)); err != nil {
		return User{}, err
	}
	return merged, nil
}

// SetBranch selects a branch; empty selects the default
func (s *Store) SetBranch(ctx context.Context, branch string) error {
	if branch == "" {
		branch = DefaultBranch
	}
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.Lock()
	s.branch = branch
	s.mu.Unlock()
	return s.opts.Storage.Set(ctx, KeyBranch, branch)
}

// Refresh re-reads every tracked key from storage
func (s *Store) Refresh(ctx context.Context) error {
	st := s.opts.Storage

	userRaw, hasUser, err := st.Get(ctx, KeyCurrentUser)
	if err != nil {
		return err
	}
	token, _, err := st.Get(ctx, KeyToken)
	if err != nil {
		return err
	}
	branch, hasBranch, err := st.Get(ctx, KeyBranch)
	if err != nil {
		return err
	}
	regRaw, hasReg, err := st.Get(ctx, KeyRegisteredUsers)
	if err != nil {
		return err
	}

	var user *User
	if hasUser {
		user = s.decodeUser(userRaw)
	}
	if !hasBranch || branch == "" {
		branch = DefaultBranch
	}
	var registered []User
	if hasReg {
		registered = s.decodeUsers(regRaw)
	}

	s.mu.Lock()
	s.user = user
	s.token = token
	s.branch = branch
	s.registered = registered
	s.mu.Unlock()
	return nil
}

// HandleChange applies a change made through another handle
func (s *Store) HandleChange(c Change) {
	switch c.Key {
	case "":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			s.opts.Logger.WithError(err).Warn("Failed to reload cleared session storage")
		}
	case KeyCurrentUser:
		var user *User
		if !c.Deleted {
			user = s.decodeUser(c.Value)
		}
		s.mu.Lock()
		s.user = user
		s.mu.Unlock()
	case KeyToken:
		s.mu.Lock()
		s.token = c.Value
		if c.Deleted {
			s.token = ""
		}
		s.mu.Unlock()
	case KeyBranch:
		branch := c.Value
		if c.Deleted || branch == "" {
			branch = DefaultBranch
		}
		s.mu.Lock()
		s.branch = branch
		s.mu.Unlock()
	case KeyRegisteredUsers:
		var registered []User
		if !c.Deleted {
			registered = s.decodeUsers(c.Value)
		}
		s.mu.Lock()
		s.registered = registered
		s.mu.Unlock()
	default:
		return
	}
	s.opts.Logger.WithFields(logrus.Fields{"key": c.Key, "deleted": c.Deleted}).Debug("Mirrored session change")
	if s.opts.OnChange != nil {
		s.opts.OnChange(c.Key)
	}
}

func (s *Store) setSession(ctx context.Context, user User, token string) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.Lock()
	s.user = &user
	s.token = token
	s.mu.Unlock()

	if err := s.opts.Storage.Set(ctx, KeyCurrentUser, string(raw)); err != nil {
		return err
	}
	return s.opts.Storage.Set(ctx, KeyToken, token)
}

func (s *Store) decodeUser(raw string) *User {
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.opts.Logger.WithError(err).Warn("Ignoring malformed current user")
		return nil
	}
	u = u.Public()
	return &u
}

func (s *Store) decodeUsers(raw string) []User {
	var users []User
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		s.opts.Logger.WithError(err).Warn("Ignoring malformed registered users")
		return nil
	}
	return users
}

// mergeUser overlays patch on the JSON form of u. Unknown keys are dropped
// and the password never survives the merge.
func mergeUser(u User, patch map[string]any) (User, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return User{}, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return User{}, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	raw, err = json.Marshal(fields)
	if err != nil {
		return User{}, err
	}
	var out User
	if err := json.Unmarshal(raw, &out); err != nil {
		return User{}, fmt.Errorf("invalid user patch: %w", err)
	}
	return out.Public(), nil
}
