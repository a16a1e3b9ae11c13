package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// demoAccounts are seeded into an empty partition. The password of each
// account equals its username.
var demoAccounts = []User{
	{FullName: "Admin User", Username: "admin", Email: "admin@demo.com", Phone: "+1-555-0100", Role: "admin"},
	{FullName: "Consultant User", Username: "consultant", Email: "consultant@demo.com", Phone: "+1-555-0101", Role: "consultant"},
	{FullName: "Student User", Username: "student", Email: "student@demo.com", Phone: "+1-555-0102", Role: "student"},
}

// seed writes the demo directory when the partition has none. Another
// handle seeding concurrently wins and its list is loaded instead.
func (s *Store) seed(ctx context.Context) error {
	if _, ok, err := s.opts.Storage.Get(ctx, KeyRegisteredUsers); err != nil || ok {
		return err
	}

	now := s.opts.Now().UTC().Format(time.RFC3339)
	users := make([]User, 0, len(demoAccounts))
	for _, a := range demoAccounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Username), s.opts.BcryptCost)
		if err != nil {
			return fmt.Errorf("hash demo password: %w", err)
		}
		a.ID = uuid.NewString()
		a.Password = string(hash)
		a.CreatedAt = now
		users = append(users, a)
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}

	s.persist.Lock()
	defer s.persist.Unlock()
	ok, err := s.opts.Storage.SetIfAbsent(ctx, KeyRegisteredUsers, string(raw))
	if err != nil {
		return err
	}
	if !ok {
		raw, _, err := s.opts.Storage.Get(ctx, KeyRegisteredUsers)
		if err != nil {
			return err
		}
		users = s.decodeUsers(raw)
	} else {
		s.opts.Logger.WithField("count", len(users)).Info("Seeded demo accounts")
	}

	s.mu.Lock()
	s.registered = users
	s.mu.Unlock()
	return nil
}

func (s *Store) demoLogin(identifier, password string) (User, string, error) {
	s.mu.RLock()
	var found *User
	for i := range s.registered {
		if s.registered[i].Matches(identifier) {
			u := s.registered[i]
			found = &u
			break
		}
	}
	s.mu.RUnlock()

	if found == nil || bcrypt.CompareHashAndPassword([]byte(found.Password), []byte(password)) != nil {
		s.opts.Logger.WithField("identifier", identifier).Warn("Demo login rejected")
		return User{}, "", ErrInvalidLogin
	}

	token, err := s.opts.Signer.Sign(found.ID, found.Email, found.Role)
	if err != nil {
		return User{}, "", fmt.Errorf("sign token: %w", err)
	}
	return found.Public(), token, nil
}

// demoRegister appends to the directory as stored, not as cached, so a
// concurrent registration in another handle is not dropped silently.
func (s *Store) demoRegister(ctx context.Context, req RegisterRequest) error {
	s.persist.Lock()
	defer s.persist.Unlock()

	users := []User{}
	raw, ok, err := s.opts.Storage.Get(ctx, KeyRegisteredUsers)
	if err != nil {
		return err
	}
	if ok {
		users = s.decodeUsers(raw)
	}

	for _, u := range users {
		if u.Email != "" && equalFoldTrim(u.Email, req.Email) {
			return ErrEmailRegistered
		}
	}
	for _, u := range users {
		if u.Username != "" && equalFoldTrim(u.Username, req.Username) {
			return ErrUsernameTaken
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user := User{
		ID:        uuid.NewString(),
		FullName:  req.FullName,
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		Role:      req.Role,
		CreatedAt: s.opts.Now().UTC().Format(time.RFC3339),
		Password:  string(hash),
	}
	users = append(users, user)

	out, err := json.Marshal(users)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.registered = users
	s.mu.Unlock()
	if err := s.opts.Storage.Set(ctx, KeyRegisteredUsers, string(out)); err != nil {
		return err
	}

	s.opts.Logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("Demo account registered")
	return nil
}
