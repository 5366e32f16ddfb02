// Package session holds the signed-in user and their preferences.
package session

import (
	"errors"
	"strings"
	"sync"
)

var ErrNoUser = errors.New("no user signed in")

// Preferences are the user's display settings.
type Preferences struct {
	Currency string `json:"currency"`
	Theme    string `json:"theme"`
}

// State is a snapshot of the session.
type State struct {
	UserID      string      `json:"userId"`
	Preferences Preferences `json:"preferences"`
}

// Session is safe for concurrent use. The zero value is signed out.
type Session struct {
	mu    sync.RWMutex
	state State
}

func New() *Session {
	return &Session{}
}

// Init signs userID in, replacing any previous user.
func (s *Session) Init(userID string, prefs Preferences) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrNoUser
	}
	if prefs.Currency == "" {
		prefs.Currency = "USD"
	}
	if prefs.Theme == "" {
		prefs.Theme = "system"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{UserID: userID, Preferences: prefs}
	return nil
}

// Reset signs the user out.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
}

// Current returns the session or ErrNoUser.
func (s *Session) Current() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.UserID == "" {
		return State{}, ErrNoUser
	}
	return s.state, nil
}

// UserID returns the signed-in user or ErrNoUser.
func (s *Session) UserID() (string, error) {
	st, err := s.Current()
	return st.UserID, err
}
