// Package credentials looks up and caches calendar provider tokens for
// users. The scheduling coordinator consults it before any calendar
// call; the Google client draws per-user token sources from it.
package credentials

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/fellowship-api/internal/persistence"
)

// Store reads calendar credentials through an explicit expiring cache.
// The cache is owned by the store instance rather than package state so
// tests can construct and reset it freely.
type Store struct {
	repo  persistence.CredentialRepository
	oauth *oauth2.Config
	cache *tokenCache
	now   func() time.Time
}

// NewStore wires a credential store. cacheTTL bounds how long a cached
// lookup is trusted before the repository is consulted again.
func NewStore(repo persistence.CredentialRepository, oauth *oauth2.Config, cacheTTL time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		repo:  repo,
		oauth: oauth,
		cache: newTokenCache(cacheTTL, now),
		now:   now,
	}
}

// HasCalendarCredentials reports whether the user holds tokens the
// calendar provider can use. A missing credential row is not an error.
func (s *Store) HasCalendarCredentials(ctx context.Context, userID string) (bool, error) {
	cred, ok, err := s.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return usable(cred, s.now()), nil
}

// TokenSource returns an OAuth token source for the user, refreshing
// through the configured OAuth endpoint when the access token expires.
func (s *Store) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	cred, ok, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok || !usable(cred, s.now()) {
		return nil, persistence.ErrNotFound
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.TokenExpiry,
	}

	if s.oauth == nil {
		return oauth2.StaticTokenSource(token), nil
	}
	return s.oauth.TokenSource(ctx, token), nil
}

// SaveTokens persists new tokens for the user and drops any cached view.
func (s *Store) SaveTokens(ctx context.Context, userID string, token *oauth2.Token) error {
	cred := persistence.CalendarCredential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry.UTC(),
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.repo.UpsertCredential(ctx, cred); err != nil {
		return err
	}
	s.cache.invalidate(userID)
	return nil
}

// Reset clears the cache. Intended for tests.
func (s *Store) Reset() {
	s.cache.reset()
}

func (s *Store) lookup(ctx context.Context, userID string) (persistence.CalendarCredential, bool, error) {
	if cred, ok := s.cache.get(userID); ok {
		return cred, true, nil
	}

	cred, err := s.repo.GetCredential(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.CalendarCredential{}, false, nil
	}
	if err != nil {
		return persistence.CalendarCredential{}, false, err
	}

	s.cache.put(userID, cred)
	return cred, true, nil
}

// usable reports whether the credential can still authorize calendar
// calls: either the access token is unexpired or a refresh token exists.
func usable(cred persistence.CalendarCredential, now time.Time) bool {
	if cred.RefreshToken != "" {
		return true
	}
	return cred.AccessToken != "" && cred.TokenExpiry.After(now)
}
