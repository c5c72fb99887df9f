// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package issuer

import (
	"errors"
	"sync"
	"time"

	"github.com/opentrusty/oauthcore/generator"
	"github.com/opentrusty/oauthcore/grant"
)

// ErrNotRefreshable is returned by Refresh when called with a token that was
// issued without a refresh counterpart.
var ErrNotRefreshable = errors.New("issuer: token has no refresh counterpart")

// record is shared by a token's access-key entry and its refresh-key entry
// (when one exists) so that rotating the refresh token can update both
// views in a single mutation instead of reinserting two independent copies.
type record struct {
	grant       grant.Grant
	accessToken string
	refresh     bool
}

// TokenMap is the in-memory, map-backed Issuer. It guards its token maps
// with an internal mutex.
type TokenMap struct {
	mu       sync.Mutex
	byToken  map[string]*record
	byRefresh map[string]*record
	tag      generator.TagGrant
	counter  uint64
	duration time.Duration
	now      func() time.Time
}

// NewTokenMap builds a TokenMap using tag to mint token strings (a 16-byte
// generator.RandomGenerator if tag is nil), with access tokens valid for
// duration (1 hour if zero).
func NewTokenMap(tag generator.TagGrant, duration time.Duration) *TokenMap {
	if tag == nil {
		tag = generator.RandomGenerator{Length: 16}
	}
	if duration <= 0 {
		duration = time.Hour
	}
	return &TokenMap{
		byToken:   make(map[string]*record),
		byRefresh: make(map[string]*record),
		tag:       tag,
		duration:  duration,
		now:       time.Now,
	}
}

// SetDuration overrides the access-token lifetime for subsequently issued
// and refreshed tokens.
func (m *TokenMap) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

// Issue implements Issuer. The access and refresh token strings are minted
// from consecutive usage counters (n, n+1) so a signed generator.TagGrant
// backend never produces the same string for both halves of one issuance.
func (m *TokenMap) Issue(g grant.Grant, refreshable bool) (IssuedToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g.Until = m.now().Add(m.duration)
	rec := &record{grant: g, refresh: refreshable}

	accessUsage := m.counter
	token, err := m.tag.Tag(accessUsage, &g)
	if err != nil {
		return IssuedToken{}, err
	}
	m.counter++
	rec.accessToken = token

	out := IssuedToken{Token: token, Until: g.Until}
	if refreshable {
		refreshUsage := m.counter
		refresh, err := m.tag.Tag(refreshUsage, &g)
		if err != nil {
			return IssuedToken{}, err
		}
		m.counter++
		if refresh == token {
			return IssuedToken{}, generator.ErrDuplicate
		}
		out.Refresh = refresh
		m.byRefresh[refresh] = rec
	}
	if _, exists := m.byToken[token]; exists {
		return IssuedToken{}, generator.ErrDuplicate
	}
	m.byToken[token] = rec
	return out, nil
}

// Recover implements Issuer.
func (m *TokenMap) Recover(token string) (*grant.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byToken[token]
	if !ok {
		return nil, nil
	}
	if rec.grant.Until.Before(m.now()) {
		return nil, nil
	}
	g := rec.grant.Clone()
	return &g, nil
}

// RecoverRefresh implements Issuer.
func (m *TokenMap) RecoverRefresh(token string) (*grant.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byRefresh[token]
	if !ok {
		return nil, nil
	}
	if rec.grant.Until.Before(m.now()) {
		return nil, nil
	}
	g := rec.grant.Clone()
	return &g, nil
}

// Refresh implements Issuer: it mutates the shared record in place and
// re-keys both maps, so the prior access token and prior refresh token stop
// resolving in the same instant the new pair starts resolving.
func (m *TokenMap) Refresh(refreshToken string, g grant.Grant) (RefreshedToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byRefresh[refreshToken]
	if !ok {
		return RefreshedToken{}, nil
	}

	g.Until = m.now().Add(m.duration)

	accessUsage := m.counter
	newToken, err := m.tag.Tag(accessUsage, &g)
	if err != nil {
		return RefreshedToken{}, err
	}
	m.counter++
	refreshUsage := m.counter
	newRefresh, err := m.tag.Tag(refreshUsage, &g)
	if err != nil {
		return RefreshedToken{}, err
	}
	m.counter++
	if newRefresh == newToken {
		return RefreshedToken{}, generator.ErrDuplicate
	}

	delete(m.byToken, rec.accessToken)
	delete(m.byRefresh, refreshToken)

	rec.grant = g
	rec.accessToken = newToken
	m.byToken[newToken] = rec
	m.byRefresh[newRefresh] = rec

	return RefreshedToken{Token: newToken, Refresh: newRefresh, Until: g.Until}, nil
}
