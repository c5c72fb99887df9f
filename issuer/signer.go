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
	"sync/atomic"
	"time"

	"github.com/opentrusty/oauthcore/grant"
)

// assertion is the subset of generator.TaggedAssertion / TaggedJWTAssertion
// that TokenSigner depends on.
type assertion interface {
	Tag(usage uint64, g *grant.Grant) (string, error)
	Extract(token string) (*grant.Grant, error)
}

// TokenSigner is the stateless Issuer: access and refresh tokens are signed
// assertions encoding the grant directly, so Recover needs no backing
// store. It cannot support Refresh's in-place rotation semantics since there
// is no shared record to mutate; Refresh always returns ErrNotRefreshable,
// matching the reference implementation this is modeled on, which treats
// signed tokens as issue-only.
type TokenSigner struct {
	access   assertion
	refresh  assertion // nil if this signer never issues refresh tokens
	duration time.Duration
	counter  uint64
	now      func() time.Time
}

// NewTokenSigner builds a TokenSigner minting access tokens from access
// (typically tagged "token") and, if refresh is non-nil, refresh tokens from
// refresh (typically tagged "refresh"). duration is the access-token
// lifetime (1 hour if zero).
func NewTokenSigner(access, refresh assertion, duration time.Duration) *TokenSigner {
	if duration <= 0 {
		duration = time.Hour
	}
	return &TokenSigner{access: access, refresh: refresh, duration: duration, now: time.Now}
}

// Issue implements Issuer.
func (s *TokenSigner) Issue(g grant.Grant, refreshable bool) (IssuedToken, error) {
	g.Until = s.now().Add(s.duration)
	usage := atomic.AddUint64(&s.counter, 1)
	token, err := s.access.Tag(usage, &g)
	if err != nil {
		return IssuedToken{}, err
	}
	out := IssuedToken{Token: token, Until: g.Until}
	if refreshable && s.refresh != nil {
		rusage := atomic.AddUint64(&s.counter, 1)
		rtoken, err := s.refresh.Tag(rusage, &g)
		if err != nil {
			return IssuedToken{}, err
		}
		out.Refresh = rtoken
	}
	return out, nil
}

// Recover implements Issuer.
func (s *TokenSigner) Recover(token string) (*grant.Grant, error) {
	g, err := s.access.Extract(token)
	if err != nil {
		return nil, nil
	}
	if g.Until.Before(s.now()) {
		return nil, nil
	}
	return g, nil
}

// RecoverRefresh implements Issuer.
func (s *TokenSigner) RecoverRefresh(token string) (*grant.Grant, error) {
	if s.refresh == nil {
		return nil, nil
	}
	g, err := s.refresh.Extract(token)
	if err != nil {
		return nil, nil
	}
	if g.Until.Before(s.now()) {
		return nil, nil
	}
	return g, nil
}

// Refresh implements Issuer but always fails: a stateless signer has no
// shared record to rotate in place.
func (s *TokenSigner) Refresh(string, grant.Grant) (RefreshedToken, error) {
	return RefreshedToken{}, ErrNotRefreshable
}
