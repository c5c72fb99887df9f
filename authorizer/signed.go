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

package authorizer

import (
	"sync"
	"time"

	"github.com/opentrusty/oauthcore/grant"
)

// extractor is the subset of generator.TaggedAssertion / TaggedJWTAssertion
// that SignedAuthorizer depends on.
type extractor interface {
	Tag(usage uint64, g *grant.Grant) (string, error)
	Extract(token string) (*grant.Grant, error)
}

// SignedAuthorizer mints stateless authorization codes: the grant is encoded
// directly into the signed code string, so Extract needs no backing store.
// Because there is no store, a signed code cannot be positively invalidated
// after minting; its short default expiry (10 minutes, matching
// MapAuthorizer) is the only defense against replay, and a host that needs
// true single-use revocation should use MapAuthorizer instead.
type SignedAuthorizer struct {
	mu      sync.Mutex
	tag     extractor
	counter uint64
	expiry  time.Duration
	now     func() time.Time
}

// NewSignedAuthorizer builds a SignedAuthorizer over tag (typically a
// generator.Assertion or generator.JWTAssertion tagged "authcode").
func NewSignedAuthorizer(tag extractor, expiry time.Duration) *SignedAuthorizer {
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	return &SignedAuthorizer{tag: tag, expiry: expiry, now: time.Now}
}

// Authorize implements Authorizer.
func (s *SignedAuthorizer) Authorize(g grant.Grant) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.Until = s.now().Add(s.expiry)
	code, err := s.tag.Tag(s.counter, &g)
	if err != nil {
		return "", err
	}
	s.counter++
	return code, nil
}

// Extract implements Authorizer.
func (s *SignedAuthorizer) Extract(code string) (*grant.Grant, error) {
	g, err := s.tag.Extract(code)
	if err != nil {
		return nil, nil
	}
	if g.Until.Before(s.now()) {
		return nil, nil
	}
	return g, nil
}
