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

// Package authorizer implements the one-shot authorization-code primitive:
// mint a code bound to a Grant, and consume it exactly once.
package authorizer

import (
	"sync"
	"time"

	"github.com/opentrusty/oauthcore/generator"
	"github.com/opentrusty/oauthcore/grant"
)

// Authorizer mints and consumes authorization codes.
type Authorizer interface {
	// Authorize stores g and returns a fresh code bound to it.
	Authorize(g grant.Grant) (string, error)
	// Extract consumes code and returns the Grant it was bound to, or nil
	// if the code is unknown, already consumed, or expired. A code is
	// removed from the backing store on the first Extract call regardless
	// of outcome, so replay always observes "not found".
	Extract(code string) (*grant.Grant, error)
}

// MapAuthorizer is the in-memory, map-backed Authorizer. It guards its code
// map with an internal mutex.
type MapAuthorizer struct {
	mu      sync.Mutex
	codes   map[string]grant.Grant
	tag     generator.TagGrant
	counter uint64
	expiry  time.Duration
	now     func() time.Time
}

// NewMapAuthorizer builds a MapAuthorizer using tag to mint codes (a 16-byte
// generator.RandomGenerator if tag is nil) with codes expiring after expiry
// (10 minutes if expiry is zero).
func NewMapAuthorizer(tag generator.TagGrant, expiry time.Duration) *MapAuthorizer {
	if tag == nil {
		tag = generator.RandomGenerator{Length: 16}
	}
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	return &MapAuthorizer{codes: make(map[string]grant.Grant), tag: tag, expiry: expiry, now: time.Now}
}

// Authorize implements Authorizer.
func (m *MapAuthorizer) Authorize(g grant.Grant) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.Until = m.now().Add(m.expiry)
	code, err := m.tag.Tag(m.counter, &g)
	if err != nil {
		return "", err
	}
	m.counter++
	if _, exists := m.codes[code]; exists {
		return "", generator.ErrDuplicate
	}
	m.codes[code] = g
	return code, nil
}

// Extract implements Authorizer.
func (m *MapAuthorizer) Extract(code string) (*grant.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.codes[code]
	delete(m.codes, code)
	if !ok {
		return nil, nil
	}
	if g.Until.Before(m.now()) {
		return nil, nil
	}
	out := g.Clone()
	return &out, nil
}
