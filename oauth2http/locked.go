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

package oauth2http

import (
	"sync"

	"github.com/opentrusty/oauthcore/authorizer"
	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/issuer"
	"github.com/opentrusty/oauthcore/registrar"
)

// LockedRegistrar, LockedAuthorizer and LockedIssuer guard an in-memory
// primitive with a single mutex so it can be shared across the goroutines
// net/http spins up per request. oxide-auth gets this for free with a
// blanket impl over MutexGuard; Go has no equivalent blanket-impl-over-
// guard-type mechanism, so each primitive gets an explicit wrapper instead.

// LockedRegistrar wraps a registrar.Registrar with a mutex.
type LockedRegistrar struct {
	mu   sync.Mutex
	Inner registrar.Registrar
}

// NewLockedRegistrar wraps inner for concurrent use.
func NewLockedRegistrar(inner registrar.Registrar) *LockedRegistrar {
	return &LockedRegistrar{Inner: inner}
}

func (l *LockedRegistrar) BoundRedirect(clientID, redirectURI string) (registrar.BoundClient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inner.BoundRedirect(clientID, redirectURI)
}

func (l *LockedRegistrar) Negotiate(bound registrar.BoundClient, requested grant.Scope) (grant.PreGrant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inner.Negotiate(bound, requested)
}

func (l *LockedRegistrar) Check(clientID string, passphrase []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inner.Check(clientID, passphrase)
}

// LockedAuthorizer wraps an authorizer.Authorizer with a mutex.
type LockedAuthorizer struct {
	mu    sync.Mutex
	Inner authorizer.Authorizer
}

// NewLockedAuthorizer wraps inner for concurrent use.
func NewLockedAuthorizer(inner authorizer.Authorizer) *LockedAuthorizer {
	return &LockedAuthorizer{Inner: inner}
}

func (l *LockedAuthorizer) Authorize(g grant.Grant) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inner.Authorize(g)
}

func (l *LockedAuthorizer) Extract(code string) (*grant.Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inner.Extract(code)
}

// LockedIssuer wraps an issuer.Issuer with a mutex.
type LockedIssuer struct {
	mu    sync.Mutex
	Inner issuer.Issuer
}

// NewLockedIssuer wraps inner for concurrent use.
func NewLockedIssuer(inner issuer.Issuer) *LockedIssuer {
	return &LockedIssuer{Inner: inner}
}

func (l *LockedIssuer) Issue(g grant.Grant, refreshable bool) (issuer.IssuedToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inner.Issue(g, refreshable)
}

func (l *LockedIssuer) Recover(token string) (*grant.Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inner.Recover(token)
}

func (l *LockedIssuer) RecoverRefresh(token string) (*grant.Grant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inner.RecoverRefresh(token)
}

func (l *LockedIssuer) Refresh(refreshToken string, g grant.Grant) (issuer.RefreshedToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Inner.Refresh(refreshToken, g)
}
