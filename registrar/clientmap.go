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

package registrar

import (
	"github.com/google/uuid"

	"github.com/opentrusty/oauthcore/grant"
)

// Client is the registration record a host supplies to ClientMap. ClientMap
// stores it in an internal EncodedClient; Client itself is never mutated
// after Register.
type Client struct {
	ClientID      string
	RedirectURIs  []string
	DefaultScope  grant.Scope
	Type          ClientType
	Passphrase    []byte // only used to derive the stored hash; ClientMap does not keep it
}

// EncodedClient is the at-rest representation ClientMap keeps: the
// passphrase, if any, replaced by its PasswordPolicy-encoded hash.
type EncodedClient struct {
	ClientID     string
	RedirectURIs []string
	DefaultScope grant.Scope
	Type         ClientType
	PassHash     string // empty for Public clients
}

// ClientMap is the in-memory Registrar: a single-process, non-persistent
// client directory. It performs no internal locking; concurrent hosts must
// guard it themselves (see oauth2http.LockedRegistrar).
type ClientMap struct {
	clients map[string]EncodedClient
	policy  PasswordPolicy
}

// NewClientMap builds an empty ClientMap using the default Argon2 password
// policy.
func NewClientMap() *ClientMap {
	return &ClientMap{clients: make(map[string]EncodedClient), policy: DefaultPasswordPolicy}
}

// SetPasswordPolicy overrides the PasswordPolicy used for subsequent
// Register calls. It does not re-encode already-registered clients.
func (m *ClientMap) SetPasswordPolicy(p PasswordPolicy) {
	m.policy = p
}

// Register stores c, hashing its Passphrase (if any) under the configured
// PasswordPolicy, and returns the id the client was stored under. If
// c.ClientID is empty, Register mints one with uuid.NewString — the teacher
// uses the same library for every other entity id in the system, and a
// registering host (unlike an authorization request) has no externally
// supplied id to preserve. Re-registering an existing ClientID overwrites
// it.
func (m *ClientMap) Register(c Client) (string, error) {
	id := c.ClientID
	if id == "" {
		id = uuid.NewString()
	}
	enc := EncodedClient{
		ClientID:     id,
		RedirectURIs: append([]string(nil), c.RedirectURIs...),
		DefaultScope: c.DefaultScope,
		Type:         c.Type,
	}
	if c.Type == Confidential {
		hash, err := m.policy.Store(id, c.Passphrase)
		if err != nil {
			return "", err
		}
		enc.PassHash = hash
	}
	m.clients[id] = enc
	return id, nil
}

// BoundRedirect implements Registrar.
func (m *ClientMap) BoundRedirect(clientID, redirectURI string) (BoundClient, error) {
	c, ok := m.clients[clientID]
	if !ok {
		return BoundClient{}, Error
	}
	if redirectURI == "" {
		if len(c.RedirectURIs) != 1 {
			return BoundClient{}, Error
		}
		return BoundClient{ClientID: clientID, RedirectURI: c.RedirectURIs[0]}, nil
	}
	for _, u := range c.RedirectURIs {
		if u == redirectURI {
			return BoundClient{ClientID: clientID, RedirectURI: redirectURI}, nil
		}
	}
	return BoundClient{}, Error
}

// Negotiate implements Registrar. An empty requested scope yields the
// client's default scope; otherwise the requested scope is narrowed to the
// intersection with the default scope.
func (m *ClientMap) Negotiate(bound BoundClient, requested grant.Scope) (grant.PreGrant, error) {
	c, ok := m.clients[bound.ClientID]
	if !ok {
		return grant.PreGrant{}, Error
	}
	scope := c.DefaultScope
	if !requested.Empty() {
		scope = c.DefaultScope.Intersect(requested)
	}
	return grant.PreGrant{ClientID: bound.ClientID, RedirectURI: bound.RedirectURI, Scope: scope}, nil
}

// Check implements Registrar.
func (m *ClientMap) Check(clientID string, passphrase []byte) error {
	c, ok := m.clients[clientID]
	if !ok {
		return Error
	}
	switch c.Type {
	case Public:
		if passphrase != nil {
			return Error
		}
		return nil
	case Confidential:
		if passphrase == nil {
			return Error
		}
		return m.policy.Check(clientID, passphrase, c.PassHash)
	default:
		return Error
	}
}
