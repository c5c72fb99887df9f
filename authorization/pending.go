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

package authorization

import (
	"errors"
	"net/url"
	"sync"

	"github.com/opentrusty/oauthcore/grant"
)

// ErrAlreadyResolved is returned by Deny and Authorize when called on a
// Pending that has already been resolved once.
var ErrAlreadyResolved = errors.New("authorization: pending authorization already resolved")

// Pending is the negotiated-but-undecided authorization waiting on the
// resource owner's decision. It must be resolved exactly once, by Deny or
// Authorize: a Pending that could be both denied and authorized would let a
// confused or compromised host issue a grant after having already told the
// client "access_denied", so pendingNoCopy makes go vet flag any attempt to
// pass one by value instead of by pointer.
type Pending struct {
	_ pendingNoCopy

	preGrant   grant.PreGrant
	state      string
	extensions grant.Extensions

	resolved bool
}

type pendingNoCopy sync.Mutex

// PreGrant exposes the negotiated client/redirect/scope for a host that
// wants to render a consent screen before calling Authorize or Deny.
func (p *Pending) PreGrant() grant.PreGrant {
	return p.preGrant
}

// State returns the client's original state parameter, to be echoed back
// on the eventual redirect.
func (p *Pending) State() string {
	return p.state
}

// Deny resolves the Pending with an access_denied redirect error.
func (p *Pending) Deny() (Error, error) {
	if p.resolved {
		return Error{}, ErrAlreadyResolved
	}
	p.resolved = true
	return Error{Kind: Redirect, RedirectURI: p.preGrant.RedirectURI, Code: CodeAccessDenied, State: p.state}, nil
}

// Authorize resolves the Pending in favor of ownerID, returning the Grant
// the driver must hand to the Authorizer primitive to mint a code (the
// Authorizer is responsible for stamping its own expiry onto Grant.Until).
func (p *Pending) Authorize(ownerID string) (grant.Grant, error) {
	if p.resolved {
		return grant.Grant{}, ErrAlreadyResolved
	}
	p.resolved = true

	return grant.Grant{
		OwnerID:     ownerID,
		ClientID:    p.preGrant.ClientID,
		RedirectURI: p.preGrant.RedirectURI,
		Scope:       p.preGrant.Scope,
		Extensions:  p.extensions,
	}, nil
}

// AppendCode appends the code and, if non-empty, state query parameters to
// redirectURI, per RFC 6749 §4.1.2.
func AppendCode(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
