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

// Package refresh implements the Mealy state machine driving the
// refresh_token grant: recover the refresh token's grant, confirm the
// caller is allowed to use it (either by client authentication or, for a
// public client, by re-checking the grant's own client id), optionally
// narrow scope, and rotate the token pair.
package refresh

import (
	"time"

	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/issuer"
)

// Request is everything the machine needs from the incoming refresh
// request.
type Request struct {
	GrantType    string
	RefreshToken string
	Scope        string // empty means "reuse the grant's existing scope"

	Authenticated bool // an Authorization header was presented
	ClientID      string
	Passphrase    []byte

	// Now overrides the clock used to check grant expiry. Defaults to
	// time.Now when nil.
	Now func() time.Time
}

// ErrorKind mirrors accesstoken.ErrorKind for this machine's three failure
// shapes.
type ErrorKind int

const (
	Invalid ErrorKind = iota
	Unauthorized
	PrimitiveErr
)

const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidClient  = "invalid_client"
	CodeInvalidGrant   = "invalid_grant"
	CodeInvalidScope   = "invalid_scope"
)

// Error is the terminal failure value of the machine.
type Error struct {
	Kind     ErrorKind
	Code     string
	AuthType string
}

type stateKind int

const (
	stateRecover stateKind = iota
	stateAuthenticate // only reached when no Authorization header was presented
	stateIssue
	stateErr
)

// Refresh is the Mealy machine instance for one refresh request. It is not
// safe for concurrent use.
type Refresh struct {
	state stateKind

	refreshToken  string
	scope         string
	authenticated bool
	clientID      string
	passphrase    []byte
	now           func() time.Time

	grant *grant.Grant

	err Error
}

// OutputKind tags the variant carried by Output.
type OutputKind int

const (
	// Recover asks the driver to call Issuer.RecoverRefresh(RefreshToken).
	Recover OutputKind = iota
	// Authenticate asks the driver to call Registrar.Check(ClientID, nil)
	// to confirm the grant's own client is Public — reached only when the
	// request carried no Authorization header, so the grant's recorded
	// client stands in for an explicit credential.
	Authenticate
	// Refresh asks the driver to call Issuer.Refresh(RefreshToken, Grant).
	Refresh
	// Ok is the terminal success.
	Ok
	// Err is the terminal failure.
	Err
)

// Output is the value the machine hands back after each Advance call.
type Output struct {
	Kind OutputKind

	RefreshToken string

	ClientID string

	Grant *grant.Grant

	Token issuer.RefreshedToken
	Err   Error
}

// InputKind tags the variant carried by Input.
type InputKind int

const (
	RecoveredInput InputKind = iota
	AuthenticatedInput
	RefreshedInput
)

// Input is what the driver feeds back into Advance after performing the
// side effect the previous Output requested.
type Input struct {
	Kind InputKind

	RecoveredGrant *grant.Grant

	AuthErr error

	Token    issuer.RefreshedToken
	IssueErr error
}

// New validates req and returns the machine along with its first Output
// (always Recover, or Err if the request is malformed).
func New(req Request) (*Refresh, Output) {
	now := req.Now
	if now == nil {
		now = time.Now
	}
	r := &Refresh{scope: req.Scope, now: now}

	if req.GrantType != "refresh_token" {
		return r.fail(Error{Kind: Invalid, Code: CodeInvalidRequest})
	}
	if req.RefreshToken == "" {
		return r.fail(Error{Kind: Invalid, Code: CodeInvalidRequest})
	}

	r.refreshToken = req.RefreshToken
	r.authenticated = req.Authenticated
	r.clientID = req.ClientID
	r.passphrase = req.Passphrase
	r.state = stateRecover
	return r, Output{Kind: Recover, RefreshToken: r.refreshToken}
}

// Advance drives the machine forward with the result of the previously
// requested side effect.
func (r *Refresh) Advance(in Input) Output {
	switch r.state {
	case stateRecover:
		return r.recovered(in)
	case stateAuthenticate:
		return r.authenticated(in)
	case stateIssue:
		return r.issued(in)
	default:
		return r.failOut(r.err)
	}
}

func (r *Refresh) recovered(in Input) Output {
	if in.Kind != RecoveredInput {
		return r.failOut(Error{Kind: PrimitiveErr})
	}
	g := in.RecoveredGrant
	if g == nil {
		return r.failOut(Error{Kind: Invalid, Code: CodeInvalidGrant})
	}

	if r.authenticated {
		// An explicit client credential was presented: it is authoritative,
		// and must match the grant's own client or the request is invalid
		// (not unauthorized — the client authenticated fine, it's just not
		// the one this refresh token belongs to).
		if g.ClientID != r.clientID {
			return r.failOut(Error{Kind: Invalid, Code: CodeInvalidGrant})
		}
		return r.validate(g)
	}

	// No credential was presented. The grant's own client must be Public
	// (confirmed by checking it with a nil passphrase) for this to proceed
	// without authentication.
	r.grant = g
	r.state = stateAuthenticate
	return Output{Kind: Authenticate, ClientID: g.ClientID}
}

func (r *Refresh) authenticated(in Input) Output {
	if in.Kind != AuthenticatedInput {
		return r.failOut(Error{Kind: PrimitiveErr})
	}
	if in.AuthErr != nil {
		return r.failOut(Error{Kind: Unauthorized, Code: CodeInvalidClient, AuthType: "Basic"})
	}
	return r.validate(r.grant)
}

func (r *Refresh) validate(g *grant.Grant) Output {
	if !g.Until.After(r.now()) {
		return r.failOut(Error{Kind: Invalid, Code: CodeInvalidGrant})
	}
	scope := g.Scope
	if r.scope != "" {
		requested, err := grant.ParseScope(r.scope)
		if err != nil {
			return r.failOut(Error{Kind: Invalid, Code: CodeInvalidScope})
		}
		if !g.Scope.Contains(requested) {
			return r.failOut(Error{Kind: Invalid, Code: CodeInvalidScope})
		}
		scope = requested
	}
	out := g.Clone()
	out.Scope = scope
	r.grant = &out

	r.state = stateIssue
	return Output{Kind: Refresh, RefreshToken: r.refreshToken, Grant: r.grant}
}

func (r *Refresh) issued(in Input) Output {
	if in.Kind != RefreshedInput {
		return r.failOut(Error{Kind: PrimitiveErr})
	}
	if in.IssueErr != nil {
		return r.failOut(Error{Kind: PrimitiveErr})
	}
	return Output{Kind: Ok, Token: in.Token, Grant: r.grant}
}

func (r *Refresh) fail(e Error) (*Refresh, Output) {
	r.state = stateErr
	r.err = e
	return r, Output{Kind: Err, Err: e}
}

func (r *Refresh) failOut(e Error) Output {
	_, out := r.fail(e)
	return out
}
