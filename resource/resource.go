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

// Package resource implements the Mealy state machine guarding a protected
// endpoint with RFC 6750 bearer-token validation.
package resource

import (
	"strings"
	"time"

	"github.com/opentrusty/oauthcore/grant"
)

const bearerPrefix = "Bearer "

// Request carries the raw Authorization header(s) presented on the
// protected request. MultipleHeaders should be true when the host observed
// more than one Authorization header — RFC 6750 requires rejecting that as
// malformed rather than picking one.
type Request struct {
	AuthorizationHeader string
	HeaderPresent       bool
	MultipleHeaders     bool

	// Now overrides the clock used to check grant expiry. Defaults to
	// time.Now when nil.
	Now func() time.Time
}

// ErrorKind is the RFC 6750 three-way split: a malformed request, an
// unresolvable/expired token, or a token that does not cover the scopes
// this endpoint requires.
type ErrorKind int

const (
	// InvalidRequest: no Authorization header, more than one, or one that
	// does not start with "Bearer ".
	InvalidRequest ErrorKind = iota
	// InvalidToken: a well-formed Bearer token that does not resolve to a
	// live grant.
	InvalidToken
	// InsufficientScope: the grant resolves but does not cover any scope
	// this endpoint accepts.
	InsufficientScope
	// PrimitiveErr: a primitive failed for reasons unrelated to the
	// request's validity.
	PrimitiveErr
)

// Error is the terminal failure value of the machine. WWWAuthenticate
// renders the RFC 6750 §3 challenge header a driver must send alongside a
// 401/403 response.
type Error struct {
	Kind  ErrorKind
	Scope grant.Scope // the endpoint's acceptable scope, for InsufficientScope
}

// WWWAuthenticate renders the value of a WWW-Authenticate response header
// for e, using realm as the protection realm.
func (e Error) WWWAuthenticate(realm string) string {
	var b strings.Builder
	b.WriteString("Bearer")
	first := true
	kvp := func(k, v string) {
		if v == "" {
			return
		}
		if first {
			b.WriteString(" ")
			first = false
		} else {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(v)
		b.WriteString(`"`)
	}
	kvp("realm", realm)
	if !e.Scope.Empty() {
		kvp("scope", e.Scope.String())
	}
	switch e.Kind {
	case InvalidRequest:
		kvp("error", "invalid_request")
	case InvalidToken:
		kvp("error", "invalid_token")
	case InsufficientScope:
		kvp("error", "insufficient_scope")
	}
	return b.String()
}

type stateKind int

const (
	stateNew stateKind = iota
	stateRecovering
	stateDetermineScope
	stateErr
)

// Resource is the Mealy machine instance guarding one protected request. It
// is not safe for concurrent use.
type Resource struct {
	state stateKind

	token string
	grant *grant.Grant
	now   func() time.Time

	err Error
}

// OutputKind tags the variant carried by Output.
type OutputKind int

const (
	// Recover asks the driver to call Issuer.Recover(Token).
	Recover OutputKind = iota
	// DetermineScopes asks the driver to supply the endpoint's list of
	// acceptable Scopes (often static configuration, not a primitive call).
	DetermineScopes
	// Ok is the terminal success: the Grant behind the bearer token.
	Ok
	// Err is the terminal failure.
	Err
)

// Output is the value the machine hands back after each Advance call.
type Output struct {
	Kind  OutputKind
	Token string
	Grant *grant.Grant
	Err   Error
}

// InputKind tags the variant carried by Input.
type InputKind int

const (
	RecoveredInput InputKind = iota
	ScopesInput
)

// Input is what the driver feeds back into Advance after performing the
// side effect the previous Output requested.
type Input struct {
	Kind InputKind

	RecoveredGrant *grant.Grant

	Scopes []grant.Scope
}

// New validates req and returns the machine along with its first Output
// (Recover, or Err if the request could not even name a candidate token).
func New(req Request) (*Resource, Output) {
	now := req.Now
	if now == nil {
		now = time.Now
	}
	r := &Resource{now: now}

	if req.MultipleHeaders || !req.HeaderPresent {
		return r.fail(Error{Kind: InvalidRequest})
	}
	if !strings.HasPrefix(req.AuthorizationHeader, bearerPrefix) {
		return r.fail(Error{Kind: InvalidRequest})
	}
	token := strings.TrimPrefix(req.AuthorizationHeader, bearerPrefix)
	if token == "" {
		return r.fail(Error{Kind: InvalidRequest})
	}

	r.token = token
	r.state = stateRecovering
	return r, Output{Kind: Recover, Token: token}
}

// Advance drives the machine forward with the result of the previously
// requested side effect.
func (r *Resource) Advance(in Input) Output {
	switch r.state {
	case stateRecovering:
		return r.recovered(in)
	case stateDetermineScope:
		return r.scoped(in)
	default:
		return r.failOut(r.err)
	}
}

func (r *Resource) recovered(in Input) Output {
	if in.Kind != RecoveredInput {
		return r.failOut(Error{Kind: PrimitiveErr})
	}
	if in.RecoveredGrant == nil {
		return r.failOut(Error{Kind: InvalidToken})
	}
	if in.RecoveredGrant.Until.Before(r.now()) {
		return r.failOut(Error{Kind: InvalidToken})
	}
	r.grant = in.RecoveredGrant

	r.state = stateDetermineScope
	return Output{Kind: DetermineScopes}
}

func (r *Resource) scoped(in Input) Output {
	if in.Kind != ScopesInput {
		return r.failOut(Error{Kind: PrimitiveErr})
	}
	if len(in.Scopes) == 0 {
		return Output{Kind: Ok, Grant: r.grant}
	}
	for _, s := range in.Scopes {
		if r.grant.Scope.Contains(s) {
			return Output{Kind: Ok, Grant: r.grant}
		}
	}
	return r.failOut(Error{Kind: InsufficientScope, Scope: in.Scopes[0]})
}

func (r *Resource) fail(e Error) (*Resource, Output) {
	r.state = stateErr
	r.err = e
	return r, Output{Kind: Err, Err: e}
}

func (r *Resource) failOut(e Error) Output {
	_, out := r.fail(e)
	return out
}
