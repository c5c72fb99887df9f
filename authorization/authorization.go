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

// Package authorization implements the Mealy state machine driving the
// authorization-code request: bind the client, negotiate scope, solicit
// owner consent, and mint the Pending authorization that a driver turns
// into a code.
package authorization

import (
	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/registrar"
)

// Request is everything the machine needs from the incoming authorize
// request. Malformed should be true when the host's WebRequest layer
// could not even parse the request (duplicate parameters, bad encoding);
// the machine reports that as Error{Kind: Ignore}, the one case where no
// response at all — not even a redirect — should be sent.
type Request struct {
	Malformed    bool
	ClientID     string
	RedirectURI  string // empty if the client omitted it
	ResponseType string
	Scope        string
	State        string
	Extensions   map[string]string
}

// ErrorKind distinguishes the three ways §4.4 says this machine can fail.
type ErrorKind int

const (
	// Ignore means the request was too malformed to safely respond to at
	// all; the driver must not send any response.
	Ignore ErrorKind = iota
	// Redirect means the error is reported via a redirect to the client's
	// RedirectURI with OAuth2 error query parameters appended.
	Redirect
	// PrimitiveErr means a primitive (Registrar, Authorizer) failed for
	// reasons unrelated to the request's validity.
	PrimitiveErr
)

// Error is the terminal failure value of the machine.
type Error struct {
	Kind        ErrorKind
	RedirectURI string // set when Kind == Redirect
	Code        string // OAuth2 error code, set when Kind == Redirect
	Description string
	State       string
}

const (
	CodeInvalidRequest          = "invalid_request"
	CodeUnauthorizedClient      = "unauthorized_client"
	CodeAccessDenied            = "access_denied"
	CodeUnsupportedResponseType = "unsupported_response_type"
	CodeInvalidScope            = "invalid_scope"
	CodeServerError             = "server_error"
)

type stateKind int

const (
	stateBinding stateKind = iota
	stateExtending
	stateNegotiating
	statePending
	stateErr
)

// Authorization is the Mealy machine instance for one authorization
// request. It is not safe for concurrent use.
type Authorization struct {
	state stateKind

	clientID    string
	redirectURI string

	bound registrar.BoundClient

	responseType string
	scope        string
	reqState     string
	extIn        map[string]string

	preGrant   grant.PreGrant
	extensions grant.Extensions

	err Error
}

// OutputKind tags the variant carried by Output.
type OutputKind int

const (
	// Bind asks the driver to call Registrar.BoundRedirect(ClientID, RedirectURI).
	Bind OutputKind = iota
	// Extend asks the driver to run registered extensions against ExtIn
	// and feed back their produced Extensions.
	Extend
	// Negotiate asks the driver to call Registrar.Negotiate(Bound, Scope).
	Negotiate
	// Ok is the terminal success: a Pending authorization is ready.
	Ok
	// Err is the terminal failure.
	Err
)

// Output is the value the machine hands back after each Advance call.
type Output struct {
	Kind OutputKind

	ClientID    string // Bind
	RedirectURI string // Bind

	ExtIn map[string]string // Extend

	Bound registrar.BoundClient // Negotiate
	Scope grant.Scope           // Negotiate

	Pending *Pending // Ok
	Err     Error     // Err
}

// InputKind tags the variant carried by Input.
type InputKind int

const (
	Bound InputKind = iota
	Extended
	Negotiated
	None
)

// Input is what the driver feeds back into Advance after performing the
// side effect the previous Output requested.
type Input struct {
	Kind InputKind

	BoundClient registrar.BoundClient // Bound
	BoundErr    error

	Extensions grant.Extensions // Extended
	ExtendErr  error

	PreGrant     grant.PreGrant // Negotiated
	NegotiateErr error
}

// New validates req and returns the machine along with its first Output
// (always Bind or Err).
func New(req Request) (*Authorization, Output) {
	a := &Authorization{
		responseType: req.ResponseType,
		scope:        req.Scope,
		reqState:     req.State,
		extIn:        req.Extensions,
	}
	if req.Malformed {
		a.state = stateErr
		a.err = Error{Kind: Ignore}
		return a, Output{Kind: Err, Err: a.err}
	}
	if req.ClientID == "" {
		a.state = stateErr
		a.err = Error{Kind: Ignore}
		return a, Output{Kind: Err, Err: a.err}
	}
	a.clientID = req.ClientID
	a.redirectURI = req.RedirectURI
	a.state = stateBinding
	return a, Output{Kind: Bind, ClientID: a.clientID, RedirectURI: a.redirectURI}
}

// Advance drives the machine forward with the result of the previously
// requested side effect.
func (a *Authorization) Advance(in Input) Output {
	switch a.state {
	case stateBinding:
		return a.bound(in)
	case stateExtending:
		return a.extended(in)
	case stateNegotiating:
		return a.negotiated(in)
	default:
		return Output{Kind: Err, Err: a.err}
	}
}

func (a *Authorization) bound(in Input) Output {
	if in.Kind != Bound {
		return a.fail(Error{Kind: PrimitiveErr})
	}
	if in.BoundErr != nil {
		// Unknown client and mismatched redirect URI collapse to the same
		// Ignore outcome: the client cannot be trusted to receive a
		// redirect-based error if its identity or URI could not be
		// confirmed.
		return a.fail(Error{Kind: Ignore})
	}
	a.bound = in.BoundClient

	if a.responseType != "code" {
		return a.fail(Error{Kind: Redirect, RedirectURI: a.bound.RedirectURI, Code: CodeUnsupportedResponseType, State: a.reqState})
	}

	a.state = stateExtending
	return Output{Kind: Extend, ExtIn: a.extIn}
}

func (a *Authorization) extended(in Input) Output {
	if in.Kind != Extended {
		return a.fail(Error{Kind: PrimitiveErr})
	}
	if in.ExtendErr != nil {
		return a.fail(Error{Kind: Redirect, RedirectURI: a.bound.RedirectURI, Code: CodeInvalidRequest, State: a.reqState})
	}
	a.extensions = in.Extensions

	scope, err := grant.ParseScope(a.scope)
	if err != nil {
		return a.fail(Error{Kind: Redirect, RedirectURI: a.bound.RedirectURI, Code: CodeInvalidScope, State: a.reqState})
	}

	a.state = stateNegotiating
	return Output{Kind: Negotiate, Bound: a.bound, Scope: scope}
}

func (a *Authorization) negotiated(in Input) Output {
	if in.Kind != Negotiated {
		return a.fail(Error{Kind: PrimitiveErr})
	}
	if in.NegotiateErr != nil {
		return a.fail(Error{Kind: Redirect, RedirectURI: a.bound.RedirectURI, Code: CodeInvalidScope, State: a.reqState})
	}
	a.preGrant = in.PreGrant

	pending := &Pending{
		preGrant:   a.preGrant,
		state:      a.reqState,
		extensions: a.extensions,
	}
	a.state = statePending
	return Output{Kind: Ok, Pending: pending}
}

func (a *Authorization) fail(e Error) Output {
	a.state = stateErr
	a.err = e
	return Output{Kind: Err, Err: e}
}
