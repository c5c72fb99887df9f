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

// Package accesstoken implements the Mealy state machine driving the
// authorization_code token exchange: authenticate the client, recover the
// code's grant, run extensions, and issue a bearer token.
package accesstoken

import (
	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/issuer"
)

// Credentials is the sum type produced by validating the client
// authentication carried on a token request. A confidential client may
// authenticate via HTTP Basic or, if the host opts in, via client_id +
// client_secret body parameters — but never both at once.
type Credentials struct {
	kind credKind
	id   string
	pass []byte
}

type credKind int

const (
	credNone credKind = iota
	credAuthenticated
	credUnauthenticated
	credDuplicate
)

// NoCredentials is the zero Credentials: no authentication was presented.
var NoCredentials = Credentials{kind: credNone}

// Authenticated builds a Credentials carrying a client id and passphrase.
func Authenticated(clientID string, passphrase []byte) Credentials {
	return Credentials{kind: credAuthenticated, id: clientID, pass: passphrase}
}

// Unauthenticated builds a Credentials carrying only a client id (a public
// client identifying itself without a secret).
func Unauthenticated(clientID string) Credentials {
	return Credentials{kind: credUnauthenticated, id: clientID}
}

// Add combines c with other, collapsing to Duplicate if both are non-None: a
// request presenting both a Basic header and body credentials must be
// rejected outright rather than having one silently win, since that
// ambiguity is itself a smuggling vector.
func (c Credentials) Add(other Credentials) Credentials {
	if c.kind == credNone {
		return other
	}
	if other.kind == credNone {
		return c
	}
	return Credentials{kind: credDuplicate}
}

// ClientID returns the presented client id and whether Credentials carries
// one (false for None and Duplicate).
func (c Credentials) ClientID() (string, bool) {
	switch c.kind {
	case credAuthenticated, credUnauthenticated:
		return c.id, true
	default:
		return "", false
	}
}

// Passphrase returns the presented passphrase, or nil if none was given.
func (c Credentials) Passphrase() []byte {
	if c.kind == credAuthenticated {
		return c.pass
	}
	return nil
}

// Valid reports whether c resolves to exactly one candidate client, i.e. is
// neither None nor Duplicate.
func (c Credentials) Valid() bool {
	return c.kind == credAuthenticated || c.kind == credUnauthenticated
}

// Request is everything the machine needs from the incoming token request.
type Request struct {
	GrantType              string
	Code                   string
	RedirectURI            string
	Credentials            Credentials
	AllowCredentialsInBody bool
	Extensions             map[string]string
}

// ErrorKind distinguishes the three ways §4.5 says this machine can fail.
type ErrorKind int

const (
	// Invalid means the request itself is malformed or the grant it names
	// does not check out (RFC 6749 error code carried in Code).
	Invalid ErrorKind = iota
	// Unauthorized means client authentication failed; AuthType names the
	// WWW-Authenticate scheme the response must challenge with.
	Unauthorized
	// PrimitiveErr means a primitive failed for reasons unrelated to the
	// request's validity.
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
	AuthType string // set when Kind == Unauthorized, e.g. "Basic"
}

type stateKind int

const (
	stateAuthenticate stateKind = iota
	stateRecover
	stateExtend
	stateIssue
	stateErr
)

// AccessToken is the Mealy machine instance for one token-exchange request.
// It is not safe for concurrent use.
type AccessToken struct {
	state stateKind

	code        string
	redirectURI string
	extIn       map[string]string

	clientID string

	grant      *grant.Grant
	extensions grant.Extensions

	err Error
}

// OutputKind tags the variant carried by Output.
type OutputKind int

const (
	// Authenticate asks the driver to call Registrar.Check(ClientID, Passphrase).
	Authenticate OutputKind = iota
	// Recover asks the driver to call Authorizer.Extract(Code).
	Recover
	// Extend asks the driver to run registered extensions against ExtIn.
	Extend
	// Issue asks the driver to call Issuer.Issue(Grant, refreshable=true).
	Issue
	// Ok is the terminal success.
	Ok
	// Err is the terminal failure.
	Err
)

// Output is the value the machine hands back after each Advance call.
type Output struct {
	Kind OutputKind

	ClientID   string
	Passphrase []byte

	Code string

	ExtIn map[string]string

	Grant *grant.Grant

	Token issuer.IssuedToken // Ok
	Err   Error
}

// InputKind tags the variant carried by Input.
type InputKind int

const (
	AuthenticatedInput InputKind = iota
	Recovered
	Extended
	Issued
)

// Input is what the driver feeds back into Advance after performing the
// side effect the previous Output requested.
type Input struct {
	Kind InputKind

	AuthErr error

	RecoveredGrant *grant.Grant

	Extensions grant.Extensions
	ExtendErr  error

	Token    issuer.IssuedToken
	IssueErr error
}

// New validates req and returns the machine along with its first Output
// (Authenticate, or Err if the request is malformed beyond repair).
func New(req Request) (*AccessToken, Output) {
	a := &AccessToken{extIn: req.Extensions}

	if req.GrantType != "authorization_code" {
		return a.fail(Error{Kind: Invalid, Code: CodeInvalidRequest})
	}
	if req.Credentials.kind == credDuplicate {
		return a.fail(Error{Kind: Invalid, Code: CodeInvalidRequest})
	}
	clientID, ok := req.Credentials.ClientID()
	if !ok {
		return a.fail(Error{Kind: Invalid, Code: CodeInvalidClient})
	}
	if req.Code == "" {
		return a.fail(Error{Kind: Invalid, Code: CodeInvalidRequest})
	}

	a.clientID = clientID
	a.code = req.Code
	a.redirectURI = req.RedirectURI
	a.state = stateAuthenticate
	return a, Output{Kind: Authenticate, ClientID: clientID, Passphrase: req.Credentials.Passphrase()}
}

// Advance drives the machine forward with the result of the previously
// requested side effect.
func (a *AccessToken) Advance(in Input) Output {
	switch a.state {
	case stateAuthenticate:
		return a.authenticated(in)
	case stateRecover:
		return a.recovered(in)
	case stateExtend:
		return a.extended(in)
	case stateIssue:
		return a.issued(in)
	default:
		return a.failOut(a.err)
	}
}

func (a *AccessToken) authenticated(in Input) Output {
	if in.Kind != AuthenticatedInput {
		return a.failOut(Error{Kind: PrimitiveErr})
	}
	if in.AuthErr != nil {
		return a.failOut(Error{Kind: Unauthorized, Code: CodeInvalidClient, AuthType: "Basic"})
	}
	a.state = stateRecover
	return Output{Kind: Recover, Code: a.code}
}

func (a *AccessToken) recovered(in Input) Output {
	if in.Kind != Recovered {
		return a.failOut(Error{Kind: PrimitiveErr})
	}
	g := in.RecoveredGrant
	if g == nil {
		// Unknown code and already-consumed code collapse to the same
		// invalid_grant outcome per §4.5.
		return a.failOut(Error{Kind: Invalid, Code: CodeInvalidGrant})
	}
	if g.ClientID != a.clientID || g.RedirectURI != a.redirectURI {
		return a.failOut(Error{Kind: Invalid, Code: CodeInvalidGrant})
	}
	a.grant = g

	a.state = stateExtend
	return Output{Kind: Extend, ExtIn: a.extIn, Grant: g}
}

func (a *AccessToken) extended(in Input) Output {
	if in.Kind != Extended {
		return a.failOut(Error{Kind: PrimitiveErr})
	}
	if in.ExtendErr != nil {
		return a.failOut(Error{Kind: Invalid, Code: CodeInvalidRequest})
	}
	a.extensions = in.Extensions
	g := *a.grant
	g.Extensions = a.extensions
	a.grant = &g

	a.state = stateIssue
	return Output{Kind: Issue, Grant: &g}
}

func (a *AccessToken) issued(in Input) Output {
	if in.Kind != Issued {
		return a.failOut(Error{Kind: PrimitiveErr})
	}
	if in.IssueErr != nil {
		return a.failOut(Error{Kind: PrimitiveErr})
	}
	return Output{Kind: Ok, Token: in.Token, Grant: a.grant}
}

func (a *AccessToken) fail(e Error) (*AccessToken, Output) {
	a.state = stateErr
	a.err = e
	return a, Output{Kind: Err, Err: e}
}

func (a *AccessToken) failOut(e Error) Output {
	_, out := a.fail(e)
	return out
}
