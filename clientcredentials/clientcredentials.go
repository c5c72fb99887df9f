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

// Package clientcredentials implements the Mealy state machine driving the
// client_credentials grant: authenticate the client, negotiate scope
// directly against the registrar (there is no authorization code, and no
// resource owner), and issue a bearer token.
//
// Per §9, refresh tokens are not issued for this grant by default — a
// client authenticating with its own credentials can simply do so again —
// but a host may opt in via Request.IssueRefreshToken.
package clientcredentials

import (
	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/issuer"
)

// Request is everything the machine needs from the incoming token request.
type Request struct {
	GrantType          string
	ClientID           string
	Passphrase         []byte
	Scope              string
	IssueRefreshToken  bool
}

// ErrorKind mirrors accesstoken.ErrorKind.
type ErrorKind int

const (
	Invalid ErrorKind = iota
	Unauthorized
	PrimitiveErr
)

const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidClient  = "invalid_client"
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
	stateAuthenticate stateKind = iota
	stateNegotiate
	stateIssue
	stateErr
)

// ClientCredentials is the Mealy machine instance for one client-credentials
// request. It is not safe for concurrent use.
type ClientCredentials struct {
	state stateKind

	clientID          string
	passphrase        []byte
	scope             string
	issueRefreshToken bool

	err Error
}

// OutputKind tags the variant carried by Output.
type OutputKind int

const (
	// Authenticate asks the driver to call Registrar.Check(ClientID, Passphrase).
	Authenticate OutputKind = iota
	// Negotiate asks the driver to call Registrar.Negotiate with a
	// BoundClient carrying only ClientID (no redirect URI is bound).
	Negotiate
	// Issue asks the driver to call Issuer.Issue(Grant, IssueRefreshToken).
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

	Scope grant.Scope

	Grant *grant.Grant

	Token issuer.IssuedToken
	Err   Error
}

// InputKind tags the variant carried by Input.
type InputKind int

const (
	AuthenticatedInput InputKind = iota
	NegotiatedInput
	IssuedInput
)

// Input is what the driver feeds back into Advance after performing the
// side effect the previous Output requested.
type Input struct {
	Kind InputKind

	AuthErr error

	PreGrant     grant.PreGrant
	BoundErr     error
	NegotiateErr error

	Token    issuer.IssuedToken
	IssueErr error
}

// New validates req and returns the machine along with its first Output.
func New(req Request) (*ClientCredentials, Output) {
	c := &ClientCredentials{scope: req.Scope, issueRefreshToken: req.IssueRefreshToken}

	if req.GrantType != "client_credentials" {
		return c.fail(Error{Kind: Invalid, Code: CodeInvalidRequest})
	}
	if req.ClientID == "" {
		return c.fail(Error{Kind: Invalid, Code: CodeInvalidClient})
	}

	c.clientID = req.ClientID
	c.passphrase = req.Passphrase
	c.state = stateAuthenticate
	return c, Output{Kind: Authenticate, ClientID: c.clientID, Passphrase: c.passphrase}
}

// Advance drives the machine forward with the result of the previously
// requested side effect.
func (c *ClientCredentials) Advance(in Input) Output {
	switch c.state {
	case stateAuthenticate:
		return c.authenticated(in)
	case stateNegotiate:
		return c.negotiated(in)
	case stateIssue:
		return c.issued(in)
	default:
		return c.failOut(c.err)
	}
}

func (c *ClientCredentials) authenticated(in Input) Output {
	if in.Kind != AuthenticatedInput {
		return c.failOut(Error{Kind: PrimitiveErr})
	}
	if in.AuthErr != nil {
		return c.failOut(Error{Kind: Unauthorized, Code: CodeInvalidClient, AuthType: "Basic"})
	}
	scope, err := grant.ParseScope(c.scope)
	if err != nil {
		return c.failOut(Error{Kind: Invalid, Code: CodeInvalidScope})
	}
	c.state = stateNegotiate
	return Output{Kind: Negotiate, ClientID: c.clientID, Scope: scope}
}

func (c *ClientCredentials) negotiated(in Input) Output {
	if in.Kind != NegotiatedInput {
		return c.failOut(Error{Kind: PrimitiveErr})
	}
	if in.BoundErr != nil {
		return c.failOut(Error{Kind: Unauthorized, Code: CodeInvalidClient, AuthType: "Basic"})
	}
	if in.NegotiateErr != nil {
		return c.failOut(Error{Kind: Invalid, Code: CodeInvalidScope})
	}

	g := &grant.Grant{
		OwnerID:     in.PreGrant.ClientID,
		ClientID:    in.PreGrant.ClientID,
		RedirectURI: in.PreGrant.RedirectURI,
		Scope:       in.PreGrant.Scope,
	}
	c.state = stateIssue
	return Output{Kind: Issue, Grant: g}
}

func (c *ClientCredentials) issued(in Input) Output {
	if in.Kind != IssuedInput {
		return c.failOut(Error{Kind: PrimitiveErr})
	}
	if in.IssueErr != nil {
		return c.failOut(Error{Kind: PrimitiveErr})
	}
	return Output{Kind: Ok, Token: in.Token}
}

func (c *ClientCredentials) fail(e Error) (*ClientCredentials, Output) {
	c.state = stateErr
	c.err = e
	return c, Output{Kind: Err, Err: e}
}

func (c *ClientCredentials) failOut(e Error) Output {
	_, out := c.fail(e)
	return out
}
