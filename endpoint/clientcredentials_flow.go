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

package endpoint

import (
	"context"

	"github.com/opentrusty/oauthcore/clientcredentials"
	"github.com/opentrusty/oauthcore/registrar"
)

// ClientCredentialsFlow drives the clientcredentials.ClientCredentials state
// machine against an Endpoint's Registrar and Issuer.
type ClientCredentialsFlow struct {
	ep *Endpoint
}

// NewClientCredentialsFlow validates that ep exposes a Registrar and an
// Issuer.
func NewClientCredentialsFlow(ep *Endpoint) (*ClientCredentialsFlow, error) {
	if ep.Registrar == nil || ep.Issuer == nil {
		return nil, ErrMissingPrimitive
	}
	return &ClientCredentialsFlow{ep: ep}, nil
}

// Execute runs the client_credentials request carried by req to
// completion, writing the outcome to resp.
func (f *ClientCredentialsFlow) Execute(ctx context.Context, req WebRequest, resp WebResponse) {
	body, err := req.URLBodyMap()
	if err != nil {
		writeError(resp, 400, clientcredentials.CodeInvalidRequest, "")
		return
	}

	header, hasAuth, err := req.AuthorizationHeader()
	if err != nil {
		writeError(resp, 400, clientcredentials.CodeInvalidRequest, "")
		return
	}
	clientID, passphrase := body["client_id"], []byte(body["client_secret"])
	if hasAuth {
		id, pass, ok := parseBasic(header)
		if !ok {
			writeError(resp, 400, clientcredentials.CodeInvalidRequest, "")
			return
		}
		clientID, passphrase = id, []byte(pass)
	}

	sm, out := clientcredentials.New(clientcredentials.Request{
		GrantType:         body["grant_type"],
		ClientID:          clientID,
		Passphrase:        passphrase,
		Scope:             body["scope"],
		IssueRefreshToken: f.ep.IssueClientCredentialsRefreshToken,
	})

	var scope string
	for {
		if ctx.Err() != nil {
			writeError(resp, 500, "server_error", "")
			return
		}
		switch out.Kind {
		case clientcredentials.Authenticate:
			authErr := f.ep.Registrar.Check(out.ClientID, out.Passphrase)
			out = sm.Advance(clientcredentials.Input{Kind: clientcredentials.AuthenticatedInput, AuthErr: authErr})
		case clientcredentials.Negotiate:
			// client_credentials has no redirect URI to bind; Negotiate is
			// called directly against the bare client id.
			bound := registrar.BoundClient{ClientID: out.ClientID}
			pre, negErr := f.ep.Registrar.Negotiate(bound, out.Scope)
			out = sm.Advance(clientcredentials.Input{Kind: clientcredentials.NegotiatedInput, PreGrant: pre, NegotiateErr: negErr})
		case clientcredentials.Issue:
			scope = out.Grant.Scope.String()
			tok, issueErr := f.ep.Issuer.Issue(*out.Grant, f.ep.IssueClientCredentialsRefreshToken)
			out = sm.Advance(clientcredentials.Input{Kind: clientcredentials.IssuedInput, Token: tok, IssueErr: issueErr})
		case clientcredentials.Ok:
			respBody := newTokenResponse(out.Token.Token, out.Token.Refresh, out.Token.Until, scope)
			resp.SetStatus(200)
			resp.SetHeader("Cache-Control", "no-store")
			resp.SetHeader("Pragma", "no-cache")
			_ = resp.SetBodyJSON(respBody)
			return
		case clientcredentials.Err:
			f.writeClientCredentialsError(resp, out.Err)
			return
		}
	}
}

func (f *ClientCredentialsFlow) writeClientCredentialsError(resp WebResponse, e clientcredentials.Error) {
	switch e.Kind {
	case clientcredentials.Unauthorized:
		writeError(resp, 401, e.Code, e.AuthType)
	case clientcredentials.Invalid:
		writeError(resp, 400, e.Code, "")
	default:
		writeError(resp, 500, "server_error", "")
	}
}
