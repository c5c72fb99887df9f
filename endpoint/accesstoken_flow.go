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
	"strings"

	"github.com/opentrusty/oauthcore/accesstoken"
	"github.com/opentrusty/oauthcore/grant"
)

// AccessTokenFlow drives the accesstoken.AccessToken state machine against
// an Endpoint's Registrar, Authorizer, Issuer and Extensions.
type AccessTokenFlow struct {
	ep *Endpoint
}

// NewAccessTokenFlow validates that ep exposes a Registrar, an Authorizer
// and an Issuer.
func NewAccessTokenFlow(ep *Endpoint) (*AccessTokenFlow, error) {
	if ep.Registrar == nil || ep.Authorizer == nil || ep.Issuer == nil {
		return nil, ErrMissingPrimitive
	}
	return &AccessTokenFlow{ep: ep}, nil
}

func (f *AccessTokenFlow) credentials(req WebRequest, body map[string]string) (accesstoken.Credentials, error) {
	cred := accesstoken.NoCredentials

	header, ok, err := req.AuthorizationHeader()
	if err != nil {
		return accesstoken.Credentials{}, err
	}
	if ok {
		id, secret, basicOK := parseBasic(header)
		if basicOK {
			cred = cred.Add(accesstoken.Authenticated(id, []byte(secret)))
		}
	}

	if f.ep.AllowCredentialsInBody {
		if id, ok := body["client_id"]; ok {
			if secret, ok := body["client_secret"]; ok {
				cred = cred.Add(accesstoken.Authenticated(id, []byte(secret)))
			} else {
				cred = cred.Add(accesstoken.Unauthenticated(id))
			}
		}
	} else if id, ok := body["client_id"]; ok {
		cred = cred.Add(accesstoken.Unauthenticated(id))
	}

	return cred, nil
}

func parseBasic(header string) (user, pass string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	return decodeBasic(strings.TrimPrefix(header, prefix))
}

// Execute runs the token-exchange request carried by req to completion,
// writing the outcome to resp.
func (f *AccessTokenFlow) Execute(ctx context.Context, req WebRequest, resp WebResponse) {
	body, err := req.URLBodyMap()
	if err != nil {
		writeError(resp, 400, accesstoken.CodeInvalidRequest, "")
		return
	}
	cred, err := f.credentials(req, body)
	if err != nil {
		writeError(resp, 400, accesstoken.CodeInvalidRequest, "")
		return
	}

	sm, out := accesstoken.New(accesstoken.Request{
		GrantType:              body["grant_type"],
		Code:                   body["code"],
		RedirectURI:            body["redirect_uri"],
		Credentials:            cred,
		AllowCredentialsInBody: f.ep.AllowCredentialsInBody,
		Extensions:             body,
	})

	for {
		if ctx.Err() != nil {
			writeError(resp, 500, "server_error", "")
			return
		}
		switch out.Kind {
		case accesstoken.Authenticate:
			authErr := f.ep.Registrar.Check(out.ClientID, out.Passphrase)
			out = sm.Advance(accesstoken.Input{Kind: accesstoken.AuthenticatedInput, AuthErr: authErr})
		case accesstoken.Recover:
			g, _ := f.ep.Authorizer.Extract(out.Code)
			out = sm.Advance(accesstoken.Input{Kind: accesstoken.Recovered, RecoveredGrant: g})
		case accesstoken.Extend:
			var stored grant.Extensions
			if out.Grant != nil {
				stored = out.Grant.Extensions
			}
			exts, extErr := f.runExtensions(stored, out.ExtIn)
			out = sm.Advance(accesstoken.Input{Kind: accesstoken.Extended, Extensions: exts, ExtendErr: extErr})
		case accesstoken.Issue:
			tok, issueErr := f.ep.Issuer.Issue(*out.Grant, true)
			out = sm.Advance(accesstoken.Input{Kind: accesstoken.Issued, Token: tok, IssueErr: issueErr})
		case accesstoken.Ok:
			var scope string
			if out.Grant != nil {
				scope = out.Grant.Scope.String()
			}
			respBody := newTokenResponse(out.Token.Token, out.Token.Refresh, out.Token.Until, scope)
			resp.SetStatus(200)
			resp.SetHeader("Cache-Control", "no-store")
			resp.SetHeader("Pragma", "no-cache")
			_ = resp.SetBodyJSON(respBody)
			return
		case accesstoken.Err:
			f.writeAccessTokenError(resp, out.Err)
			return
		}
	}
}

func (f *AccessTokenFlow) runExtensions(stored grant.Extensions, params map[string]string) (grant.Extensions, error) {
	if f.ep.Extensions == nil {
		return stored, nil
	}
	return f.ep.Extensions.RunAccessToken(stored, params)
}

func (f *AccessTokenFlow) writeAccessTokenError(resp WebResponse, e accesstoken.Error) {
	switch e.Kind {
	case accesstoken.Unauthorized:
		writeError(resp, 401, e.Code, e.AuthType)
	case accesstoken.Invalid:
		writeError(resp, 400, e.Code, "")
	default:
		writeError(resp, 500, "server_error", "")
	}
}
