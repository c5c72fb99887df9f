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

	"github.com/opentrusty/oauthcore/refresh"
)

// RefreshFlow drives the refresh.Refresh state machine against an
// Endpoint's Registrar and Issuer.
type RefreshFlow struct {
	ep *Endpoint
}

// NewRefreshFlow validates that ep exposes a Registrar and an Issuer.
func NewRefreshFlow(ep *Endpoint) (*RefreshFlow, error) {
	if ep.Registrar == nil || ep.Issuer == nil {
		return nil, ErrMissingPrimitive
	}
	return &RefreshFlow{ep: ep}, nil
}

// Execute runs the refresh_token request carried by req to completion,
// writing the outcome to resp.
func (f *RefreshFlow) Execute(ctx context.Context, req WebRequest, resp WebResponse) {
	body, err := req.URLBodyMap()
	if err != nil {
		writeError(resp, 400, refresh.CodeInvalidRequest, "")
		return
	}

	header, hasAuth, err := req.AuthorizationHeader()
	if err != nil {
		writeError(resp, 400, refresh.CodeInvalidRequest, "")
		return
	}
	var clientID string
	var passphrase []byte
	if hasAuth {
		id, pass, ok := parseBasic(header)
		if !ok {
			writeError(resp, 400, refresh.CodeInvalidRequest, "")
			return
		}
		clientID, passphrase = id, []byte(pass)
		if f.ep.Registrar.Check(clientID, passphrase) != nil {
			writeError(resp, 401, refresh.CodeInvalidClient, "Basic")
			return
		}
	}

	sm, out := refresh.New(refresh.Request{
		GrantType:     body["grant_type"],
		RefreshToken:  body["refresh_token"],
		Scope:         body["scope"],
		Authenticated: hasAuth,
		ClientID:      clientID,
		Passphrase:    passphrase,
	})

	for {
		if ctx.Err() != nil {
			writeError(resp, 500, "server_error", "")
			return
		}
		switch out.Kind {
		case refresh.Recover:
			g, _ := f.ep.Issuer.RecoverRefresh(out.RefreshToken)
			out = sm.Advance(refresh.Input{Kind: refresh.RecoveredInput, RecoveredGrant: g})
		case refresh.Authenticate:
			authErr := f.ep.Registrar.Check(out.ClientID, nil)
			out = sm.Advance(refresh.Input{Kind: refresh.AuthenticatedInput, AuthErr: authErr})
		case refresh.Refresh:
			tok, issueErr := f.ep.Issuer.Refresh(out.RefreshToken, *out.Grant)
			out = sm.Advance(refresh.Input{Kind: refresh.RefreshedInput, Token: tok, IssueErr: issueErr})
		case refresh.Ok:
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
		case refresh.Err:
			f.writeRefreshError(resp, out.Err)
			return
		}
	}
}

func (f *RefreshFlow) writeRefreshError(resp WebResponse, e refresh.Error) {
	switch e.Kind {
	case refresh.Unauthorized:
		writeError(resp, 401, e.Code, e.AuthType)
	case refresh.Invalid:
		writeError(resp, 400, e.Code, "")
	default:
		writeError(resp, 500, "server_error", "")
	}
}
