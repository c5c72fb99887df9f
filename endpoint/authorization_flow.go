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

	"github.com/opentrusty/oauthcore/authorization"
	"github.com/opentrusty/oauthcore/grant"
)

// AuthorizationFlow drives the authorization.Authorization state machine
// against an Endpoint's Registrar, Extensions and OwnerSolicitor.
type AuthorizationFlow struct {
	ep *Endpoint
}

// NewAuthorizationFlow validates that ep exposes a Registrar, an Authorizer
// and a Solicitor, and returns a flow bound to it.
func NewAuthorizationFlow(ep *Endpoint) (*AuthorizationFlow, error) {
	if ep.Registrar == nil || ep.Authorizer == nil || ep.Solicitor == nil {
		return nil, ErrMissingPrimitive
	}
	return &AuthorizationFlow{ep: ep}, nil
}

// Execute runs the authorization-code request carried by req to
// completion, writing the outcome to resp. It returns false only when the
// request was too malformed to safely respond to at all (authorization's
// Ignore error kind), in which case the caller must not send resp.
func (f *AuthorizationFlow) Execute(ctx context.Context, req WebRequest, resp WebResponse) (responded bool) {
	params, err := req.QueryMap()
	sm, out := authorization.New(authorization.Request{
		Malformed:    err != nil,
		ClientID:     params["client_id"],
		RedirectURI:  params["redirect_uri"],
		ResponseType: params["response_type"],
		Scope:        params["scope"],
		State:        params["state"],
		Extensions:   params,
	})

	for {
		if ctx.Err() != nil {
			writeError(resp, 500, "server_error", "")
			return true
		}
		switch out.Kind {
		case authorization.Bind:
			bound, bindErr := f.ep.Registrar.BoundRedirect(out.ClientID, out.RedirectURI)
			out = sm.Advance(authorization.Input{Kind: authorization.Bound, BoundClient: bound, BoundErr: bindErr})
		case authorization.Extend:
			exts, extErr := f.runExtensions(out.ExtIn)
			out = sm.Advance(authorization.Input{Kind: authorization.Extended, Extensions: exts, ExtendErr: extErr})
		case authorization.Negotiate:
			pre, negErr := f.ep.Registrar.Negotiate(out.Bound, out.Scope)
			out = sm.Advance(authorization.Input{Kind: authorization.Negotiated, PreGrant: pre, NegotiateErr: negErr})
		case authorization.Ok:
			return f.solicit(req, resp, out.Pending)
		case authorization.Err:
			return f.writeAuthorizationError(resp, out.Err)
		}
	}
}

func (f *AuthorizationFlow) runExtensions(params map[string]string) (grant.Extensions, error) {
	if f.ep.Extensions == nil {
		return nil, nil
	}
	return f.ep.Extensions.RunAuthorization(params)
}

func (f *AuthorizationFlow) writeAuthorizationError(resp WebResponse, e authorization.Error) bool {
	switch e.Kind {
	case authorization.Ignore:
		return false
	case authorization.Redirect:
		location, err := appendErrorParams(e.RedirectURI, e.Code, e.State)
		if err != nil {
			writeError(resp, 500, "server_error", "")
			return true
		}
		resp.SetStatus(302)
		resp.SetRedirect(location)
		return true
	default:
		writeError(resp, 500, "server_error", "")
		return true
	}
}

func (f *AuthorizationFlow) solicit(req WebRequest, resp WebResponse, pending *authorization.Pending) bool {
	consent, ownerID := f.ep.Solicitor.CheckConsent(req, resp, pending.PreGrant())
	switch consent {
	case InProgress:
		return true
	case Denied:
		e, _ := pending.Deny()
		location, err := appendErrorParams(e.RedirectURI, e.Code, e.State)
		if err != nil {
			writeError(resp, 500, "server_error", "")
			return true
		}
		resp.SetStatus(302)
		resp.SetRedirect(location)
		return true
	case Allowed:
		state := pending.State()
		g, err := pending.Authorize(ownerID)
		if err != nil {
			writeError(resp, 500, "server_error", "")
			return true
		}
		code, err := f.ep.Authorizer.Authorize(g)
		if err != nil {
			writeError(resp, 500, "server_error", "")
			return true
		}
		location, err := authorization.AppendCode(g.RedirectURI, code, state)
		if err != nil {
			writeError(resp, 500, "server_error", "")
			return true
		}
		resp.SetStatus(302)
		resp.SetRedirect(location)
		return true
	default:
		writeError(resp, 500, "server_error", "")
		return true
	}
}
