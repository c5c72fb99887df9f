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

	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/resource"
)

// ResourceFlow drives the resource.Resource state machine against an
// Endpoint's Issuer and configured Scopes, guarding one protected request.
type ResourceFlow struct {
	ep *Endpoint
}

// NewResourceFlow validates that ep exposes an Issuer.
func NewResourceFlow(ep *Endpoint) (*ResourceFlow, error) {
	if ep.Issuer == nil {
		return nil, ErrMissingPrimitive
	}
	return &ResourceFlow{ep: ep}, nil
}

// Execute guards req, returning the Grant behind its bearer token on
// success. On failure it writes a 401/403 with a WWW-Authenticate
// challenge to resp and returns nil.
func (f *ResourceFlow) Execute(ctx context.Context, req WebRequest, resp WebResponse) *grant.Grant {
	header, present, err := req.AuthorizationHeader()
	sm, out := resource.New(resource.Request{
		AuthorizationHeader: header,
		HeaderPresent:       present,
		MultipleHeaders:     err == ErrMultipleValues,
	})

	for {
		if ctx.Err() != nil {
			writeError(resp, 500, "server_error", "")
			return nil
		}
		switch out.Kind {
		case resource.Recover:
			g, _ := f.ep.Issuer.Recover(out.Token)
			out = sm.Advance(resource.Input{Kind: resource.RecoveredInput, RecoveredGrant: g})
		case resource.DetermineScopes:
			out = sm.Advance(resource.Input{Kind: resource.ScopesInput, Scopes: f.ep.Scopes})
		case resource.Ok:
			return out.Grant
		case resource.Err:
			if out.Err.Kind == resource.PrimitiveErr {
				writeError(resp, 500, "server_error", "")
				return nil
			}
			status := 401
			if out.Err.Kind == resource.InsufficientScope {
				status = 403
			}
			resp.SetStatus(status)
			resp.SetHeader("WWW-Authenticate", out.Err.WWWAuthenticate(f.ep.Realm))
			resp.SetHeader("Cache-Control", "no-store")
			_ = resp.SetBodyJSON(oauthError{Error: wwwErrorCode(out.Err.Kind)})
			return nil
		}
	}
}

func wwwErrorCode(kind resource.ErrorKind) string {
	switch kind {
	case resource.InvalidRequest:
		return "invalid_request"
	case resource.InvalidToken:
		return "invalid_token"
	case resource.InsufficientScope:
		return "insufficient_scope"
	default:
		return "server_error"
	}
}
