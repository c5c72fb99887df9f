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

package clientcredentials

import (
	"testing"

	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/issuer"
)

func TestNewRejectsWrongGrantTypeOrMissingClientID(t *testing.T) {
	if _, out := New(Request{GrantType: "authorization_code", ClientID: "c1"}); out.Kind != Err || out.Err.Code != CodeInvalidRequest {
		t.Errorf("wrong grant_type = %+v, want invalid_request", out)
	}
	if _, out := New(Request{GrantType: "client_credentials"}); out.Kind != Err || out.Err.Code != CodeInvalidClient {
		t.Errorf("missing client_id = %+v, want invalid_client", out)
	}
}

func TestAuthenticatedFailureIsUnauthorized(t *testing.T) {
	sm, _ := New(Request{GrantType: "client_credentials", ClientID: "c1"})
	out := sm.Advance(Input{Kind: AuthenticatedInput, AuthErr: errAuth})
	if out.Kind != Err || out.Err.Kind != Unauthorized {
		t.Errorf("failed client auth = %+v, want Unauthorized", out)
	}
}

func TestAuthenticatedRejectsMalformedScope(t *testing.T) {
	sm, _ := New(Request{GrantType: "client_credentials", ClientID: "c1", Scope: `read"write`})
	out := sm.Advance(Input{Kind: AuthenticatedInput})
	if out.Kind != Err || out.Err.Code != CodeInvalidScope {
		t.Errorf("malformed scope token = %+v, want invalid_scope", out)
	}
}

func TestFullRoundTrip(t *testing.T) {
	sm, out := New(Request{GrantType: "client_credentials", ClientID: "c1", Scope: "read"})
	if out.Kind != Authenticate {
		t.Fatalf("New = %+v, want Authenticate", out)
	}

	out = sm.Advance(Input{Kind: AuthenticatedInput})
	if out.Kind != Negotiate || out.Scope.String() != "read" {
		t.Fatalf("authenticated = %+v, want Negotiate with scope read", out)
	}

	pre := grant.PreGrant{ClientID: "c1", Scope: grant.MustParseScope("read")}
	out = sm.Advance(Input{Kind: NegotiatedInput, PreGrant: pre})
	if out.Kind != Issue || out.Grant.OwnerID != "c1" {
		t.Fatalf("negotiated = %+v, want Issue with owner c1", out)
	}

	out = sm.Advance(Input{Kind: IssuedInput, Token: issuer.IssuedToken{Token: "at"}})
	if out.Kind != Ok || out.Token.Token != "at" {
		t.Errorf("issued = %+v, want Ok", out)
	}
}

type authErr struct{}

func (authErr) Error() string { return "auth failed" }

var errAuth = authErr{}
