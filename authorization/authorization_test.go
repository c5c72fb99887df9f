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

package authorization

import (
	"testing"

	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/registrar"
)

func TestNewRejectsMalformedOrMissingClientID(t *testing.T) {
	if _, out := New(Request{Malformed: true}); out.Kind != Err || out.Err.Kind != Ignore {
		t.Errorf("malformed request = %+v, want Ignore", out)
	}
	if _, out := New(Request{ClientID: ""}); out.Kind != Err || out.Err.Kind != Ignore {
		t.Errorf("missing client_id = %+v, want Ignore", out)
	}
}

func TestBoundErrCollapsesToIgnore(t *testing.T) {
	sm, _ := New(Request{ClientID: "c1", ResponseType: "code"})
	out := sm.Advance(Input{Kind: Bound, BoundErr: registrar.Error})
	if out.Kind != Err || out.Err.Kind != Ignore {
		t.Errorf("unknown client / mismatched redirect = %+v, want Ignore", out)
	}
}

func TestBoundRejectsUnsupportedResponseType(t *testing.T) {
	sm, _ := New(Request{ClientID: "c1", ResponseType: "token"})
	out := sm.Advance(Input{Kind: Bound, BoundClient: registrar.BoundClient{ClientID: "c1", RedirectURI: "https://a.example/cb"}})
	if out.Kind != Err || out.Err.Code != CodeUnsupportedResponseType {
		t.Errorf("unsupported response_type = %+v, want unsupported_response_type", out)
	}
}

func TestExtendedRejectsMalformedScope(t *testing.T) {
	sm, _ := New(Request{ClientID: "c1", ResponseType: "code", Scope: `read"write`})
	sm.Advance(Input{Kind: Bound, BoundClient: registrar.BoundClient{ClientID: "c1", RedirectURI: "https://a.example/cb"}})
	out := sm.Advance(Input{Kind: Extended})
	if out.Kind != Err || out.Err.Kind != Redirect || out.Err.Code != CodeInvalidScope {
		t.Errorf("malformed scope token = %+v, want a Redirect with invalid_scope", out)
	}
}

func TestFullRoundTripProducesPendingAuthorization(t *testing.T) {
	sm, out := New(Request{ClientID: "c1", RedirectURI: "https://a.example/cb", ResponseType: "code", Scope: "read", State: "xyz"})
	if out.Kind != Bind {
		t.Fatalf("New = %+v, want Bind", out)
	}

	out = sm.Advance(Input{Kind: Bound, BoundClient: registrar.BoundClient{ClientID: "c1", RedirectURI: "https://a.example/cb"}})
	if out.Kind != Extend {
		t.Fatalf("bound = %+v, want Extend", out)
	}

	out = sm.Advance(Input{Kind: Extended})
	if out.Kind != Negotiate {
		t.Fatalf("extended = %+v, want Negotiate", out)
	}
	if got := out.Scope.String(); got != "read" {
		t.Errorf("parsed scope = %q, want %q", got, "read")
	}

	pre := grant.PreGrant{ClientID: "c1", RedirectURI: "https://a.example/cb", Scope: grant.MustParseScope("read")}
	out = sm.Advance(Input{Kind: Negotiated, PreGrant: pre})
	if out.Kind != Ok || out.Pending == nil {
		t.Fatalf("negotiated = %+v, want Ok with a Pending", out)
	}

	if got := out.Pending.State(); got != "xyz" {
		t.Errorf("Pending.State() = %q, want %q", got, "xyz")
	}

	g, err := out.Pending.Authorize("alice")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if g.OwnerID != "alice" || g.ClientID != "c1" {
		t.Errorf("Authorize produced %+v, want owner alice / client c1", g)
	}

	if _, err := out.Pending.Authorize("alice"); err != ErrAlreadyResolved {
		t.Errorf("resolving a Pending twice should return ErrAlreadyResolved, got %v", err)
	}
}

func TestPendingDenyIsOneShot(t *testing.T) {
	sm, _ := New(Request{ClientID: "c1", RedirectURI: "https://a.example/cb", ResponseType: "code", State: "xyz"})
	sm.Advance(Input{Kind: Bound, BoundClient: registrar.BoundClient{ClientID: "c1", RedirectURI: "https://a.example/cb"}})
	sm.Advance(Input{Kind: Extended})
	pre := grant.PreGrant{ClientID: "c1", RedirectURI: "https://a.example/cb"}
	out := sm.Advance(Input{Kind: Negotiated, PreGrant: pre})

	e, err := out.Pending.Deny()
	if err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if e.Code != CodeAccessDenied || e.State != "xyz" {
		t.Errorf("Deny = %+v, want access_denied with state xyz", e)
	}
	if _, err := out.Pending.Deny(); err != ErrAlreadyResolved {
		t.Errorf("denying a Pending twice should return ErrAlreadyResolved, got %v", err)
	}
}

func TestAppendCodeSetsQueryParameters(t *testing.T) {
	got, err := AppendCode("https://a.example/cb?existing=1", "abc123", "xyz")
	if err != nil {
		t.Fatalf("AppendCode: %v", err)
	}
	want := "https://a.example/cb?code=abc123&existing=1&state=xyz"
	if got != want {
		t.Errorf("AppendCode = %q, want %q", got, want)
	}
}
