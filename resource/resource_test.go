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

package resource

import (
	"testing"
	"time"

	"github.com/opentrusty/oauthcore/grant"
)

func TestNewRejectsMissingOrMalformedHeader(t *testing.T) {
	cases := []Request{
		{HeaderPresent: false},
		{HeaderPresent: true, MultipleHeaders: true, AuthorizationHeader: "Bearer x"},
		{HeaderPresent: true, AuthorizationHeader: "Basic xyz"},
		{HeaderPresent: true, AuthorizationHeader: "Bearer "},
	}
	for _, req := range cases {
		_, out := New(req)
		if out.Kind != Err || out.Err.Kind != InvalidRequest {
			t.Errorf("New(%+v) = %+v, want InvalidRequest", req, out)
		}
	}
}

func TestNewExtractsBearerToken(t *testing.T) {
	sm, out := New(Request{HeaderPresent: true, AuthorizationHeader: "Bearer abc123"})
	if out.Kind != Recover || out.Token != "abc123" {
		t.Fatalf("New = %+v, want Recover with token abc123", out)
	}
	if sm.token != "abc123" {
		t.Errorf("token = %q, want %q", sm.token, "abc123")
	}
}

func TestRecoveredNilGrantIsInvalidToken(t *testing.T) {
	sm, _ := New(Request{HeaderPresent: true, AuthorizationHeader: "Bearer abc123"})
	out := sm.Advance(Input{Kind: RecoveredInput, RecoveredGrant: nil})
	if out.Kind != Err || out.Err.Kind != InvalidToken {
		t.Errorf("Advance with a nil grant = %+v, want InvalidToken", out)
	}
}

func TestRecoveredExpiredGrantIsInvalidToken(t *testing.T) {
	now := time.Now()
	sm, _ := New(Request{HeaderPresent: true, AuthorizationHeader: "Bearer abc123", Now: func() time.Time { return now }})
	g := &grant.Grant{OwnerID: "alice", Until: now.Add(-time.Second)}
	out := sm.Advance(Input{Kind: RecoveredInput, RecoveredGrant: g})
	if out.Kind != Err || out.Err.Kind != InvalidToken {
		t.Errorf("Advance with an expired grant = %+v, want InvalidToken", out)
	}
}

func TestRecoveredLiveGrantProceedsToScopes(t *testing.T) {
	now := time.Now()
	sm, _ := New(Request{HeaderPresent: true, AuthorizationHeader: "Bearer abc123", Now: func() time.Time { return now }})
	g := &grant.Grant{OwnerID: "alice", Until: now.Add(time.Minute)}
	out := sm.Advance(Input{Kind: RecoveredInput, RecoveredGrant: g})
	if out.Kind != DetermineScopes {
		t.Fatalf("Advance with a live grant = %+v, want DetermineScopes", out)
	}
}

func TestScopedNoRequirementSucceeds(t *testing.T) {
	now := time.Now()
	sm, _ := New(Request{HeaderPresent: true, AuthorizationHeader: "Bearer abc123", Now: func() time.Time { return now }})
	g := &grant.Grant{OwnerID: "alice", Until: now.Add(time.Minute), Scope: grant.MustParseScope("read")}
	sm.Advance(Input{Kind: RecoveredInput, RecoveredGrant: g})
	out := sm.Advance(Input{Kind: ScopesInput, Scopes: nil})
	if out.Kind != Ok {
		t.Errorf("Advance with no required scopes = %+v, want Ok", out)
	}
}

func TestScopedRequiresOneMatchingScope(t *testing.T) {
	now := time.Now()
	sm, _ := New(Request{HeaderPresent: true, AuthorizationHeader: "Bearer abc123", Now: func() time.Time { return now }})
	g := &grant.Grant{OwnerID: "alice", Until: now.Add(time.Minute), Scope: grant.MustParseScope("read")}
	sm.Advance(Input{Kind: RecoveredInput, RecoveredGrant: g})
	out := sm.Advance(Input{Kind: ScopesInput, Scopes: []grant.Scope{grant.MustParseScope("write")}})
	if out.Kind != Err || out.Err.Kind != InsufficientScope {
		t.Errorf("Advance with an uncovered required scope = %+v, want InsufficientScope", out)
	}
}

func TestWWWAuthenticateRendersChallenge(t *testing.T) {
	e := Error{Kind: InsufficientScope, Scope: grant.MustParseScope("admin")}
	got := e.WWWAuthenticate("api")
	want := `Bearer realm="api",scope="admin",error="insufficient_scope"`
	if got != want {
		t.Errorf("WWWAuthenticate = %q, want %q", got, want)
	}
}
