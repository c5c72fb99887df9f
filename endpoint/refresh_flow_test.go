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
	"testing"

	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/registrar"
)

func newRefreshTestEndpoint(t *testing.T) (*Endpoint, *testPrimitives) {
	t.Helper()
	prim := newTestPrimitives()
	if _, err := prim.Registrar.Register(registrar.Client{
		ClientID: "c1", Type: registrar.Public, DefaultScope: grant.MustParseScope("read write"),
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return &Endpoint{Registrar: prim.Registrar, Issuer: prim.Issuer}, prim
}

func TestNewRefreshFlowRequiresPrimitives(t *testing.T) {
	if _, err := NewRefreshFlow(&Endpoint{}); err != ErrMissingPrimitive {
		t.Errorf("NewRefreshFlow with no primitives = %v, want %v", err, ErrMissingPrimitive)
	}
}

func TestRefreshFlowNarrowsScope(t *testing.T) {
	ep, prim := newRefreshTestEndpoint(t)
	flow, err := NewRefreshFlow(ep)
	if err != nil {
		t.Fatalf("NewRefreshFlow: %v", err)
	}

	issued, err := prim.Issuer.Issue(grant.Grant{OwnerID: "alice", ClientID: "c1", Scope: grant.MustParseScope("read write")}, true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := &fakeWebRequest{body: map[string]string{
		"grant_type": "refresh_token", "refresh_token": issued.Refresh, "scope": "read",
	}}
	resp := newFakeWebResponse()
	flow.Execute(context.Background(), req, resp)

	if resp.status != 200 {
		t.Fatalf("status = %d, want 200, body = %+v", resp.status, resp.bodyJSON)
	}
	if resp.bodyJSON["scope"] != "read" {
		t.Errorf("scope = %v, want the narrowed scope read", resp.bodyJSON["scope"])
	}
}

func TestRefreshFlowRejectsScopeEscalation(t *testing.T) {
	ep, prim := newRefreshTestEndpoint(t)
	flow, _ := NewRefreshFlow(ep)

	issued, err := prim.Issuer.Issue(grant.Grant{OwnerID: "alice", ClientID: "c1", Scope: grant.MustParseScope("read")}, true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := &fakeWebRequest{body: map[string]string{
		"grant_type": "refresh_token", "refresh_token": issued.Refresh, "scope": "read write admin",
	}}
	resp := newFakeWebResponse()
	flow.Execute(context.Background(), req, resp)

	if resp.status != 400 || resp.bodyJSON["error"] != "invalid_scope" {
		t.Errorf("scope escalation = %d %+v, want 400 invalid_scope", resp.status, resp.bodyJSON)
	}
}

func TestRefreshFlowRejectsUnknownToken(t *testing.T) {
	ep, _ := newRefreshTestEndpoint(t)
	flow, _ := NewRefreshFlow(ep)

	req := &fakeWebRequest{body: map[string]string{"grant_type": "refresh_token", "refresh_token": "bogus"}}
	resp := newFakeWebResponse()
	flow.Execute(context.Background(), req, resp)

	if resp.status != 400 || resp.bodyJSON["error"] != "invalid_grant" {
		t.Errorf("unknown refresh_token = %d %+v, want 400 invalid_grant", resp.status, resp.bodyJSON)
	}
}
