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

func newClientCredentialsTestEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	prim := newTestPrimitives()
	if _, err := prim.Registrar.Register(registrar.Client{
		ClientID: "c1", Type: registrar.Confidential, Passphrase: []byte("s3cret"),
		DefaultScope: grant.MustParseScope("read"),
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return &Endpoint{Registrar: prim.Registrar, Issuer: prim.Issuer}
}

func TestNewClientCredentialsFlowRequiresPrimitives(t *testing.T) {
	if _, err := NewClientCredentialsFlow(&Endpoint{}); err != ErrMissingPrimitive {
		t.Errorf("NewClientCredentialsFlow with no primitives = %v, want %v", err, ErrMissingPrimitive)
	}
}

func TestClientCredentialsFlowIssuesToken(t *testing.T) {
	ep := newClientCredentialsTestEndpoint(t)
	flow, err := NewClientCredentialsFlow(ep)
	if err != nil {
		t.Fatalf("NewClientCredentialsFlow: %v", err)
	}

	req := &fakeWebRequest{
		body:    map[string]string{"grant_type": "client_credentials", "scope": "read"},
		authHdr: basicAuthHeader("c1", "s3cret"),
		authSet: true,
	}
	resp := newFakeWebResponse()
	flow.Execute(context.Background(), req, resp)

	if resp.status != 200 {
		t.Fatalf("status = %d, want 200, body = %+v", resp.status, resp.bodyJSON)
	}
	if resp.bodyJSON["refresh_token"] != nil {
		t.Error("client_credentials should not mint a refresh token unless configured to")
	}
}

func TestClientCredentialsFlowRejectsBadSecret(t *testing.T) {
	ep := newClientCredentialsTestEndpoint(t)
	flow, _ := NewClientCredentialsFlow(ep)

	req := &fakeWebRequest{
		body:    map[string]string{"grant_type": "client_credentials"},
		authHdr: basicAuthHeader("c1", "wrong"),
		authSet: true,
	}
	resp := newFakeWebResponse()
	flow.Execute(context.Background(), req, resp)

	if resp.status != 401 || resp.bodyJSON["error"] != "invalid_client" {
		t.Errorf("bad secret = %d %+v, want 401 invalid_client", resp.status, resp.bodyJSON)
	}
}

func TestClientCredentialsFlowNarrowsUnregisteredScopeToEmpty(t *testing.T) {
	ep := newClientCredentialsTestEndpoint(t)
	flow, _ := NewClientCredentialsFlow(ep)

	req := &fakeWebRequest{
		body:    map[string]string{"grant_type": "client_credentials", "scope": "admin"},
		authHdr: basicAuthHeader("c1", "s3cret"),
		authSet: true,
	}
	resp := newFakeWebResponse()
	flow.Execute(context.Background(), req, resp)

	if resp.status != 200 {
		t.Fatalf("status = %d, want 200, body = %+v", resp.status, resp.bodyJSON)
	}
	if resp.bodyJSON["scope"] != nil && resp.bodyJSON["scope"] != "" {
		t.Errorf("scope = %v, want empty since the client is not registered for admin", resp.bodyJSON["scope"])
	}
}

func TestClientCredentialsFlowMalformedScopeIsInvalidScope(t *testing.T) {
	ep := newClientCredentialsTestEndpoint(t)
	flow, _ := NewClientCredentialsFlow(ep)

	req := &fakeWebRequest{
		body:    map[string]string{"grant_type": "client_credentials", "scope": `read"write`},
		authHdr: basicAuthHeader("c1", "s3cret"),
		authSet: true,
	}
	resp := newFakeWebResponse()
	flow.Execute(context.Background(), req, resp)

	if resp.status != 400 || resp.bodyJSON["error"] != "invalid_scope" {
		t.Errorf("malformed scope token = %d %+v, want 400 invalid_scope", resp.status, resp.bodyJSON)
	}
}
