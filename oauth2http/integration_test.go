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

package oauth2http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/opentrusty/oauthcore/authorizer"
	"github.com/opentrusty/oauthcore/endpoint"
	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/issuer"
	"github.com/opentrusty/oauthcore/registrar"
)

func newTestHandler(t *testing.T) (*Handler, string, string) {
	t.Helper()
	clients := registrar.NewClientMap()
	clientID, err := clients.Register(registrar.Client{
		ClientID:     "test-client",
		RedirectURIs: []string{"https://client.example/cb"},
		DefaultScope: grant.MustParseScope("default"),
		Type:         registrar.Confidential,
		Passphrase:   []byte("test-secret"),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ep := &endpoint.Endpoint{
		Registrar:                          NewLockedRegistrar(clients),
		Authorizer:                         NewLockedAuthorizer(authorizer.NewMapAuthorizer(nil, time.Minute)),
		Issuer:                             NewLockedIssuer(issuer.NewTokenMap(nil, time.Hour)),
		Solicitor:                          AutoApproveSolicitor{},
		Scopes:                             []grant.Scope{grant.MustParseScope("default")},
		IssueClientCredentialsRefreshToken: true,
	}

	h, err := NewHandler(ep)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h, clientID, "test-secret"
}

func basicAuthHeader(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}

func TestAuthorizationCodeGrantEndToEnd(t *testing.T) {
	h, clientID, secret := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	authReq, _ := http.NewRequest(http.MethodGet, srv.URL+"/oauth2/authorize", nil)
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {"https://client.example/cb"},
		"state":         {"xyz"},
		"user_id":       {"alice"},
	}
	authReq.URL.RawQuery = q.Encode()
	authReq.Header.Set("User-Agent", "")

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(authReq)
	if err != nil {
		t.Fatalf("authorize request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize status = %d, want %d", resp.StatusCode, http.StatusFound)
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parsing redirect location: %v", err)
	}
	if got := loc.Query().Get("state"); got != "xyz" {
		t.Errorf("redirect state = %q, want %q", got, "xyz")
	}
	code := loc.Query().Get("code")
	if code == "" {
		t.Fatal("redirect should carry an authorization code")
	}

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {"https://client.example/cb"},
	}
	tokReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	tokReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokReq.Header.Set("Authorization", basicAuthHeader(clientID, secret))

	tokResp, err := http.DefaultClient.Do(tokReq)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer tokResp.Body.Close()
	if tokResp.StatusCode != http.StatusOK {
		t.Fatalf("token status = %d, want %d", tokResp.StatusCode, http.StatusOK)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}
	if err := json.NewDecoder(tokResp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	if body.AccessToken == "" {
		t.Fatal("token response should carry an access_token")
	}
	if body.TokenType != "Bearer" && body.TokenType != "bearer" {
		t.Errorf("token_type = %q, want Bearer", body.TokenType)
	}

	// Replaying the same code must fail: the code was consumed above.
	replay, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	replay.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	replay.Header.Set("Authorization", basicAuthHeader(clientID, secret))
	replayResp, err := http.DefaultClient.Do(replay)
	if err != nil {
		t.Fatalf("replay request: %v", err)
	}
	defer replayResp.Body.Close()
	if replayResp.StatusCode == http.StatusOK {
		t.Error("replaying a consumed authorization code must not succeed")
	}
}

func TestAuthorizationRequestDeniedWithoutUserID(t *testing.T) {
	h, clientID, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/oauth2/authorize", nil)
	req.URL.RawQuery = url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {"https://client.example/cb"},
	}.Encode()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("authorize request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	loc, _ := url.Parse(resp.Header.Get("Location"))
	if loc.Query().Get("error") != "access_denied" {
		t.Errorf("error = %q, want %q", loc.Query().Get("error"), "access_denied")
	}
}

func TestClientCredentialsGrantEndToEnd(t *testing.T) {
	h, clientID, secret := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	form := url.Values{"grant_type": {"client_credentials"}}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", basicAuthHeader(clientID, secret))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestClientCredentialsGrantRejectsBadSecret(t *testing.T) {
	h, clientID, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	form := url.Values{"grant_type": {"client_credentials"}}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", basicAuthHeader(clientID, "wrong-secret"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthorizationCodeGrantRejectsMismatchedRedirectURI(t *testing.T) {
	h, clientID, secret := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	authReq, _ := http.NewRequest(http.MethodGet, srv.URL+"/oauth2/authorize", nil)
	authReq.URL.RawQuery = url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {"https://client.example/cb"},
		"state":         {"xyz"},
		"user_id":       {"alice"},
	}.Encode()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(authReq)
	if err != nil {
		t.Fatalf("authorize request: %v", err)
	}
	defer resp.Body.Close()
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parsing redirect location: %v", err)
	}
	code := loc.Query().Get("code")
	if code == "" {
		t.Fatal("redirect should carry an authorization code")
	}

	// Presenting a different redirect_uri than the one bound at
	// authorization time must fail the exchange, per RFC 6749 §4.1.3.
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {"https://attacker.example/cb"},
	}
	tokReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	tokReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokReq.Header.Set("Authorization", basicAuthHeader(clientID, secret))

	tokResp, err := http.DefaultClient.Do(tokReq)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer tokResp.Body.Close()
	if tokResp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", tokResp.StatusCode, http.StatusBadRequest)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(tokResp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	if body.Error != "invalid_grant" {
		t.Errorf("error = %q, want %q", body.Error, "invalid_grant")
	}
}

func TestTokenRequestRejectsDuplicateClientCredentials(t *testing.T) {
	h, clientID, secret := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	// Both HTTP Basic and a client_id body parameter present at once is
	// ambiguous and must be rejected rather than silently preferring one.
	form := url.Values{"grant_type": {"client_credentials"}, "client_id": {clientID}}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", basicAuthHeader(clientID, secret))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRefreshGrantNarrowsScopeEndToEnd(t *testing.T) {
	h, clientID, secret := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	form := url.Values{"grant_type": {"client_credentials"}}
	tokReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	tokReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokReq.Header.Set("Authorization", basicAuthHeader(clientID, secret))
	tokResp, err := http.DefaultClient.Do(tokReq)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(tokResp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	tokResp.Body.Close()
	if body.RefreshToken == "" {
		t.Skip("client_credentials grant is not configured to mint a refresh token")
	}

	refreshForm := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {body.RefreshToken},
		"scope":         {"default"},
	}
	refreshReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(refreshForm.Encode()))
	refreshReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	refreshReq.Header.Set("Authorization", basicAuthHeader(clientID, secret))
	refreshResp, err := http.DefaultClient.Do(refreshReq)
	if err != nil {
		t.Fatalf("refresh request: %v", err)
	}
	defer refreshResp.Body.Close()
	if refreshResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", refreshResp.StatusCode, http.StatusOK)
	}
	var refreshed struct {
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(refreshResp.Body).Decode(&refreshed); err != nil {
		t.Fatalf("decoding refresh response: %v", err)
	}
	if refreshed.Scope != "default" {
		t.Errorf("scope = %q, want %q", refreshed.Scope, "default")
	}
}

func TestRequireBearerRejectsInsufficientScope(t *testing.T) {
	clients := registrar.NewClientMap()
	clientID, err := clients.Register(registrar.Client{
		ClientID:     "scoped-client",
		Type:         registrar.Confidential,
		Passphrase:   []byte("test-secret"),
		DefaultScope: grant.MustParseScope("default"),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ep := &endpoint.Endpoint{
		Registrar:  NewLockedRegistrar(clients),
		Authorizer: NewLockedAuthorizer(authorizer.NewMapAuthorizer(nil, time.Minute)),
		Issuer:     NewLockedIssuer(issuer.NewTokenMap(nil, time.Hour)),
		Solicitor:  AutoApproveSolicitor{},
		Scopes:     []grant.Scope{grant.MustParseScope("admin")},
		Realm:      "api",
	}
	h, err := NewHandler(ep)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/oauth2/token", http.HandlerFunc(h.Token))
	mux.Handle("/protected", h.RequireBearer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	form := url.Values{"grant_type": {"client_credentials"}}
	tokReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	tokReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokReq.Header.Set("Authorization", basicAuthHeader(clientID, "test-secret"))
	tokResp, err := http.DefaultClient.Do(tokReq)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(tokResp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	tokResp.Body.Close()

	protReq, _ := http.NewRequest(http.MethodGet, srv.URL+"/protected", nil)
	protReq.Header.Set("Authorization", "Bearer "+body.AccessToken)
	protResp, err := http.DefaultClient.Do(protReq)
	if err != nil {
		t.Fatalf("GET /protected: %v", err)
	}
	defer protResp.Body.Close()
	if protResp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", protResp.StatusCode, http.StatusForbidden)
	}
	if got := protResp.Header.Get("WWW-Authenticate"); !strings.Contains(got, "insufficient_scope") {
		t.Errorf("WWW-Authenticate = %q, want it to name insufficient_scope", got)
	}
}

func TestRequireBearerProtectsDownstreamHandler(t *testing.T) {
	h, clientID, secret := newTestHandler(t)

	mux := http.NewServeMux()
	mux.Handle("/oauth2/token", http.HandlerFunc(h.Token))
	mux.Handle("/protected", h.RequireBearer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g, ok := GrantFromContext(r.Context())
		if !ok {
			t.Fatal("RequireBearer should stash the recovered grant in the request context")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(g.OwnerID))
	})))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// No bearer token at all.
	resp, err := http.Get(srv.URL + "/protected")
	if err != nil {
		t.Fatalf("GET /protected: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without a token = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	tokReq, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	tokReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokReq.Header.Set("Authorization", basicAuthHeader(clientID, secret))
	tokResp, err := http.DefaultClient.Do(tokReq)
	if err != nil {
		t.Fatalf("token request: %v", err)
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(tokResp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	tokResp.Body.Close()

	protReq, _ := http.NewRequest(http.MethodGet, srv.URL+"/protected", nil)
	protReq.Header.Set("Authorization", "Bearer "+body.AccessToken)
	protResp, err := http.DefaultClient.Do(protReq)
	if err != nil {
		t.Fatalf("GET /protected with bearer token: %v", err)
	}
	defer protResp.Body.Close()
	if protResp.StatusCode != http.StatusOK {
		t.Errorf("status with a valid bearer token = %d, want %d", protResp.StatusCode, http.StatusOK)
	}
}
