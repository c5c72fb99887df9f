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
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/opentrusty/oauthcore/authorizer"
	"github.com/opentrusty/oauthcore/generator"
	"github.com/opentrusty/oauthcore/issuer"
	"github.com/opentrusty/oauthcore/registrar"
)

// fakeWebRequest is the in-memory WebRequest a flow test drives, letting a
// test set query/body parameters and an Authorization header directly
// instead of going through net/http.
type fakeWebRequest struct {
	query    map[string]string
	body     map[string]string
	authHdr  string
	authSet  bool
	authDups bool
}

func (r *fakeWebRequest) Query(key string) (string, bool, error) {
	v, ok := r.query[key]
	return v, ok, nil
}

func (r *fakeWebRequest) QueryMap() (map[string]string, error) {
	return r.query, nil
}

func (r *fakeWebRequest) URLBody(key string) (string, bool, error) {
	v, ok := r.body[key]
	return v, ok, nil
}

func (r *fakeWebRequest) URLBodyMap() (map[string]string, error) {
	return r.body, nil
}

func (r *fakeWebRequest) AuthorizationHeader() (string, bool, error) {
	if r.authDups {
		return "", false, ErrMultipleValues
	}
	return r.authHdr, r.authSet, nil
}

func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// fakeWebResponse records everything a flow writes so a test can assert on
// the outcome.
type fakeWebResponse struct {
	status   int
	headers  map[string]string
	redirect string
	bodyJSON map[string]interface{}
	bodyText string
}

func newFakeWebResponse() *fakeWebResponse {
	return &fakeWebResponse{headers: make(map[string]string)}
}

func (w *fakeWebResponse) SetStatus(code int)          { w.status = code }
func (w *fakeWebResponse) SetHeader(key, value string) { w.headers[key] = value }
func (w *fakeWebResponse) SetRedirect(location string) { w.redirect = location }
func (w *fakeWebResponse) SetBodyText(body string)     { w.bodyText = body }

func (w *fakeWebResponse) SetBodyJSON(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.bodyJSON = map[string]interface{}{}
	return json.Unmarshal(raw, &w.bodyJSON)
}

// testPrimitives bundles a fresh ClientMap/MapAuthorizer/TokenMap trio,
// grounded on the same constructors oauth2http's integration tests wire
// together, for flow tests that need real primitives rather than stubs.
type testPrimitives struct {
	Registrar  *registrar.ClientMap
	Authorizer *authorizer.MapAuthorizer
	Issuer     *issuer.TokenMap
}

func newTestPrimitives() *testPrimitives {
	gen := generator.RandomGenerator{Length: 24}
	return &testPrimitives{
		Registrar:  registrar.NewClientMap(),
		Authorizer: authorizer.NewMapAuthorizer(gen, time.Minute),
		Issuer:     issuer.NewTokenMap(gen, time.Hour),
	}
}
