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

// Package oauth2http adapts the sans-I/O endpoint flows onto net/http and
// go-chi/chi, the way the teacher's internal/transport/http package adapts
// its direct-service-call handlers onto the same router.
package oauth2http

import (
	"net/http"

	"github.com/opentrusty/oauthcore/endpoint"
)

// webRequest implements endpoint.WebRequest over an *http.Request.
type webRequest struct {
	r *http.Request
}

func newWebRequest(r *http.Request) *webRequest {
	return &webRequest{r: r}
}

func (w *webRequest) Query(key string) (string, bool, error) {
	values, ok := w.r.URL.Query()[key]
	if !ok {
		return "", false, nil
	}
	if len(values) > 1 {
		return "", true, endpoint.ErrMultipleValues
	}
	return values[0], true, nil
}

func (w *webRequest) QueryMap() (map[string]string, error) {
	return flattenValues(w.r.URL.Query())
}

func (w *webRequest) URLBody(key string) (string, bool, error) {
	if err := w.r.ParseForm(); err != nil {
		return "", false, err
	}
	values, ok := w.r.PostForm[key]
	if !ok {
		return "", false, nil
	}
	if len(values) > 1 {
		return "", true, endpoint.ErrMultipleValues
	}
	return values[0], true, nil
}

func (w *webRequest) URLBodyMap() (map[string]string, error) {
	if err := w.r.ParseForm(); err != nil {
		return nil, err
	}
	return flattenValues(w.r.PostForm)
}

func (w *webRequest) AuthorizationHeader() (string, bool, error) {
	values := w.r.Header.Values("Authorization")
	switch len(values) {
	case 0:
		return "", false, nil
	case 1:
		return values[0], true, nil
	default:
		return "", true, endpoint.ErrMultipleValues
	}
}

// flattenValues rejects any key carrying more than one value, rather than
// silently taking the first (a request smuggling two client_id values, for
// instance, must not be allowed to pick whichever one the handler reads).
func flattenValues(values map[string][]string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 1 {
			return nil, endpoint.ErrMultipleValues
		}
		if len(v) == 1 {
			out[k] = v[0]
		}
	}
	return out, nil
}
