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
	"encoding/json"
	"net/http"
)

// webResponse implements endpoint.WebResponse over an http.ResponseWriter.
// Status defaults to 200 if SetStatus is never called; the status is only
// written to the wire once the body is written, so SetHeader calls made
// after SetStatus still take effect.
type webResponse struct {
	w       http.ResponseWriter
	status  int
	written bool
}

func newWebResponse(w http.ResponseWriter) *webResponse {
	return &webResponse{w: w, status: http.StatusOK}
}

func (r *webResponse) SetStatus(code int) {
	r.status = code
}

// statusCode reports the status the response has accumulated so far, for
// callers (audit logging) that need to classify the outcome after Execute
// returns.
func (r *webResponse) statusCode() int {
	return r.status
}

func (r *webResponse) SetHeader(key, value string) {
	r.w.Header().Set(key, value)
}

func (r *webResponse) SetRedirect(location string) {
	r.w.Header().Set("Location", location)
}

func (r *webResponse) SetBodyJSON(v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.w.Header().Set("Content-Type", "application/json")
	r.w.WriteHeader(r.status)
	r.written = true
	_, err = r.w.Write(body)
	return err
}

func (r *webResponse) SetBodyText(body string) {
	r.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	r.w.WriteHeader(r.status)
	r.written = true
	_, _ = r.w.Write([]byte(body))
}

// flush writes the status line for a response that only ever called
// SetStatus/SetHeader/SetRedirect — the redirect path never writes a body,
// so without this the client would see the Location header but no status.
// It is a no-op once SetBodyJSON/SetBodyText has already written the
// response, which already called WriteHeader itself.
func (r *webResponse) flush() {
	if r.written {
		return
	}
	r.w.WriteHeader(r.status)
	r.written = true
}
