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

// Package endpoint couples the sans-I/O grant state machines to a host's
// wire format via the WebRequest/WebResponse contracts, and drives each of
// the five grant flows end to end.
package endpoint

import "errors"

// ErrMultipleValues is returned by Query/URLBody implementations when a key
// the caller asked for was repeated; RFC 6749 requests with duplicate
// parameters are treated as malformed rather than resolved by picking one.
var ErrMultipleValues = errors.New("endpoint: parameter repeated")

// WebRequest is the contract a host implements over its native request type
// (oauth2http implements it over *http.Request). Every accessor returns a
// single resolved value or an error — never a slice — so a flow never has
// to guess which of several same-named parameters to honor.
type WebRequest interface {
	// Query returns a single query parameter, "" and false if absent.
	Query(key string) (string, bool, error)
	// QueryMap returns the full query parameter set as single-valued pairs.
	QueryMap() (map[string]string, error)
	// URLBody returns a single form-encoded body parameter.
	URLBody(key string) (string, bool, error)
	// URLBodyMap returns the full form-encoded body as single-valued pairs.
	URLBodyMap() (map[string]string, error)
	// AuthorizationHeader returns the single Authorization header value, or
	// ok=false if absent. It returns ErrMultipleValues if more than one
	// Authorization header was presented.
	AuthorizationHeader() (value string, ok bool, err error)
}

// WebResponse is the contract a host implements to emit a response. Flows
// set the status, headers, redirect location and body on it directly; it
// exists so the same flow logic drives both a synchronous net/http handler
// and, e.g., a queued async worker.
type WebResponse interface {
	SetStatus(code int)
	SetHeader(key, value string)
	SetRedirect(location string)
	SetBodyJSON(v interface{}) error
	SetBodyText(body string)
}
