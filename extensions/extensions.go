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

// Package extensions implements the addon mechanism §4.10 describes: small
// plugins that attach request-specific data to a Grant at authorization
// time and read it back at token-exchange time. PKCE is the canonical
// example and ships in this package.
package extensions

import "github.com/opentrusty/oauthcore/grant"

// AuthorizationAddon runs during the authorization-code request. params is
// the raw set of extension query parameters the host collected; the
// returned grant.Value (if any) is stored under the addon's id for later
// retrieval by a matching AccessTokenAddon.
type AuthorizationAddon interface {
	ID() string
	ExecuteAuthorization(params map[string]string) (*grant.Value, error)
}

// AccessTokenAddon runs during the token exchange, given the value a
// matching AuthorizationAddon stored on the grant (nil if none ran) and the
// raw extension parameters from the token request.
type AccessTokenAddon interface {
	ID() string
	ExecuteAccessToken(stored *grant.Value, params map[string]string) error
}

// List is an ordered registry of addons, run in registration order. It
// implements both the authorization and accesstoken driver's extension
// hook.
type List struct {
	authAddons  []AuthorizationAddon
	tokenAddons []AccessTokenAddon
}

// NewList returns an empty List.
func NewList() *List {
	return &List{}
}

// AddAuthorization registers an addon for the authorization-code request.
func (l *List) AddAuthorization(a AuthorizationAddon) {
	l.authAddons = append(l.authAddons, a)
}

// AddAccessToken registers an addon for the token exchange.
func (l *List) AddAccessToken(a AccessTokenAddon) {
	l.tokenAddons = append(l.tokenAddons, a)
}

// RunAuthorization executes every registered AuthorizationAddon against
// params, returning the extensions map to attach to the Pending
// authorization's eventual Grant.
func (l *List) RunAuthorization(params map[string]string) (grant.Extensions, error) {
	out := make(grant.Extensions, len(l.authAddons))
	for _, a := range l.authAddons {
		v, err := a.ExecuteAuthorization(params)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[a.ID()] = *v
		}
	}
	return out, nil
}

// RunAccessToken executes every registered AccessTokenAddon against the
// extensions carried by the recovered grant and the token request's
// parameters.
func (l *List) RunAccessToken(stored grant.Extensions, params map[string]string) (grant.Extensions, error) {
	for _, a := range l.tokenAddons {
		var v *grant.Value
		if sv, ok := stored[a.ID()]; ok {
			v = &sv
		}
		if err := a.ExecuteAccessToken(v, params); err != nil {
			return nil, err
		}
	}
	return stored, nil
}
