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

// Package registrar holds the client directory primitive: looking up a
// client by id, binding a requested redirect URI to it, negotiating a scope,
// and checking client authentication.
package registrar

import (
	"errors"

	"github.com/opentrusty/oauthcore/grant"
)

// Error is the single error value a Registrar may return to its caller.
// Every failure mode collapses to it deliberately: distinguishing "unknown
// client" from "known client, wrong redirect URI" or "wrong secret" to the
// outside world would let an attacker enumerate valid client ids.
var Error = errors.New("registrar: unspecified")

// ClientType distinguishes clients that can hold a secret from those that
// cannot (native and browser-based apps).
type ClientType int

const (
	// Public clients cannot authenticate with a secret; Check succeeds only
	// when no passphrase is presented.
	Public ClientType = iota
	// Confidential clients must present the correct passphrase to Check.
	Confidential
)

// BoundClient is the result of binding a client_id and an optional requested
// redirect URI against the registrar's directory.
type BoundClient struct {
	ClientID    string
	RedirectURI string
}

// Registrar is the client-directory primitive described by §4.1. All three
// methods return Error (never a typed client-not-found error) so that a
// flow driver cannot distinguish "no such client" from other rejections.
type Registrar interface {
	// BoundRedirect resolves client_id and, if present, validates that
	// redirectURI is among the client's registered URIs (an empty
	// redirectURI selects the client's sole or default registered URI,
	// erroring if the client has more than one on file).
	BoundRedirect(clientID, redirectURI string) (BoundClient, error)

	// Negotiate narrows a requested scope to one the client and its
	// registration permit. An empty requested scope yields the client's
	// default scope. The returned PreGrant always carries a non-broader
	// scope than requested.
	Negotiate(bound BoundClient, requested grant.Scope) (grant.PreGrant, error)

	// Check verifies client authentication: passphrase nil means "no
	// credential presented" (only acceptable for Public clients).
	Check(clientID string, passphrase []byte) error
}
