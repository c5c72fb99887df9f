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
	"errors"
	"log/slog"

	"github.com/opentrusty/oauthcore/authorizer"
	"github.com/opentrusty/oauthcore/extensions"
	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/issuer"
	"github.com/opentrusty/oauthcore/registrar"
)

// ErrMissingPrimitive is returned by a flow constructor when the Endpoint
// does not expose a primitive that flow needs.
var ErrMissingPrimitive = errors.New("endpoint: required primitive not configured")

// Consent is the resource owner's decision on a Pending authorization.
type Consent int

const (
	// Denied: the owner explicitly refused.
	Denied Consent = iota
	// Allowed: the owner approved; OwnerID names who.
	Allowed
	// InProgress: the host needs to render UI (login, consent screen)
	// before a decision exists; the flow stops and returns the supplied
	// WebResponse as-is.
	InProgress
)

// OwnerSolicitor resolves whether the resource owner has approved the
// PreGrant a Pending authorization carries. A host's real implementation
// typically inspects a session cookie and, if there is none yet, writes a
// redirect to a login/consent page onto resp and returns InProgress.
type OwnerSolicitor interface {
	CheckConsent(req WebRequest, resp WebResponse, pre grant.PreGrant) (consent Consent, ownerID string)
}

// Endpoint bundles the primitives and policy a host wires together. Flow
// constructors validate at construction time that the primitives they need
// are present, per §4.9.
type Endpoint struct {
	Registrar  registrar.Registrar
	Authorizer authorizer.Authorizer
	Issuer     issuer.Issuer
	Solicitor  OwnerSolicitor
	// Scopes is the set of scopes a ResourceFlow built from this Endpoint
	// will accept; an empty Scopes accepts any non-empty grant.
	Scopes []grant.Scope
	// Extensions is the addon registry consulted by AuthorizationFlow and
	// AccessTokenFlow. A nil Extensions runs no addons.
	Extensions *extensions.List
	// AllowCredentialsInBody opts into accepting client_id/client_secret as
	// token-request body parameters in addition to HTTP Basic.
	AllowCredentialsInBody bool
	// IssueClientCredentialsRefreshToken opts the client_credentials grant
	// into also minting a refresh token, off by default per §9.
	IssueClientCredentialsRefreshToken bool
	// Realm names the protection realm reported in WWW-Authenticate
	// challenges raised by ResourceFlow.
	Realm string

	Logger *slog.Logger
}

func (e *Endpoint) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
