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

// Package issuer implements the bearer/refresh token primitive: minting a
// token pair for a Grant, recovering the Grant a token stands for, and
// rotating a refresh token in place.
package issuer

import (
	"time"

	"github.com/opentrusty/oauthcore/grant"
)

// IssuedToken is the result of a fresh issuance.
type IssuedToken struct {
	Token        string
	Refresh      string // empty if the grant is not refreshable
	Until        time.Time
}

// RefreshedToken is the result of rotating a refresh token.
type RefreshedToken struct {
	Token   string
	Refresh string // may equal the prior refresh token if the issuer does not rotate it
	Until   time.Time
}

// Issuer mints and recovers bearer tokens.
type Issuer interface {
	// Issue mints a fresh access token, and a refresh token alongside it if
	// refreshable is true.
	Issue(g grant.Grant, refreshable bool) (IssuedToken, error)
	// Recover returns the Grant a bearer token stands for, or nil if the
	// token is unknown, expired, or has been invalidated by a refresh.
	Recover(token string) (*grant.Grant, error)
	// RecoverRefresh returns the Grant a refresh token stands for, or nil
	// under the same conditions as Recover.
	RecoverRefresh(token string) (*grant.Grant, error)
	// Refresh rotates the token pair bound to refreshToken, replacing g's
	// Until with its own policy and returning new access/refresh strings.
	// The prior access and refresh tokens are both invalidated atomically.
	Refresh(refreshToken string, g grant.Grant) (RefreshedToken, error)
}
