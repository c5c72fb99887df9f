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

// Package generator implements the token-string backends shared by the
// authorizer and issuer primitives: entropy-based random strings and two
// stateless, cryptographically-signed assertion encodings.
package generator

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/opentrusty/oauthcore/grant"
)

// ErrDuplicate is returned by the map-backed primitives (MapAuthorizer,
// TokenMap) when a TagGrant produces a token string that is already in use.
// They refuse the issuance rather than silently clobber the previously
// issued token.
var ErrDuplicate = errors.New("generator: duplicate token")

// ErrPrivateExtension is returned by the signed assertion generators when the
// grant carries a private extension value; signed tokens cannot carry
// anything that must not leave the issuing primitive.
var ErrPrivateExtension = errors.New("generator: grant carries a private extension")

// TagGrant produces the wire string for one (usage, Grant) pair. usage
// disambiguates calls that must not collide, e.g. the access-token and
// refresh-token halves of a single issuance.
type TagGrant interface {
	Tag(usage uint64, g *grant.Grant) (string, error)
}

// RandomGenerator produces fixed-length base64url-encoded random strings. It
// carries no information about the grant and requires the caller to keep a
// lookup table (the map-backed authorizer and issuer do).
type RandomGenerator struct {
	// Length is the number of random bytes before encoding. Zero selects 16.
	Length int
}

// Tag ignores both arguments beyond sizing and returns fresh entropy.
func (r RandomGenerator) Tag(_ uint64, _ *grant.Grant) (string, error) {
	n := r.Length
	if n <= 0 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generator: read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// serialGrant is the JSON projection of a Grant signed by Assertion and
// JWTAssertion. Extensions are flattened to their public values only; a
// private value present anywhere in the grant aborts signing.
type serialGrant struct {
	OwnerID     string            `json:"owner_id"`
	ClientID    string            `json:"client_id"`
	RedirectURI string            `json:"redirect_uri"`
	Scope       string            `json:"scope"`
	Until       int64             `json:"until"`
	Public      map[string]string `json:"public_extensions,omitempty"`
}

func toSerial(g *grant.Grant) (serialGrant, error) {
	if g.Extensions.HasPrivate() {
		return serialGrant{}, ErrPrivateExtension
	}
	var pub map[string]string
	if len(g.Extensions) > 0 {
		pub = make(map[string]string, len(g.Extensions))
		for k, v := range g.Extensions {
			if v.Content != nil {
				pub[k] = *v.Content
			}
		}
	}
	return serialGrant{
		OwnerID:     g.OwnerID,
		ClientID:    g.ClientID,
		RedirectURI: g.RedirectURI,
		Scope:       g.Scope.String(),
		Until:       g.Until.Unix(),
		Public:      pub,
	}, nil
}

func fromSerial(s serialGrant) (*grant.Grant, error) {
	var ext grant.Extensions
	if len(s.Public) > 0 {
		ext = make(grant.Extensions, len(s.Public))
		for k, v := range s.Public {
			v := v
			ext[k] = grant.Value{Public: true, Content: &v}
		}
	}
	scope, err := grant.ParseScope(s.Scope)
	if err != nil {
		return nil, err
	}
	return &grant.Grant{
		OwnerID:     s.OwnerID,
		ClientID:    s.ClientID,
		RedirectURI: s.RedirectURI,
		Scope:       scope,
		Until:       unixTime(s.Until),
		Extensions:  ext,
	}, nil
}
