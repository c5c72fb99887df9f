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

package generator

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opentrusty/oauthcore/grant"
)

// grantClaims is the JWT claim set carrying a serialized Grant plus the
// usage-tag domain separator ("use") and a per-signature counter ("cnt")
// that keeps repeated issuance for the same grant from minting an identical
// token twice.
type grantClaims struct {
	jwt.RegisteredClaims
	Use     string            `json:"use"`
	Counter uint64            `json:"cnt"`
	OwnerID string            `json:"owner_id"`
	Scope   string            `json:"scope"`
	Public  map[string]string `json:"public_extensions,omitempty"`
}

// JWTAssertion signs grants as HS256 JWTs instead of the raw HMAC envelope
// used by Assertion. It exists so a host already depending on
// github.com/golang-jwt/jwt/v5 for other tokens can reuse that same library
// here instead of introducing a second signed-token format.
type JWTAssertion struct {
	key []byte
}

// NewJWTAssertion builds a JWTAssertion signing with the HS256 key key.
func NewJWTAssertion(key []byte) *JWTAssertion {
	cp := make([]byte, len(key))
	copy(cp, key)
	return &JWTAssertion{key: cp}
}

// Tagged returns a TaggedJWTAssertion bound to use, the JWT "use" claim value.
func (j *JWTAssertion) Tagged(use string) *TaggedJWTAssertion {
	return &TaggedJWTAssertion{a: j, use: use}
}

// TaggedJWTAssertion is the generator.TagGrant / Extract pair for one usage
// of a JWTAssertion, analogous to TaggedAssertion.
type TaggedJWTAssertion struct {
	a   *JWTAssertion
	use string
}

// Tag implements generator.TagGrant.
func (t *TaggedJWTAssertion) Tag(usage uint64, g *grant.Grant) (string, error) {
	sg, err := toSerial(g)
	if err != nil {
		return "", err
	}
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sg.ClientID,
			ExpiresAt: jwt.NewNumericDate(unixTime(sg.Until)),
			ID:        sg.ClientID + ":" + strconv.FormatUint(usage, 10),
		},
		Use:     t.use,
		Counter: usage,
		OwnerID: sg.OwnerID,
		Scope:   sg.Scope,
		Public:  sg.Public,
	}
	// RedirectURI travels as a private (non-RegisteredClaims) field so it
	// survives round-tripping without colliding with reserved claim names.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &redirectClaims{grantClaims: claims, RedirectURI: sg.RedirectURI})
	signed, err := token.SignedString(t.a.key)
	if err != nil {
		return "", fmt.Errorf("generator: sign jwt: %w", err)
	}
	return signed, nil
}

type redirectClaims struct {
	grantClaims
	RedirectURI string `json:"redirect_uri"`
}

// Extract verifies token and recovers the Grant it encodes, or ErrTagMismatch
// if the signature is invalid, the token is expired, or the "use" claim does
// not match the tag this TaggedJWTAssertion was constructed for.
func (t *TaggedJWTAssertion) Extract(token string) (*grant.Grant, error) {
	var claims redirectClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTagMismatch
		}
		return t.a.key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrTagMismatch
	}
	if claims.Use != t.use {
		return nil, ErrTagMismatch
	}
	until, err := claims.GetExpirationTime()
	if err != nil || until == nil {
		return nil, ErrTagMismatch
	}
	g, err := fromSerial(serialGrant{
		OwnerID:     claims.OwnerID,
		ClientID:    claims.Subject,
		RedirectURI: claims.RedirectURI,
		Scope:       claims.Scope,
		Until:       until.Unix(),
		Public:      claims.Public,
	})
	if err != nil {
		return nil, ErrTagMismatch
	}
	return g, nil
}
