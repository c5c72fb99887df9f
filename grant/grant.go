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

// Package grant holds the sans-I/O domain types shared by every primitive and
// state machine: Grant, Scope, PreGrant and the extension-value map attached
// to a grant by addons.
package grant

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidScope is returned by ParseScope when a token contains a
// character RFC 6749 Appendix A's NQCHAR excludes from scope-token: '"' or
// '\'.
var ErrInvalidScope = errors.New("grant: scope token contains an excluded character")

// Scope is a space-separated set of scope tokens, stored pre-split for cheap
// subset checks. The zero value is the empty scope.
type Scope struct {
	tokens map[string]struct{}
	order  []string
}

// ParseScope splits a scope string on ASCII spaces, dropping empty tokens.
// It rejects any token containing '"' or '\'.
func ParseScope(s string) (Scope, error) {
	fields := strings.Fields(s)
	sc := Scope{tokens: make(map[string]struct{}, len(fields)), order: make([]string, 0, len(fields))}
	for _, f := range fields {
		if strings.ContainsAny(f, `"\`) {
			return Scope{}, ErrInvalidScope
		}
		if _, ok := sc.tokens[f]; ok {
			continue
		}
		sc.tokens[f] = struct{}{}
		sc.order = append(sc.order, f)
	}
	return sc, nil
}

// MustParseScope is ParseScope for scope strings known at compile time to
// contain no excluded characters (static configuration, literals). It
// panics if s is invalid.
func MustParseScope(s string) Scope {
	sc, err := ParseScope(s)
	if err != nil {
		panic(err)
	}
	return sc
}

// String renders the scope back into its wire form, tokens in first-seen order.
func (s Scope) String() string {
	return strings.Join(s.order, " ")
}

// Empty reports whether the scope carries no tokens.
func (s Scope) Empty() bool {
	return len(s.order) == 0
}

// Contains reports whether every token of other is present in s. An empty
// other is always contained.
func (s Scope) Contains(other Scope) bool {
	for _, t := range other.order {
		if _, ok := s.tokens[t]; !ok {
			return false
		}
	}
	return true
}

// Intersect returns the tokens present in both scopes, order taken from s.
func (s Scope) Intersect(other Scope) Scope {
	out := Scope{tokens: make(map[string]struct{}), order: make([]string, 0, len(s.order))}
	for _, t := range s.order {
		if _, ok := other.tokens[t]; ok {
			out.tokens[t] = struct{}{}
			out.order = append(out.order, t)
		}
	}
	return out
}

// Equal reports whether both scopes carry the same token set, ignoring order.
func (s Scope) Equal(other Scope) bool {
	if len(s.tokens) != len(other.tokens) {
		return false
	}
	return s.Contains(other)
}

// Value is an extension datum attached to a Grant. Public values travel with
// the grant across the wire when a primitive serializes it (e.g. a signed
// assertion); Private values never leave the primitive that produced them,
// and any primitive that must serialize the whole grant refuses to do so if
// a private value is present.
type Value struct {
	Public  bool
	Content *string
}

// Extensions is the set of addon-produced values carried by a Grant, keyed by
// the addon's identifier.
type Extensions map[string]Value

// Clone returns an independent copy of the extension set.
func (e Extensions) Clone() Extensions {
	if e == nil {
		return nil
	}
	out := make(Extensions, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// HasPrivate reports whether any entry carries a private value.
func (e Extensions) HasPrivate() bool {
	for _, v := range e {
		if !v.Public {
			return true
		}
	}
	return false
}

// PreGrant is the negotiated-but-not-yet-issued shape of an authorization: a
// client, a redirect target and the scope the registrar granted (which may be
// narrower than what the client requested).
type PreGrant struct {
	ClientID    string
	RedirectURI string
	Scope       Scope
}

// Grant is the fully negotiated, owner-approved authorization backing an
// authorization code, an access token or a refresh token. Until is the
// absolute expiry; primitives that do not use time-limited tokens still
// populate it so downstream validation stays uniform.
type Grant struct {
	OwnerID     string
	ClientID    string
	RedirectURI string
	Scope       Scope
	Until       time.Time
	Extensions  Extensions
}

// Clone returns a deep-enough copy of the grant for primitives that must hand
// out an owned value instead of aliasing internal storage.
func (g Grant) Clone() Grant {
	g.Extensions = g.Extensions.Clone()
	return g
}
