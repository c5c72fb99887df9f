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

package extensions

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"github.com/opentrusty/oauthcore/grant"
)

// ErrUnsupportedChallengeMethod is returned when code_challenge_method
// names anything other than "plain" or "S256".
var ErrUnsupportedChallengeMethod = errors.New("extensions: unsupported code_challenge_method")

// ErrChallengeMismatch is returned when code_verifier does not reproduce
// the stored code_challenge.
var ErrChallengeMismatch = errors.New("extensions: code_verifier does not match code_challenge")

const pkceID = "pkce"

// PKCE implements RFC 7636 proof-key-for-code-exchange as the canonical
// AuthorizationAddon/AccessTokenAddon pair: the authorization leg stores
// "method:challenge" as a public extension value (public because the
// challenge is not a secret — only the verifier is), and the token-exchange
// leg recomputes the challenge from the presented verifier and compares.
type PKCE struct{}

// ID implements AuthorizationAddon and AccessTokenAddon.
func (PKCE) ID() string { return pkceID }

// ExecuteAuthorization reads code_challenge and code_challenge_method from
// params. A request with no code_challenge is accepted unchanged (PKCE is
// optional per client registration, enforced by the host if required).
func (PKCE) ExecuteAuthorization(params map[string]string) (*grant.Value, error) {
	challenge, ok := params["code_challenge"]
	if !ok {
		return nil, nil
	}
	method := params["code_challenge_method"]
	if method == "" {
		method = "plain"
	}
	if method != "plain" && method != "S256" {
		return nil, ErrUnsupportedChallengeMethod
	}
	content := method + ":" + challenge
	return &grant.Value{Public: true, Content: &content}, nil
}

// ExecuteAccessToken recomputes the challenge from code_verifier and
// compares it against the stored value. A code that never presented a
// challenge requires no verifier; a code that did requires one that
// matches, or the exchange fails.
func (PKCE) ExecuteAccessToken(stored *grant.Value, params map[string]string) error {
	if stored == nil || stored.Content == nil {
		return nil
	}
	method, challenge, ok := splitMethodChallenge(*stored.Content)
	if !ok {
		return ErrChallengeMismatch
	}
	verifier, ok := params["code_verifier"]
	if !ok {
		return ErrChallengeMismatch
	}

	var computed string
	switch method {
	case "plain":
		computed = verifier
	case "S256":
		sum := sha256.Sum256([]byte(verifier))
		computed = base64.RawURLEncoding.EncodeToString(sum[:])
	default:
		return ErrUnsupportedChallengeMethod
	}

	if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
		return ErrChallengeMismatch
	}
	return nil
}

func splitMethodChallenge(s string) (method, challenge string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
