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
	"encoding/base64"
	"testing"
)

func TestPKCENoChallengeIsSkipped(t *testing.T) {
	v, err := PKCE{}.ExecuteAuthorization(map[string]string{})
	if err != nil || v != nil {
		t.Fatalf("ExecuteAuthorization with no challenge = %v, %v, want (nil, nil)", v, err)
	}
	if err := (PKCE{}).ExecuteAccessToken(nil, map[string]string{}); err != nil {
		t.Errorf("ExecuteAccessToken with no stored value should accept a missing verifier, got %v", err)
	}
}

func TestPKCERejectsUnsupportedMethod(t *testing.T) {
	_, err := PKCE{}.ExecuteAuthorization(map[string]string{"code_challenge": "x", "code_challenge_method": "md5"})
	if err != ErrUnsupportedChallengeMethod {
		t.Errorf("ExecuteAuthorization with an unsupported method: got %v, want %v", err, ErrUnsupportedChallengeMethod)
	}
}

func TestPKCEPlainRoundTrip(t *testing.T) {
	v, err := PKCE{}.ExecuteAuthorization(map[string]string{"code_challenge": "secretverifier"})
	if err != nil || v == nil {
		t.Fatalf("ExecuteAuthorization: %v, %v", v, err)
	}
	if err := (PKCE{}).ExecuteAccessToken(v, map[string]string{"code_verifier": "secretverifier"}); err != nil {
		t.Errorf("ExecuteAccessToken with the matching plain verifier should succeed, got %v", err)
	}
	if err := (PKCE{}).ExecuteAccessToken(v, map[string]string{"code_verifier": "wrong"}); err != ErrChallengeMismatch {
		t.Errorf("ExecuteAccessToken with a mismatched verifier: got %v, want %v", err, ErrChallengeMismatch)
	}
}

func TestPKCES256RoundTrip(t *testing.T) {
	sum := sha256.Sum256([]byte("my-verifier"))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	v, err := PKCE{}.ExecuteAuthorization(map[string]string{"code_challenge": challenge, "code_challenge_method": "S256"})
	if err != nil || v == nil {
		t.Fatalf("ExecuteAuthorization: %v, %v", v, err)
	}
	if err := (PKCE{}).ExecuteAccessToken(v, map[string]string{"code_verifier": "my-verifier"}); err != nil {
		t.Errorf("ExecuteAccessToken with the correct S256 verifier should succeed, got %v", err)
	}
	if err := (PKCE{}).ExecuteAccessToken(v, map[string]string{"code_verifier": "not-it"}); err != ErrChallengeMismatch {
		t.Errorf("ExecuteAccessToken with an incorrect S256 verifier: got %v, want %v", err, ErrChallengeMismatch)
	}
}

func TestPKCEMissingVerifierIsMismatch(t *testing.T) {
	v, _ := PKCE{}.ExecuteAuthorization(map[string]string{"code_challenge": "x"})
	if err := (PKCE{}).ExecuteAccessToken(v, map[string]string{}); err != ErrChallengeMismatch {
		t.Errorf("ExecuteAccessToken with no verifier when a challenge was stored: got %v, want %v", err, ErrChallengeMismatch)
	}
}
