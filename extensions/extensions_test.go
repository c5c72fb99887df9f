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

import "testing"

func TestListRunAuthorizationCollectsAddonValues(t *testing.T) {
	l := NewList()
	l.AddAuthorization(PKCE{})

	ext, err := l.RunAuthorization(map[string]string{"code_challenge": "abc"})
	if err != nil {
		t.Fatalf("RunAuthorization: %v", err)
	}
	if _, ok := ext[pkceID]; !ok {
		t.Error("RunAuthorization should store the PKCE addon's value under its ID")
	}
}

func TestListRunAuthorizationPropagatesError(t *testing.T) {
	l := NewList()
	l.AddAuthorization(PKCE{})

	_, err := l.RunAuthorization(map[string]string{"code_challenge": "abc", "code_challenge_method": "md5"})
	if err != ErrUnsupportedChallengeMethod {
		t.Errorf("RunAuthorization should propagate an addon error, got %v", err)
	}
}

func TestListRunAccessTokenChecksStoredValue(t *testing.T) {
	l := NewList()
	l.AddAuthorization(PKCE{})
	l.AddAccessToken(PKCE{})

	ext, _ := l.RunAuthorization(map[string]string{"code_challenge": "my-verifier"})

	if _, err := l.RunAccessToken(ext, map[string]string{"code_verifier": "my-verifier"}); err != nil {
		t.Errorf("RunAccessToken with the matching verifier should succeed, got %v", err)
	}
	if _, err := l.RunAccessToken(ext, map[string]string{"code_verifier": "wrong"}); err != ErrChallengeMismatch {
		t.Errorf("RunAccessToken with a mismatched verifier: got %v, want %v", err, ErrChallengeMismatch)
	}
}
