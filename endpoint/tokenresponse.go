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

import "time"

// tokenResponse is the RFC 6749 §5.1 success body shared by the
// access-token, refresh and client-credentials flows. expires_in is always
// a JSON number (some reference implementations emit it as a string; this
// one does not, so every consumer gets one consistent wire shape).
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func newTokenResponse(token, refresh string, until time.Time, scope string) tokenResponse {
	return tokenResponse{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(until).Seconds()),
		RefreshToken: refresh,
		Scope:        scope,
	}
}

// oauthError is the RFC 6749 §5.2 error body.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeError(resp WebResponse, status int, code, authType string) {
	resp.SetStatus(status)
	if authType != "" {
		resp.SetHeader("WWW-Authenticate", authType)
	}
	resp.SetHeader("Cache-Control", "no-store")
	resp.SetHeader("Pragma", "no-cache")
	_ = resp.SetBodyJSON(oauthError{Error: code})
}
