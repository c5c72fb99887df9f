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

package oauth2http

import (
	"github.com/opentrusty/oauthcore/endpoint"
	"github.com/opentrusty/oauthcore/grant"
)

// AutoApproveSolicitor is a demo endpoint.OwnerSolicitor: it approves every
// request on behalf of whatever user_id query parameter was presented, or
// refuses consent entirely if none was given. A production host replaces
// this with one that renders a real consent screen (the teacher's own
// Authorize handler has the identical "TODO: Display consent page if
// needed" auto-approve shortcut for its own MVP).
type AutoApproveSolicitor struct{}

// CheckConsent implements endpoint.OwnerSolicitor.
func (AutoApproveSolicitor) CheckConsent(req endpoint.WebRequest, resp endpoint.WebResponse, pre grant.PreGrant) (endpoint.Consent, string) {
	userID, ok, err := req.Query("user_id")
	if err != nil || !ok || userID == "" {
		return endpoint.Denied, ""
	}
	return endpoint.Allowed, userID
}
