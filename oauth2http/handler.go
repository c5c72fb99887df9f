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
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opentrusty/oauthcore/endpoint"
	"github.com/opentrusty/oauthcore/internal/audit"
)

// Handler binds the sans-I/O flows to chi routes. It owns one flow instance
// per grant type plus a shared ResourceFlow for protecting downstream
// routes, the way the teacher's Handler owns one service call per endpoint.
type Handler struct {
	ep *endpoint.Endpoint

	authorization     *endpoint.AuthorizationFlow
	accessToken       *endpoint.AccessTokenFlow
	refresh           *endpoint.RefreshFlow
	clientCredentials *endpoint.ClientCredentialsFlow
	resource          *endpoint.ResourceFlow

	// Audit records token issuance, refresh and client-auth-failure events.
	// Nil disables audit logging entirely.
	Audit audit.Logger
}

// NewHandler builds every flow the supplied endpoint config has the
// primitives for. A flow whose required primitives are absent from ep is
// left nil and its route is not registered — an embedding host that only
// wants the client_credentials grant, say, need not stub out an Authorizer.
func NewHandler(ep *endpoint.Endpoint) (*Handler, error) {
	h := &Handler{ep: ep}

	if ep.Registrar != nil && ep.Authorizer != nil && ep.Solicitor != nil {
		flow, err := endpoint.NewAuthorizationFlow(ep)
		if err != nil {
			return nil, err
		}
		h.authorization = flow
	}
	if ep.Registrar != nil && ep.Authorizer != nil && ep.Issuer != nil {
		flow, err := endpoint.NewAccessTokenFlow(ep)
		if err != nil {
			return nil, err
		}
		h.accessToken = flow
	}
	if ep.Registrar != nil && ep.Issuer != nil {
		flow, err := endpoint.NewRefreshFlow(ep)
		if err != nil {
			return nil, err
		}
		h.refresh = flow

		ccFlow, err := endpoint.NewClientCredentialsFlow(ep)
		if err != nil {
			return nil, err
		}
		h.clientCredentials = ccFlow
	}
	if ep.Issuer != nil {
		flow, err := endpoint.NewResourceFlow(ep)
		if err != nil {
			return nil, err
		}
		h.resource = flow
	}
	return h, nil
}

func (h *Handler) logger() *slog.Logger {
	if h.ep.Logger != nil {
		return h.ep.Logger
	}
	return slog.Default()
}

// Authorize serves GET /oauth2/authorize (RFC 6749 §4.1.1).
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	if h.authorization == nil {
		respondError(w, http.StatusNotImplemented, "authorization_code grant is not configured")
		return
	}
	req := newWebRequest(r)
	resp := newWebResponse(w)
	responded := h.authorization.Execute(r.Context(), req, resp)
	if !responded {
		h.logger().WarnContext(r.Context(), "authorize request too malformed to answer",
			slog.String("remote_addr", r.RemoteAddr))
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	resp.flush()

	if h.Audit != nil {
		clientID, _, _ := req.Query("client_id")
		evt := audit.Event{
			ClientID:  clientID,
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		}
		if resp.statusCode() >= 300 && resp.statusCode() < 400 {
			evt.Type = audit.TypeCodeIssued
			evt.Resource = audit.ResourceAuthorizationCode
		} else {
			evt.Type = audit.TypeCodeDenied
			evt.Resource = audit.ResourceAuthorizationCode
		}
		h.Audit.Log(r.Context(), evt)
	}
}

// Token serves POST /oauth2/token, dispatching on grant_type to the
// authorization_code, refresh_token or client_credentials flow (RFC 6749
// §4.1.3, §6, §4.4.2).
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondOAuthError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req := newWebRequest(r)
	resp := newWebResponse(w)

	grantType := r.PostForm.Get("grant_type")
	clientID := r.PostForm.Get("client_id")

	switch grantType {
	case "authorization_code":
		if h.accessToken == nil {
			respondOAuthError(w, http.StatusNotImplemented, "unsupported_grant_type")
			return
		}
		h.accessToken.Execute(r.Context(), req, resp)
	case "refresh_token":
		if h.refresh == nil {
			respondOAuthError(w, http.StatusNotImplemented, "unsupported_grant_type")
			return
		}
		h.refresh.Execute(r.Context(), req, resp)
	case "client_credentials":
		if h.clientCredentials == nil {
			respondOAuthError(w, http.StatusNotImplemented, "unsupported_grant_type")
			return
		}
		h.clientCredentials.Execute(r.Context(), req, resp)
	default:
		respondOAuthError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}
	resp.flush()
	h.auditToken(r, grantType, clientID, resp.statusCode())
}

// auditToken records the outcome of a /oauth2/token request. It classifies
// purely on status code since the flows themselves never surface a
// structured success/failure value to the transport layer.
func (h *Handler) auditToken(r *http.Request, grantType, clientID string, status int) {
	if h.Audit == nil {
		return
	}
	evt := audit.Event{
		ClientID:  clientID,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{audit.AttrGrantType: grantType},
	}
	switch {
	case status == http.StatusUnauthorized:
		evt.Type = audit.TypeClientAuthFailed
		evt.Resource = audit.ResourceClient
	case status >= 200 && status < 300:
		evt.Type = audit.TypeTokenIssued
		evt.Resource = audit.ResourceAccessToken
		if grantType == "refresh_token" {
			evt.Type = audit.TypeTokenRefreshed
			evt.Resource = audit.ResourceRefreshToken
		}
	default:
		return
	}
	h.Audit.Log(r.Context(), evt)
}

// respondError writes a plain-text error, used where no oauth2 error
// vocabulary applies yet (the grant was never identified).
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

func respondOAuthError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `"}`))
}

// Router assembles the standard oauth2 routes onto a fresh chi.Mux. Callers
// that need to mix these into a larger router can instead call Authorize,
// Token and RequireBearer directly.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/oauth2/authorize", h.Authorize)
	r.Post("/oauth2/token", h.Token)
	return r
}
