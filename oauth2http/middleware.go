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
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opentrusty/oauthcore/grant"
)

// RateLimiter hands out one token-bucket limiter per client IP, the same
// shape as the teacher's internal/transport/http RateLimiter, sized here for
// the token endpoint's credential-guessing exposure rather than general API
// traffic.
type RateLimiter struct {
	mu              sync.Mutex
	buckets         map[string]*rate.Limiter
	rps             rate.Limit
	burst           int
	cleanupInterval time.Duration
}

// NewRateLimiter builds a limiter allowing rps requests per second per IP,
// bursting up to burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets:         make(map[string]*rate.Limiter),
		rps:             rate.Limit(rps),
		burst:           burst,
		cleanupInterval: 10 * time.Minute,
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.buckets[ip]
	if !ok {
		l = rate.NewLimiter(rl.rps, rl.burst)
		rl.buckets[ip] = l
	}
	return l
}

// Run periodically discards all tracked buckets so memory does not grow
// without bound from one-off or spoofed client IPs; it blocks until ctx is
// canceled and is meant to be started in its own goroutine.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			rl.buckets = make(map[string]*rate.Limiter)
			rl.mu.Unlock()
		}
	}
}

// RateLimit returns middleware rejecting requests over rl's per-IP budget
// with 429, before any client credential is parsed out of the body — a
// brute-force attempt against the token endpoint should never get as far as
// an Argon2 hash comparison.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.limiterFor(ip).Allow() {
				respondOAuthError(w, http.StatusTooManyRequests, "slow_down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

type grantContextKey struct{}

// GrantFromContext returns the Grant a RequireBearer middleware attached to
// the request context, if any.
func GrantFromContext(ctx context.Context) (*grant.Grant, bool) {
	g, ok := ctx.Value(grantContextKey{}).(*grant.Grant)
	return g, ok
}

// RequireBearer returns middleware that runs h's ResourceFlow against the
// incoming request and, on success, stores the recovered Grant in the
// request context for downstream handlers — the adapter-layer equivalent of
// the teacher's AuthMiddleware, but guarding bearer tokens instead of
// browser sessions.
func (h *Handler) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.resource == nil {
			respondError(w, http.StatusNotImplemented, "resource protection is not configured")
			return
		}
		req := newWebRequest(r)
		resp := newWebResponse(w)
		g := h.resource.Execute(r.Context(), req, resp)
		if g == nil {
			resp.flush()
			return
		}
		ctx := context.WithValue(r.Context(), grantContextKey{}, g)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
