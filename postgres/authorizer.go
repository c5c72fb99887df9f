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

package postgres

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opentrusty/oauthcore/grant"
)

// Authorizer implements authorizer.Authorizer against the oauth_codes table.
// Extract deletes the row as part of the same statement that reads it
// (DELETE ... RETURNING), so two concurrent Extract calls for the same code
// can never both observe a row: one gets it, the other gets pgx.ErrNoRows,
// matching MapAuthorizer's single-in-process-map guarantee without needing
// a separate row lock.
type Authorizer struct {
	db     *DB
	expiry time.Duration
}

// NewAuthorizer builds an Authorizer whose codes expire after expiry.
func NewAuthorizer(db *DB, expiry time.Duration) *Authorizer {
	return &Authorizer{db: db, expiry: expiry}
}

// Authorize implements authorizer.Authorizer.
func (a *Authorizer) Authorize(g grant.Grant) (string, error) {
	code, err := randomCode(32)
	if err != nil {
		return "", err
	}
	ext, err := json.Marshal(g.Extensions)
	if err != nil {
		return "", err
	}
	until := g.Until
	if until.IsZero() {
		until = time.Now().Add(a.expiry)
	}

	_, err = a.db.pool.Exec(context.Background(), `
		INSERT INTO oauth_codes (code, owner_id, client_id, redirect_uri, scope, extensions, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, code, g.OwnerID, g.ClientID, g.RedirectURI, g.Scope.String(), ext, until)
	if err != nil {
		return "", err
	}
	return code, nil
}

// Extract implements authorizer.Authorizer.
func (a *Authorizer) Extract(code string) (*grant.Grant, error) {
	var (
		ownerID, clientID, redirectURI, scope string
		ext                                   []byte
		until                                 time.Time
	)
	err := a.db.pool.QueryRow(context.Background(), `
		DELETE FROM oauth_codes WHERE code = $1
		RETURNING owner_id, client_id, redirect_uri, scope, extensions, expires_at
	`, code).Scan(&ownerID, &clientID, &redirectURI, &scope, &ext, &until)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().After(until) {
		return nil, nil
	}

	var exts grant.Extensions
	if err := json.Unmarshal(ext, &exts); err != nil {
		return nil, err
	}
	parsedScope, err := grant.ParseScope(scope)
	if err != nil {
		return nil, err
	}
	return &grant.Grant{
		OwnerID:     ownerID,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scope:       parsedScope,
		Until:       until,
		Extensions:  exts,
	}, nil
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
