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
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/issuer"
)

// Issuer implements issuer.Issuer against the oauth_tokens table. Refresh
// runs inside a single pgx.Tx so the old row's delete and the new row's
// insert are atomic: a crash between them can never leave behind a
// dangling access token pointing at a consumed refresh token.
type Issuer struct {
	db       *DB
	duration time.Duration
}

// NewIssuer builds an Issuer whose tokens are valid for duration.
func NewIssuer(db *DB, duration time.Duration) *Issuer {
	return &Issuer{db: db, duration: duration}
}

// Issue implements issuer.Issuer.
func (i *Issuer) Issue(g grant.Grant, refreshable bool) (issuer.IssuedToken, error) {
	access, err := randomCode(32)
	if err != nil {
		return issuer.IssuedToken{}, err
	}
	var refresh string
	if refreshable {
		refresh, err = randomCode(32)
		if err != nil {
			return issuer.IssuedToken{}, err
		}
	}
	ext, err := json.Marshal(g.Extensions)
	if err != nil {
		return issuer.IssuedToken{}, err
	}
	until := time.Now().Add(i.duration)

	var refreshCol interface{}
	if refresh != "" {
		refreshCol = refresh
	}
	_, err = i.db.pool.Exec(context.Background(), `
		INSERT INTO oauth_tokens (access_token, refresh_token, owner_id, client_id, redirect_uri, scope, extensions, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, access, refreshCol, g.OwnerID, g.ClientID, g.RedirectURI, g.Scope.String(), ext, until)
	if err != nil {
		return issuer.IssuedToken{}, err
	}
	return issuer.IssuedToken{Token: access, Refresh: refresh, Until: until}, nil
}

type tokenRow struct {
	ownerID, clientID, redirectURI, scope string
	ext                                   []byte
	until                                 time.Time
}

func scanTokenRow(row pgx.Row) (tokenRow, error) {
	var t tokenRow
	err := row.Scan(&t.ownerID, &t.clientID, &t.redirectURI, &t.scope, &t.ext, &t.until)
	return t, err
}

func (t tokenRow) toGrant() (*grant.Grant, error) {
	var exts grant.Extensions
	if err := json.Unmarshal(t.ext, &exts); err != nil {
		return nil, err
	}
	scope, err := grant.ParseScope(t.scope)
	if err != nil {
		return nil, err
	}
	return &grant.Grant{
		OwnerID:     t.ownerID,
		ClientID:    t.clientID,
		RedirectURI: t.redirectURI,
		Scope:       scope,
		Until:       t.until,
		Extensions:  exts,
	}, nil
}

// Recover implements issuer.Issuer.
func (i *Issuer) Recover(token string) (*grant.Grant, error) {
	row, err := scanTokenRow(i.db.pool.QueryRow(context.Background(), `
		SELECT owner_id, client_id, redirect_uri, scope, extensions, expires_at
		FROM oauth_tokens WHERE access_token = $1
	`, token))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().After(row.until) {
		return nil, nil
	}
	return row.toGrant()
}

// RecoverRefresh implements issuer.Issuer.
func (i *Issuer) RecoverRefresh(token string) (*grant.Grant, error) {
	row, err := scanTokenRow(i.db.pool.QueryRow(context.Background(), `
		SELECT owner_id, client_id, redirect_uri, scope, extensions, expires_at
		FROM oauth_tokens WHERE refresh_token = $1
	`, token))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().After(row.until) {
		return nil, nil
	}
	return row.toGrant()
}

// Refresh implements issuer.Issuer, rotating both the access and refresh
// tokens bound to refreshToken inside one transaction.
func (i *Issuer) Refresh(refreshToken string, g grant.Grant) (issuer.RefreshedToken, error) {
	ctx := context.Background()
	tx, err := i.db.pool.Begin(ctx)
	if err != nil {
		return issuer.RefreshedToken{}, err
	}
	defer tx.Rollback(ctx)

	var oldAccess string
	err = tx.QueryRow(ctx, `
		DELETE FROM oauth_tokens WHERE refresh_token = $1 RETURNING access_token
	`, refreshToken).Scan(&oldAccess)
	if err != nil {
		if err == pgx.ErrNoRows {
			return issuer.RefreshedToken{}, issuer.ErrNotRefreshable
		}
		return issuer.RefreshedToken{}, err
	}

	access, err := randomCode(32)
	if err != nil {
		return issuer.RefreshedToken{}, err
	}
	refresh, err := randomCode(32)
	if err != nil {
		return issuer.RefreshedToken{}, err
	}
	ext, err := json.Marshal(g.Extensions)
	if err != nil {
		return issuer.RefreshedToken{}, err
	}
	until := time.Now().Add(i.duration)

	_, err = tx.Exec(ctx, `
		INSERT INTO oauth_tokens (access_token, refresh_token, owner_id, client_id, redirect_uri, scope, extensions, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, access, refresh, g.OwnerID, g.ClientID, g.RedirectURI, g.Scope.String(), ext, until)
	if err != nil {
		return issuer.RefreshedToken{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return issuer.RefreshedToken{}, err
	}
	return issuer.RefreshedToken{Token: access, Refresh: refresh, Until: until}, nil
}
