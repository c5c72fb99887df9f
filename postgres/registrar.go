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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opentrusty/oauthcore/grant"
	"github.com/opentrusty/oauthcore/registrar"
)

// Registrar implements registrar.Registrar against the oauth_clients table.
// Like the teacher's own repositories it does not thread a context through
// its methods (the Registrar interface has none to give it); each call uses
// context.Background() internally, exactly as
// internal/store/postgres/code_repository.go does.
type Registrar struct {
	db     *DB
	policy registrar.PasswordPolicy
}

// NewRegistrar builds a Registrar backed by db, using the default Argon2
// password policy.
func NewRegistrar(db *DB) *Registrar {
	return &Registrar{db: db, policy: registrar.DefaultPasswordPolicy}
}

// SetPasswordPolicy overrides the PasswordPolicy used by Check and Register.
func (r *Registrar) SetPasswordPolicy(p registrar.PasswordPolicy) {
	r.policy = p
}

// Register inserts c, hashing its Passphrase under the configured policy,
// and returns the id it was stored under (minted with uuid.NewString if c's
// ClientID is empty, matching registrar.ClientMap.Register).
func (r *Registrar) Register(ctx context.Context, c registrar.Client) (string, error) {
	id := c.ClientID
	if id == "" {
		id = uuid.NewString()
	}

	var passHash string
	if c.Type == registrar.Confidential {
		hash, err := r.policy.Store(id, c.Passphrase)
		if err != nil {
			return "", err
		}
		passHash = hash
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO oauth_clients (client_id, redirect_uris, default_scope, client_type, pass_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (client_id) DO UPDATE SET
			redirect_uris = EXCLUDED.redirect_uris,
			default_scope = EXCLUDED.default_scope,
			client_type   = EXCLUDED.client_type,
			pass_hash     = EXCLUDED.pass_hash
	`, id, c.RedirectURIs, c.DefaultScope.String(), int(c.Type), passHash)
	if err != nil {
		return "", err
	}
	return id, nil
}

type clientRow struct {
	redirectURIs []string
	defaultScope string
	clientType   int
	passHash     string
}

func (r *Registrar) lookup(ctx context.Context, clientID string) (clientRow, bool, error) {
	var row clientRow
	err := r.db.pool.QueryRow(ctx, `
		SELECT redirect_uris, default_scope, client_type, pass_hash
		FROM oauth_clients WHERE client_id = $1
	`, clientID).Scan(&row.redirectURIs, &row.defaultScope, &row.clientType, &row.passHash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return clientRow{}, false, nil
		}
		return clientRow{}, false, err
	}
	return row, true, nil
}

// BoundRedirect implements registrar.Registrar.
func (r *Registrar) BoundRedirect(clientID, redirectURI string) (registrar.BoundClient, error) {
	row, ok, err := r.lookup(context.Background(), clientID)
	if err != nil || !ok {
		return registrar.BoundClient{}, registrar.Error
	}
	if redirectURI == "" {
		if len(row.redirectURIs) != 1 {
			return registrar.BoundClient{}, registrar.Error
		}
		return registrar.BoundClient{ClientID: clientID, RedirectURI: row.redirectURIs[0]}, nil
	}
	for _, u := range row.redirectURIs {
		if u == redirectURI {
			return registrar.BoundClient{ClientID: clientID, RedirectURI: redirectURI}, nil
		}
	}
	return registrar.BoundClient{}, registrar.Error
}

// Negotiate implements registrar.Registrar.
func (r *Registrar) Negotiate(bound registrar.BoundClient, requested grant.Scope) (grant.PreGrant, error) {
	row, ok, err := r.lookup(context.Background(), bound.ClientID)
	if err != nil || !ok {
		return grant.PreGrant{}, registrar.Error
	}
	def, err := grant.ParseScope(row.defaultScope)
	if err != nil {
		return grant.PreGrant{}, err
	}
	scope := def
	if !requested.Empty() {
		scope = def.Intersect(requested)
	}
	return grant.PreGrant{ClientID: bound.ClientID, RedirectURI: bound.RedirectURI, Scope: scope}, nil
}

// Check implements registrar.Registrar.
func (r *Registrar) Check(clientID string, passphrase []byte) error {
	row, ok, err := r.lookup(context.Background(), clientID)
	if err != nil || !ok {
		return registrar.Error
	}
	switch registrar.ClientType(row.clientType) {
	case registrar.Public:
		if passphrase != nil {
			return registrar.Error
		}
		return nil
	case registrar.Confidential:
		if passphrase == nil {
			return registrar.Error
		}
		return r.policy.Check(clientID, passphrase, row.passHash)
	default:
		return registrar.Error
	}
}
