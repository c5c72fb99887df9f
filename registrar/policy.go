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

package registrar

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PasswordPolicy stores and checks a confidential client's passphrase. The
// stored representation is opaque to the registrar; ClientMap only ever
// calls Store at registration time and Check at authentication time.
type PasswordPolicy interface {
	// Store derives and returns the encoded hash to persist for passphrase,
	// bound to clientID as associated data so one client's stored hash can
	// never validate another client's secret even if the secrets collide.
	Store(clientID string, passphrase []byte) (string, error)
	// Check reports whether passphrase matches the stored hash, bound to
	// the same clientID used at Store time.
	Check(clientID string, passphrase []byte, stored string) error
}

// Argon2Policy is the default PasswordPolicy: Argon2id with a per-secret
// random salt and the client id folded in as associated data, encoded in the
// standard self-describing form "$argon2id$v=..$m=..,t=..,p=..$salt$hash".
type Argon2Policy struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPasswordPolicy is the package-level Argon2Policy used by ClientMap
// when no policy is configured explicitly.
var DefaultPasswordPolicy = &Argon2Policy{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

func withAssociatedData(clientID string, passphrase []byte) []byte {
	buf := make([]byte, 0, len(passphrase)+len(clientID))
	buf = append(buf, passphrase...)
	buf = append(buf, clientID...)
	return buf
}

func (p *Argon2Policy) derive(clientID string, passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(withAssociatedData(clientID, passphrase), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
}

// Store implements PasswordPolicy.
func (p *Argon2Policy) Store(clientID string, passphrase []byte) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("registrar: generate salt: %w", err)
	}
	hash := p.derive(clientID, passphrase, salt)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
	return encoded, nil
}

// Check implements PasswordPolicy.
func (p *Argon2Policy) Check(clientID string, passphrase []byte, stored string) error {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Error
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Error
	}
	var memory, iterations uint32
	var parallelism uint8
	for _, kv := range strings.Split(parts[3], ",") {
		eq := strings.SplitN(kv, "=", 2)
		if len(eq) != 2 {
			return Error
		}
		n, err := strconv.Atoi(eq[1])
		if err != nil {
			return Error
		}
		switch eq[0] {
		case "m":
			memory = uint32(n)
		case "t":
			iterations = uint32(n)
		case "p":
			parallelism = uint8(n)
		default:
			return Error
		}
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Error
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Error
	}
	got := argon2.IDKey(withAssociatedData(clientID, passphrase), salt, iterations, memory, parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return Error
	}
	return nil
}
