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

package generator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opentrusty/oauthcore/grant"
)

// ErrTagMismatch is returned by Extract when the recovered tag does not match
// the tag the TaggedAssertion was constructed for, or when the signature does
// not verify.
var ErrTagMismatch = errors.New("generator: tag mismatch or invalid signature")

// Assertion signs a serialized Grant with HMAC-SHA256 under a fixed key. It
// is the zero-dependency fallback signed-token backend: the payload format is
// JSON rather than the MessagePack used by the reference implementation this
// package is modeled on, since the payload never needs to be read by a
// third party and JSON keeps the dependency surface to the standard library.
type Assertion struct {
	key []byte
}

// NewAssertion builds an Assertion keyed by key. The key is used as-is as the
// HMAC key; callers wanting a passphrase-derived key should hash it first.
func NewAssertion(key []byte) *Assertion {
	cp := make([]byte, len(key))
	copy(cp, key)
	return &Assertion{key: cp}
}

type assertionPayload struct {
	Tag     string      `json:"tag"`
	Counter uint64      `json:"counter"`
	Grant   serialGrant `json:"grant"`
}

// Tagged returns a TaggedAssertion bound to tag, suitable for passing as a
// generator.TagGrant to an authorizer or issuer.
func (a *Assertion) Tagged(tag string) *TaggedAssertion {
	return &TaggedAssertion{sign: a.sign, verify: a.verify, tag: tag}
}

func (a *Assertion) sign(tag string, counter uint64, g *grant.Grant) (string, error) {
	sg, err := toSerial(g)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(assertionPayload{Tag: tag, Counter: counter, Grant: sg})
	if err != nil {
		return "", fmt.Errorf("generator: marshal assertion: %w", err)
	}
	mac := hmac.New(sha256.New, a.key)
	mac.Write(payload)
	sig := mac.Sum(nil)

	buf := make([]byte, 0, len(payload)+len(sig)+8)
	buf = appendUvarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, sig...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (a *Assertion) verify(tag, token string) (*grant.Grant, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrTagMismatch
	}
	n, rest := readUvarint(raw)
	if rest == nil || len(rest) < n {
		return nil, ErrTagMismatch
	}
	payload, sig := rest[:n], rest[n:]

	mac := hmac.New(sha256.New, a.key)
	mac.Write(payload)
	want := mac.Sum(nil)
	if !hmac.Equal(want, sig) {
		return nil, ErrTagMismatch
	}

	var ap assertionPayload
	if err := json.Unmarshal(payload, &ap); err != nil {
		return nil, ErrTagMismatch
	}
	if ap.Tag != tag {
		return nil, ErrTagMismatch
	}
	g, err := fromSerial(ap.Grant)
	if err != nil {
		return nil, ErrTagMismatch
	}
	return g, nil
}

// TaggedAssertion binds an Assertion to a single usage tag (e.g. "code",
// "token", "refresh") so that a token minted for one purpose can never be
// accepted for another, even though all three share the same signing key.
type TaggedAssertion struct {
	sign   func(tag string, counter uint64, g *grant.Grant) (string, error)
	verify func(tag, token string) (*grant.Grant, error)
	tag    string
}

// Tag implements generator.TagGrant.
func (t *TaggedAssertion) Tag(usage uint64, g *grant.Grant) (string, error) {
	return t.sign(t.tag, usage, g)
}

// Extract verifies token and recovers the Grant it encodes, or returns
// ErrTagMismatch if the signature is invalid or the tag does not match.
func (t *TaggedAssertion) Extract(token string) (*grant.Grant, error) {
	return t.verify(t.tag, token)
}

func appendUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func readUvarint(buf []byte) (int, []byte) {
	var x uint64
	var s uint
	for i, b := range buf {
		if b < 0x80 {
			x |= uint64(b) << s
			return int(x), buf[i+1:]
		}
		x |= uint64(b&0x7f) << s
		s += 7
		if s >= 64 {
			return 0, nil
		}
	}
	return 0, nil
}
