/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package state

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultMaxAge bounds how long a signed state stays valid after it was issued.
const DefaultMaxAge = 10 * time.Minute

const separator = "."

var (
	// ErrInvalid is wrapped by every verification failure.
	ErrInvalid = errors.New("invalid state")
	// ErrMissingSecret is returned when no signing secret is configured.
	// Verification fails closed in that case.
	ErrMissingSecret = fmt.Errorf("%w: missing signing secret", ErrInvalid)
	// ErrMalformed is returned for tokens that cannot be split or decoded.
	ErrMalformed = fmt.Errorf("%w: malformed token", ErrInvalid)
	// ErrBadSignature is returned when the signature does not match the payload.
	ErrBadSignature = fmt.Errorf("%w: signature mismatch", ErrInvalid)
	// ErrExpired is returned when the payload timestamp is older than the max age.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalid)
)

// Payload is the data carried through the OAuth redirect round trip.
type Payload struct {
	// Timestamp is the issue time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"ts"`
}

// IssuedAt returns the payload timestamp as a time.Time.
func (p Payload) IssuedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Signer signs and verifies state tokens of the form
// base64url(json) "." base64url(hmac-sha256(secret, base64url(json))).
type Signer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// WithMaxAge overrides DefaultMaxAge.
func WithMaxAge(d time.Duration) Option {
	return func(s *Signer) {
		s.maxAge = d
	}
}

// NewSigner returns a Signer keyed by secret. An empty secret is accepted so
// the process can start without it; every Sign and Verify call then fails
// with ErrMissingSecret.
func NewSigner(secret []byte, opts ...Option) *Signer {
	s := &Signer{
		secret: secret,
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasSecret reports whether a signing secret is configured.
func (s *Signer) HasSecret() bool {
	return s != nil && len(s.secret) > 0
}

// NewPayload returns a payload bound to the current time.
func (s *Signer) NewPayload() Payload {
	return Payload{Timestamp: s.now().UnixMilli()}
}

// Sign encodes and signs the payload.
func (s *Signer) Sign(p Payload) (string, error) {
	if !s.HasSecret() {
		return "", ErrMissingSecret
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode state payload: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + separator + s.signature(encoded), nil
}

// Verify checks the token signature in constant time and then the payload
// age. The payload is returned only if both checks pass.
func (s *Signer) Verify(token string) (Payload, error) {
	if !s.HasSecret() {
		return Payload{}, ErrMissingSecret
	}

	encoded, sig, ok := strings.Cut(token, separator)
	if !ok || encoded == "" || sig == "" || strings.Contains(sig, separator) {
		return Payload{}, ErrMalformed
	}

	expected := s.signature(encoded)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return Payload{}, ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if s.now().Sub(p.IssuedAt()) > s.maxAge {
		return Payload{}, ErrExpired
	}
	return p, nil
}

func (s *Signer) signature(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
