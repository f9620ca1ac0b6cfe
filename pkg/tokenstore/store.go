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

// Package tokenstore holds the upstream token pair obtained by the OAuth
// callback. The only implementation is process-local: tokens are lost on
// restart and are not shared between replicas, so the relay must run as a
// single instance.
package tokenstore

import "sync"

// Pair is the credential set returned by the upstream token endpoint.
// RefreshToken is kept but never used; the access token is not refreshed.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Store is read by the proxy handlers and written by the OAuth callback.
type Store interface {
	// Get returns the current pair and whether one is present.
	Get() (Pair, bool)
	// Set replaces the current pair. Last write wins.
	Set(Pair)
}

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store.
type Memory struct {
	mu   sync.RWMutex
	pair *Pair
}

// NewMemory returns an empty, unauthenticated store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get() (Pair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pair == nil {
		return Pair{}, false
	}
	return *m.pair, true
}

// Set stores p. A pair without an access token resets the store to the
// unauthenticated state.
func (m *Memory) Set(p Pair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.AccessToken == "" {
		m.pair = nil
		return
	}
	m.pair = &p
}
