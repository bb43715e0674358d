// Copyright (c) 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package state

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no document is stored under a key.
	ErrNotFound = errors.New("state not found")
	// ErrConflict is returned by Create when a document already exists under a key.
	ErrConflict = errors.New("state already exists")
)

// Document is a single state object. Payload is opaque to the store.
type Document struct {
	Key          string
	Payload      []byte
	Created      time.Time
	LastModified time.Time
}

// Store is an in-memory map of state documents guarded by a single lock.
// Writes are full replace, reads return what was last written.
type Store struct {
	mu        sync.Mutex
	documents map[string]Document
	now       func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		documents: map[string]Document{},
		now:       time.Now,
	}
}

// Put overwrites any document under key. Creation time of an existing
// document is preserved.
func (s *Store) Put(key string, payload []byte) Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	doc := Document{
		Key:          key,
		Payload:      clone(payload),
		Created:      now,
		LastModified: now,
	}
	if existing, ok := s.documents[key]; ok {
		doc.Created = existing.Created
	}
	s.documents[key] = doc

	return doc.copy()
}

// Create stores a document only when key is absent, otherwise ErrConflict is returned.
func (s *Store) Create(key string, payload []byte) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[key]; ok {
		return Document{}, errors.Wrapf(ErrConflict, "key %q", key)
	}

	now := s.now()
	doc := Document{
		Key:          key,
		Payload:      clone(payload),
		Created:      now,
		LastModified: now,
	}
	s.documents[key] = doc

	return doc.copy(), nil
}

// Get returns the document stored under key or ErrNotFound.
func (s *Store) Get(key string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[key]
	if !ok {
		return Document{}, errors.Wrapf(ErrNotFound, "key %q", key)
	}

	return doc.copy(), nil
}

// Delete removes the document under key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, key)
}

// Keys returns stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.documents))
	for key := range s.documents {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

// IsNotFound tells if err was caused by a missing document.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// IsConflict tells if err was caused by an already existing document.
func IsConflict(err error) bool {
	return errors.Cause(err) == ErrConflict
}

func (d Document) copy() Document {
	d.Payload = clone(d.Payload)
	return d
}

func clone(payload []byte) []byte {
	if payload == nil {
		return nil
	}
	return append(make([]byte, 0, len(payload)), payload...)
}
