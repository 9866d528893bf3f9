// Package state holds the per-turn view of persisted conversation and user
// state. A Bag is loaded at the start of a turn, mutated in memory and
// flushed once with SaveChanges.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"service-desk-bot/internal/domain"
)

// Store persists whole state documents by key.
type Store interface {
	Load(ctx context.Context, key string) (domain.StateDocument, error)
	Save(ctx context.Context, key string, doc domain.StateDocument) error
}

// ConversationKey returns the storage key of a conversation scope.
func ConversationKey(conversationID string) string {
	return "CONV#" + conversationID
}

// UserKey returns the storage key of a user scope.
func UserKey(userID string) string {
	return "USER#" + userID
}

// Bag is one loaded state scope.
type Bag struct {
	store    Store
	key      string
	doc      domain.StateDocument
	snapshot domain.StateDocument
}

// Load reads the document stored under key. A missing document yields an
// empty bag.
func Load(ctx context.Context, store Store, key string) (*Bag, error) {
	if store == nil {
		return nil, errors.New("state: store must not be nil")
	}
	if key == "" {
		return nil, errors.New("state: key must not be empty")
	}
	doc, err := store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("state: load %s: %w", key, err)
	}
	if doc == nil {
		doc = domain.StateDocument{}
	}
	return &Bag{store: store, key: key, doc: doc, snapshot: doc.Clone()}, nil
}

// NewMemoryBag returns a bag that is not backed by a store. SaveChanges on
// it only resets the change tracking.
func NewMemoryBag() *Bag {
	return &Bag{doc: domain.StateDocument{}, snapshot: domain.StateDocument{}}
}

// Key returns the storage key of the bag.
func (b *Bag) Key() string {
	return b.key
}

// Get decodes the value stored under name into dst. It reports false when
// nothing is stored.
func (b *Bag) Get(name string, dst any) (bool, error) {
	raw, ok := b.doc[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", name, err)
	}
	return true, nil
}

// Set stores v under name.
func (b *Bag) Set(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", name, err)
	}
	b.doc[name] = raw
	return nil
}

// Delete removes name from the bag.
func (b *Bag) Delete(name string) {
	delete(b.doc, name)
}

// Changed reports whether the bag differs from what was loaded or last saved.
func (b *Bag) Changed() bool {
	if len(b.doc) != len(b.snapshot) {
		return true
	}
	for k, v := range b.doc {
		prev, ok := b.snapshot[k]
		if !ok || !bytes.Equal(prev, v) {
			return true
		}
	}
	return false
}

// SaveChanges writes the document when it changed since it was loaded.
func (b *Bag) SaveChanges(ctx context.Context) error {
	if b.store == nil {
		return b.SaveChangesWith(ctx, func(context.Context, string, domain.StateDocument) error { return nil })
	}
	return b.SaveChangesWith(ctx, b.store.Save)
}

// SaveChangesWith is SaveChanges with a caller supplied writer, used when
// the document is written together with other records.
func (b *Bag) SaveChangesWith(ctx context.Context, write func(ctx context.Context, key string, doc domain.StateDocument) error) error {
	if !b.Changed() {
		return nil
	}
	if err := write(ctx, b.key, b.doc.Clone()); err != nil {
		return fmt.Errorf("state: save %s: %w", b.key, err)
	}
	b.snapshot = b.doc.Clone()
	return nil
}

// Property is a typed accessor for one named value in a Bag.
type Property[T any] struct {
	Name string
}

// NewProperty returns an accessor for name.
func NewProperty[T any](name string) Property[T] {
	return Property[T]{Name: name}
}

// Get returns the stored value, or def when nothing is stored.
func (p Property[T]) Get(b *Bag, def T) (T, error) {
	var v T
	ok, err := b.Get(p.Name, &v)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func (p Property[T]) Set(b *Bag, v T) error {
	return b.Set(p.Name, v)
}

func (p Property[T]) Delete(b *Bag) {
	b.Delete(p.Name)
}
