// Package persist stores the cube list and its save metadata in a key/value
// medium. Reads never fail on bad data: corrupt values are logged and
// treated as absent.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ramonehamilton/cube-builder/internal/cube"
	"github.com/ramonehamilton/cube-builder/internal/scryfall"
	"github.com/ramonehamilton/cube-builder/internal/storage"
)

// SchemaVersion tags every saved Meta record.
const SchemaVersion = "v1"

// DefaultNamespace prefixes every key written by this program.
const DefaultNamespace = "cube"

// Meta describes the last save.
type Meta struct {
	SavedAt int64  `json:"savedAt"` // epoch milliseconds
	Version string `json:"version"`
}

// Time returns SavedAt as a time.Time.
func (m Meta) Time() time.Time {
	return time.UnixMilli(m.SavedAt)
}

// Keys names the storage keys of one namespace.
type Keys struct {
	List string
	Meta string
}

// KeysFor returns the list and meta keys under namespace.
func KeysFor(namespace string) Keys {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	prefix := namespace + ":" + SchemaVersion + ":"
	return Keys{
		List: prefix + "list",
		Meta: prefix + "meta",
	}
}

// Options configures a Store.
type Options struct {
	Namespace string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Store is the local persistence store for the cube list.
type Store struct {
	kv     storage.KV
	keys   Keys
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store over kv.
func NewStore(kv storage.KV, options Options) *Store {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Store{
		kv:     kv,
		keys:   KeysFor(options.Namespace),
		logger: options.Logger,
		now:    options.Now,
	}
}

// Load returns the saved entries. A missing list, malformed JSON or a
// top-level value that is not an array all yield an empty list. Only a
// failure of the medium itself is returned as an error.
func (s *Store) Load(ctx context.Context) ([]cube.Entry, error) {
	data, found, err := s.kv.Get(ctx, s.keys.List)
	if err != nil {
		return nil, fmt.Errorf("load cube list: %w", err)
	}
	if !found {
		return []cube.Entry{}, nil
	}

	entries, ok := cube.DecodeEntries(data)
	if !ok {
		s.logger.Warn("stored cube list is corrupt, starting empty", "key", s.keys.List, "bytes", len(data))
		return []cube.Entry{}, nil
	}
	return entries, nil
}

// Save overwrites the stored list and stamps a fresh Meta in the same write.
func (s *Store) Save(ctx context.Context, entries []cube.Entry) error {
	if entries == nil {
		entries = []cube.Entry{}
	}

	list, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cube list: %w", err)
	}
	meta, err := json.Marshal(Meta{SavedAt: s.now().UnixMilli(), Version: SchemaVersion})
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	if err := s.kv.PutAll(ctx,
		storage.Item{Key: s.keys.List, Value: list},
		storage.Item{Key: s.keys.Meta, Value: meta},
	); err != nil {
		return fmt.Errorf("save cube list: %w", err)
	}
	return nil
}

// LoadMeta returns the last save's metadata. ok is false when none was
// saved, it cannot be read, or it is corrupt.
func (s *Store) LoadMeta(ctx context.Context) (meta Meta, ok bool) {
	data, found, err := s.kv.Get(ctx, s.keys.Meta)
	if err != nil {
		s.logger.Warn("failed to read save metadata", "key", s.keys.Meta, "error", err)
		return Meta{}, false
	}
	if !found {
		return Meta{}, false
	}
	if err := json.Unmarshal(data, &meta); err != nil || meta.SavedAt <= 0 {
		s.logger.Warn("stored save metadata is corrupt", "key", s.keys.Meta)
		return Meta{}, false
	}
	return meta, true
}

// ProjectRemoteCard maps a Scryfall card to a new cube entry with quantity 1.
// An empty thumbnail falls back to the card's own small image.
func ProjectRemoteCard(card *scryfall.Card, thumbnail string) cube.Entry {
	if thumbnail == "" {
		thumbnail = card.Thumbnail()
	}

	var colors []string
	if len(card.ColorIdentity) > 0 {
		colors = append(colors, card.ColorIdentity...)
	}

	var manaValue *float64
	if card.CMC != nil {
		v := *card.CMC
		manaValue = &v
	}

	return cube.Entry{
		ID:              card.ID,
		Name:            card.Name,
		Qty:             1,
		Set:             card.SetCode,
		CollectorNumber: card.CollectorNumber,
		Rarity:          card.Rarity,
		TypeLine:        card.TypeLine,
		ManaCost:        card.ManaCostText(),
		ManaValue:       manaValue,
		ColorIdentity:   colors,
		ScryfallURI:     card.ScryfallURI,
		Image:           thumbnail,
	}
}
