// Package session owns the working cube list. It applies each edit to the
// list, saves it, and hands it to the checkpointer so the backup ring keeps
// recent history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ramonehamilton/cube-builder/internal/backup"
	"github.com/ramonehamilton/cube-builder/internal/cube"
	"github.com/ramonehamilton/cube-builder/internal/persist"
	"github.com/ramonehamilton/cube-builder/internal/resolve"
	"github.com/ramonehamilton/cube-builder/internal/storage"
)

var (
	// ErrEntryNotFound is returned when an id is not in the list.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrUnresolved is returned when Add is given an outcome without a card.
	ErrUnresolved = errors.New("choose a candidate before adding")
)

// Options configures a Session.
type Options struct {
	Namespace string
	Policy    backup.Policy
	Logger    *slog.Logger
	Now       func() time.Time

	// SealConfig builds the key-derivation settings for a passphrase.
	// Defaults to storage.DefaultSealConfig.
	SealConfig func(passphrase string) *storage.SealConfig
}

// ImportSummary describes the list after an import.
type ImportSummary struct {
	Rows     int
	Cards    int
	TotalQty int
	Sealed   bool
}

// Session is the single writer of one namespace.
type Session struct {
	store        *persist.Store
	ring         *backup.Ring
	checkpointer *backup.Checkpointer
	sealConfig   func(string) *storage.SealConfig
	logger       *slog.Logger
	now          func() time.Time

	mu   sync.Mutex
	list *cube.List
}

// Open loads the saved list from kv. Corrupt saved state opens as an empty
// list; only storage failures are returned.
func Open(ctx context.Context, kv storage.KV, options Options) (*Session, error) {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.SealConfig == nil {
		options.SealConfig = storage.DefaultSealConfig
	}
	if options.Policy == (backup.Policy{}) {
		options.Policy = backup.DefaultPolicy()
	}

	store := persist.NewStore(kv, persist.Options{
		Namespace: options.Namespace,
		Logger:    options.Logger,
		Now:       options.Now,
	})
	ring := backup.NewRing(kv, backup.Options{
		Namespace: options.Namespace,
		Logger:    options.Logger,
		Now:       options.Now,
	})

	entries, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	options.Logger.Debug("Session opened", "cards", len(entries))

	return &Session{
		store:        store,
		ring:         ring,
		checkpointer: backup.NewCheckpointer(ring, options.Policy),
		sealConfig:   options.SealConfig,
		logger:       options.Logger,
		now:          options.Now,
		list:         cube.NewList(entries),
	}, nil
}

// Entries returns a copy of the list in insertion order.
func (s *Session) Entries() []cube.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Entries()
}

// TotalQty returns the sum of all quantities.
func (s *Session) TotalQty() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.TotalQty()
}

// Add projects a resolved card into an entry and adds qty copies, summing
// into an existing entry for the same card.
func (s *Session) Add(ctx context.Context, outcome *resolve.Outcome, qty int) (cube.Entry, error) {
	if outcome == nil || outcome.Kind != resolve.Resolved || outcome.Card == nil {
		return cube.Entry{}, ErrUnresolved
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.list.Add(persist.ProjectRemoteCard(outcome.Card, ""), qty)
	s.logger.Info("Added card", "name", entry.Name, "qty", entry.Qty, "via_translation", outcome.MatchedViaTranslation)
	return entry, s.commitLocked(ctx)
}

// SetQuantity sets an entry's quantity, clamped to [1, 99].
func (s *Session) SetQuantity(ctx context.Context, id string, value float64) (cube.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.list.SetQuantity(id, value)
	if !ok {
		return cube.Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return entry, s.commitLocked(ctx)
}

// Remove deletes an entry. An absent id is a no-op: nothing is saved and
// removed is false.
func (s *Session) Remove(ctx context.Context, id string) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.list.Remove(id) {
		s.logger.Debug("Remove skipped, id not in list", "id", id)
		return false, nil
	}
	return true, s.commitLocked(ctx)
}

// Clear empties the list. Backups are kept.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list.Replace(nil)
	return s.commitLocked(ctx)
}

// Import parses a JSON snapshot, opening it with passphrase when sealed, and
// installs it with mode.
func (s *Session) Import(ctx context.Context, data []byte, mode cube.ImportMode, passphrase string) (ImportSummary, error) {
	summary := ImportSummary{Sealed: storage.IsSealed(data)}
	if summary.Sealed {
		if passphrase == "" {
			return summary, fmt.Errorf("%w: this export is encrypted", storage.ErrPassphraseRequired)
		}
		plain, err := storage.Unseal(data, s.sealConfig(passphrase))
		if err != nil {
			return summary, err
		}
		data = plain
	}

	entries, err := cube.ParseImport(data)
	if err != nil {
		return summary, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.list.Import(entries, mode); err != nil {
		return summary, err
	}
	summary.Rows = len(entries)
	summary.Cards = s.list.Len()
	summary.TotalQty = s.list.TotalQty()
	s.logger.Info("Imported cube", "mode", mode, "rows", summary.Rows, "cards", summary.Cards)

	return summary, s.commitLocked(ctx)
}

// Restore replaces the list with a backup slot and saves it. ref is a slot
// number or a full slot key. The ring itself is left untouched, but the list
// counts as dirty until the next snapshot.
func (s *Session) Restore(ctx context.Context, ref string) ([]cube.Entry, error) {
	entries, err := s.ring.Restore(ctx, s.ring.ResolveSlotKey(ref))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.list.Replace(entries)
	if err := s.store.Save(ctx, s.list.Entries()); err != nil {
		return nil, err
	}
	s.checkpointer.MarkDirty()
	s.logger.Info("Restored backup", "slot", ref, "cards", s.list.Len())
	return s.list.Entries(), nil
}

// ExportCSV returns the list as name-sorted CSV.
func (s *Session) ExportCSV() ([]byte, error) {
	return cube.ExportCSV(s.Entries())
}

// ExportJSON returns the list as a JSON snapshot, sealed when passphrase is
// not empty.
func (s *Session) ExportJSON(passphrase string) ([]byte, error) {
	data, err := cube.ExportJSON(s.Entries(), s.now())
	if err != nil {
		return nil, err
	}
	if passphrase == "" {
		return data, nil
	}
	return storage.Seal(data, s.sealConfig(passphrase))
}

// Backups lists the populated backup slots, newest first.
func (s *Session) Backups(ctx context.Context) ([]backup.Info, error) {
	return s.ring.List(ctx, s.checkpointer.Policy().Capacity)
}

// Checkpoint snapshots the list now, ignoring the interval.
func (s *Session) Checkpoint(ctx context.Context) (backup.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.checkpointer.Force(ctx, s.list.Entries())
	if err != nil {
		return backup.Info{}, err
	}
	return *info, nil
}

// SetPolicy changes the backup capacity and interval.
func (s *Session) SetPolicy(policy backup.Policy) {
	s.checkpointer.SetPolicy(policy)
}

// Dirty reports whether the list changed since the last backup snapshot.
func (s *Session) Dirty() bool {
	return s.checkpointer.Dirty()
}

// LastCheckpoint returns when the last backup snapshot was taken in this
// session; zero if none.
func (s *Session) LastCheckpoint() time.Time {
	return s.checkpointer.LastCheckpoint()
}

// Meta returns the saved list's metadata, if any.
func (s *Session) Meta(ctx context.Context) (persist.Meta, bool) {
	return s.store.LoadMeta(ctx)
}

// commitLocked saves the list and offers it to the checkpointer. A failed
// snapshot is logged; the save has already succeeded.
func (s *Session) commitLocked(ctx context.Context) error {
	entries := s.list.Entries()
	if err := s.store.Save(ctx, entries); err != nil {
		return err
	}

	info, err := s.checkpointer.Changed(ctx, entries)
	if err != nil {
		s.logger.Warn("Backup snapshot failed", "error", err)
		return nil
	}
	if info != nil {
		s.logger.Debug("Backup snapshot written", "slot", info.Slot, "cards", info.Cards)
	}
	return nil
}
