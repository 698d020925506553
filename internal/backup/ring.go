// Package backup keeps a fixed number of full snapshots of the cube list in
// rotating slots, separate from the primary saved list.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ramonehamilton/cube-builder/internal/cube"
	"github.com/ramonehamilton/cube-builder/internal/persist"
	"github.com/ramonehamilton/cube-builder/internal/storage"
)

const (
	MinCapacity     = 1
	MaxCapacity     = 10
	DefaultCapacity = 5
)

var (
	// ErrSlotNotFound is returned when restoring a slot that holds no data.
	ErrSlotNotFound = errors.New("backup slot not found")
	// ErrSlotInvalid is returned when a slot's entries are not an array.
	ErrSlotInvalid = errors.New("backup slot is invalid")
)

// Snapshot is the payload stored in one slot.
type Snapshot struct {
	Timestamp int64        `json:"timestamp"` // epoch milliseconds
	Entries   []cube.Entry `json:"entries"`
}

// Info describes a populated slot.
type Info struct {
	Key       string
	Slot      int
	Timestamp time.Time
	Cards     int
	TotalQty  int
}

// ClampCapacity limits n to [MinCapacity, MaxCapacity].
func ClampCapacity(n int) int {
	if n < MinCapacity {
		return MinCapacity
	}
	if n > MaxCapacity {
		return MaxCapacity
	}
	return n
}

// SlotFor returns the 1-based slot the checkpoint numbered counter goes to.
func SlotFor(counter, capacity int) int {
	capacity = ClampCapacity(capacity)
	if counter < 0 {
		counter = 0
	}
	return counter%capacity + 1
}

// Options configures a Ring.
type Options struct {
	Namespace string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Ring writes and reads backup slots. It shares the medium with
// persist.Store but only touches its own keys.
type Ring struct {
	kv         storage.KV
	slotPrefix string
	counterKey string
	logger     *slog.Logger
	now        func() time.Time
}

// NewRing creates a Ring over kv.
func NewRing(kv storage.KV, options Options) *Ring {
	if options.Namespace == "" {
		options.Namespace = persist.DefaultNamespace
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	prefix := options.Namespace + ":" + persist.SchemaVersion + ":"
	return &Ring{
		kv:         kv,
		slotPrefix: prefix + "backup:",
		counterKey: prefix + "backup_counter",
		logger:     options.Logger,
		now:        options.Now,
	}
}

// SlotKey returns the storage key of a 1-based slot.
func (r *Ring) SlotKey(slot int) string {
	return r.slotPrefix + strconv.Itoa(slot)
}

// Counter returns the number of rotations performed so far. A missing or
// corrupt counter reads as 0.
func (r *Ring) Counter(ctx context.Context) (int, error) {
	data, found, err := r.kv.Get(ctx, r.counterKey)
	if err != nil {
		return 0, fmt.Errorf("read backup counter: %w", err)
	}
	if !found {
		return 0, nil
	}

	var counter int
	if err := json.Unmarshal(data, &counter); err != nil || counter < 0 {
		r.logger.Warn("backup counter is corrupt, restarting rotation", "key", r.counterKey)
		return 0, nil
	}
	return counter, nil
}

// Rotate writes a full snapshot of entries into the next slot and advances
// the counter. Snapshot and counter are written together.
func (r *Ring) Rotate(ctx context.Context, entries []cube.Entry, capacity int) (Info, error) {
	capacity = ClampCapacity(capacity)

	counter, err := r.Counter(ctx)
	if err != nil {
		return Info{}, err
	}
	slot := SlotFor(counter, capacity)

	if entries == nil {
		entries = []cube.Entry{}
	}
	now := r.now()
	payload, err := json.Marshal(Snapshot{Timestamp: now.UnixMilli(), Entries: entries})
	if err != nil {
		return Info{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	key := r.SlotKey(slot)
	if err := r.kv.PutAll(ctx,
		storage.Item{Key: key, Value: payload},
		storage.Item{Key: r.counterKey, Value: []byte(strconv.Itoa(counter + 1))},
	); err != nil {
		return Info{}, fmt.Errorf("write backup slot %d: %w", slot, err)
	}

	r.logger.Debug("backup checkpoint written", "slot", slot, "cards", len(entries))
	return newInfo(key, slot, now.UnixMilli(), entries), nil
}

// List returns the populated slots among the first capacity slots, newest
// first. Empty or unreadable slots are skipped.
func (r *Ring) List(ctx context.Context, capacity int) ([]Info, error) {
	capacity = ClampCapacity(capacity)

	infos := []Info{}
	for slot := 1; slot <= capacity; slot++ {
		key := r.SlotKey(slot)
		data, found, err := r.kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read backup slot %d: %w", slot, err)
		}
		if !found {
			continue
		}

		snap, err := decodeSnapshot(data)
		if err != nil {
			r.logger.Debug("skipping unreadable backup slot", "key", key, "error", err)
			continue
		}
		infos = append(infos, newInfo(key, slot, snap.Timestamp, snap.Entries))
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	return infos, nil
}

// Restore reads the entries of one slot. It never modifies the ring.
func (r *Ring) Restore(ctx context.Context, slotKey string) ([]cube.Entry, error) {
	data, found, err := r.kv.Get(ctx, slotKey)
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", slotKey, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, slotKey)
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSlotInvalid, slotKey, err)
	}
	return snap.Entries, nil
}

// ResolveSlotKey accepts either a full slot key or a slot number.
func (r *Ring) ResolveSlotKey(ref string) string {
	if n, err := strconv.Atoi(ref); err == nil {
		return r.SlotKey(n)
	}
	return ref
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var raw struct {
		Timestamp int64           `json:"timestamp"`
		Entries   json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(bytes.TrimSpace(raw.Entries)) == 0 {
		return Snapshot{}, errors.New("snapshot has no entries array")
	}

	entries, ok := cube.DecodeEntries(raw.Entries)
	if !ok {
		return Snapshot{}, errors.New("snapshot entries is not an array")
	}
	return Snapshot{Timestamp: raw.Timestamp, Entries: entries}, nil
}

func newInfo(key string, slot int, timestamp int64, entries []cube.Entry) Info {
	total := 0
	for _, e := range entries {
		total += e.Qty
	}
	return Info{
		Key:       key,
		Slot:      slot,
		Timestamp: time.UnixMilli(timestamp),
		Cards:     len(entries),
		TotalQty:  total,
	}
}
