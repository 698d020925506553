package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cube-builder/internal/backup"
	"github.com/ramonehamilton/cube-builder/internal/cube"
	"github.com/ramonehamilton/cube-builder/internal/resolve"
	"github.com/ramonehamilton/cube-builder/internal/scryfall"
	"github.com/ramonehamilton/cube-builder/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func fastSeal(passphrase string) *storage.SealConfig {
	config := storage.DefaultSealConfig(passphrase)
	config.Argon2Memory = 8 * 1024
	return config
}

func openTest(t *testing.T, kv storage.KV, clock *fakeClock) *Session {
	t.Helper()
	s, err := Open(context.Background(), kv, Options{
		Now:        clock.Now,
		SealConfig: fastSeal,
	})
	require.NoError(t, err)
	return s
}

func resolved(id, name string) *resolve.Outcome {
	return &resolve.Outcome{
		Kind:            resolve.Resolved,
		Card:            &scryfall.Card{ID: id, Name: name, SetCode: "lea", Rarity: "common"},
		MatchedDirectly: true,
	}
}

func names(entries []cube.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestAdd_SavesAndSumsDuplicates(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := openTest(t, kv, clock)

	_, err := s.Add(ctx, resolved("bolt", "Lightning Bolt"), 2)
	require.NoError(t, err)
	entry, err := s.Add(ctx, resolved("bolt", "Lightning Bolt"), 98)
	require.NoError(t, err)
	assert.Equal(t, cube.MaxQty, entry.Qty)

	reopened := openTest(t, kv, clock)
	entries := reopened.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 99, entries[0].Qty)
	assert.Equal(t, "lea", entries[0].Set)

	meta, ok := reopened.Meta(ctx)
	require.True(t, ok)
	assert.Equal(t, clock.t.UnixMilli(), meta.SavedAt)
}

func TestAdd_RejectsAmbiguous(t *testing.T) {
	s := openTest(t, storage.NewMemoryKV(), &fakeClock{t: time.Now()})

	_, err := s.Add(context.Background(), &resolve.Outcome{Kind: resolve.Ambiguous}, 1)
	assert.True(t, errors.Is(err, ErrUnresolved))
	_, err = s.Add(context.Background(), nil, 1)
	assert.True(t, errors.Is(err, ErrUnresolved))
}

func TestSetQuantityAndRemove(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, storage.NewMemoryKV(), &fakeClock{t: time.Now()})

	_, err := s.Add(ctx, resolved("bolt", "Lightning Bolt"), 1)
	require.NoError(t, err)

	entry, err := s.SetQuantity(ctx, "bolt", 150)
	require.NoError(t, err)
	assert.Equal(t, 99, entry.Qty)

	entry, err = s.SetQuantity(ctx, "bolt", -4)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Qty)

	_, err = s.SetQuantity(ctx, "missing", 3)
	assert.True(t, errors.Is(err, ErrEntryNotFound))

	removed, err := s.Remove(ctx, "bolt")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, s.Entries())
}

func TestRemove_AbsentIDIsNoop(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := openTest(t, kv, clock)

	_, err := s.Add(ctx, resolved("bolt", "Lightning Bolt"), 1)
	require.NoError(t, err)
	before, ok := s.Meta(ctx)
	require.True(t, ok)

	clock.Advance(time.Minute)
	removed, err := s.Remove(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, []string{"Lightning Bolt"}, names(s.Entries()))
	assert.False(t, s.Dirty())

	after, ok := s.Meta(ctx)
	require.True(t, ok)
	assert.Equal(t, before.SavedAt, after.SavedAt, "nothing is saved")
}

func TestCheckpointPolicyAndDirty(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := openTest(t, storage.NewMemoryKV(), clock)

	assert.False(t, s.Dirty())

	_, err := s.Add(ctx, resolved("a", "A"), 1)
	require.NoError(t, err)
	assert.False(t, s.Dirty(), "first change snapshots immediately")

	clock.Advance(10 * time.Second)
	_, err = s.Add(ctx, resolved("b", "B"), 1)
	require.NoError(t, err)
	assert.True(t, s.Dirty())

	infos, err := s.Backups(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].Cards)

	info, err := s.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Slot)
	assert.Equal(t, 2, info.Cards)
	assert.False(t, s.Dirty())
}

func TestRestore_ReplacesListAndLeavesRing(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := openTest(t, kv, clock)

	_, err := s.Add(ctx, resolved("a", "A"), 3) // snapshot in slot 1
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = s.Add(ctx, resolved("b", "B"), 1)
	require.NoError(t, err)

	first := s.LastCheckpoint()
	assert.False(t, first.IsZero())

	restored, err := s.Restore(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(restored))
	assert.True(t, s.Dirty(), "restored list is not in a fresh snapshot")
	assert.Equal(t, first, s.LastCheckpoint())

	ring := backup.NewRing(kv, backup.Options{})
	counter, err := ring.Counter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counter)

	assert.Equal(t, []string{"A"}, names(openTest(t, kv, clock).Entries()), "restore is saved")

	_, err = s.Restore(ctx, "4")
	assert.True(t, errors.Is(err, backup.ErrSlotNotFound))
}

func TestClear_KeepsBackups(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, storage.NewMemoryKV(), &fakeClock{t: time.Now()})

	_, err := s.Add(ctx, resolved("a", "A"), 1)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	assert.Empty(t, s.Entries())
	infos, err := s.Backups(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestImport_ReplaceAndMerge(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, storage.NewMemoryKV(), &fakeClock{t: time.Now()})

	_, err := s.Add(ctx, resolved("bolt", "Lightning Bolt"), 2)
	require.NoError(t, err)

	data := []byte(`{"entries":[{"id":"bolt","name":"Lightning Bolt","qty":3},{"name":"Counterspell","qty":"2"},{"qty":5}]}`)
	summary, err := s.Import(ctx, data, cube.ImportMerge, "")
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Rows: 2, Cards: 2, TotalQty: 7}, summary)
	assert.Equal(t, []string{"Lightning Bolt", "Counterspell"}, names(s.Entries()))

	summary, err = s.Import(ctx, []byte(`[{"name":"Brainstorm"}]`), cube.ImportReplace, "")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cards)
	assert.Equal(t, []string{"Brainstorm"}, names(s.Entries()))

	_, err = s.Import(ctx, []byte(`{"cards":[]}`), cube.ImportReplace, "")
	assert.True(t, errors.Is(err, cube.ErrInvalidImport))
	assert.Equal(t, []string{"Brainstorm"}, names(s.Entries()), "failed import leaves the list alone")
}

func TestExportJSON_SealedRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openTest(t, storage.NewMemoryKV(), &fakeClock{t: time.Now()})
	_, err := src.Add(ctx, resolved("bolt", "Lightning Bolt"), 4)
	require.NoError(t, err)

	sealed, err := src.ExportJSON("hunter2")
	require.NoError(t, err)
	assert.True(t, storage.IsSealed(sealed))

	dst := openTest(t, storage.NewMemoryKV(), &fakeClock{t: time.Now()})
	_, err = dst.Import(ctx, sealed, cube.ImportReplace, "")
	assert.True(t, errors.Is(err, storage.ErrPassphraseRequired))

	_, err = dst.Import(ctx, sealed, cube.ImportReplace, "wrong")
	assert.Error(t, err)

	summary, err := dst.Import(ctx, sealed, cube.ImportReplace, "hunter2")
	require.NoError(t, err)
	assert.True(t, summary.Sealed)
	assert.Equal(t, 4, summary.TotalQty)
}

func TestExportCSV_SortedByName(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, storage.NewMemoryKV(), &fakeClock{t: time.Now()})
	_, err := s.Add(ctx, resolved("z", "Zealous Conscripts"), 1)
	require.NoError(t, err)
	_, err = s.Add(ctx, resolved("a", "Ancestral Recall"), 1)
	require.NoError(t, err)

	data, err := s.ExportCSV()
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1,Ancestral Recall,"))
	assert.True(t, strings.HasPrefix(lines[2], "1,Zealous Conscripts,"))
}

func TestOpen_CorruptListStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.PutAll(ctx, storage.Item{Key: "cube:v1:list", Value: []byte(`{not json`)}))

	s := openTest(t, kv, &fakeClock{t: time.Now()})
	assert.Empty(t, s.Entries())
}
