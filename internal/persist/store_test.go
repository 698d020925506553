package persist

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cube-builder/internal/cube"
	"github.com/ramonehamilton/cube-builder/internal/scryfall"
	"github.com/ramonehamilton/cube-builder/internal/storage"
)

func fixedNow() time.Time {
	return time.UnixMilli(1_700_000_000_000)
}

func TestStore_LoadEmpty(t *testing.T) {
	store := NewStore(storage.NewMemoryKV(), Options{})

	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	_, ok := store.LoadMeta(context.Background())
	assert.False(t, ok)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryKV(), Options{Now: fixedNow})

	cmc := 2.0
	want := []cube.Entry{
		{ID: "a", Name: "Alpha", Qty: 3, ManaValue: &cmc, ColorIdentity: []string{"W", "U"}},
		{ID: "b", Name: "Beta", Qty: 1},
	}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loaded entries mismatch (-want +got):\n%s", diff)
	}

	meta, ok := store.LoadMeta(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(1_700_000_000_000), meta.SavedAt)
	assert.Equal(t, SchemaVersion, meta.Version)

	// Save overwrites rather than appends.
	require.NoError(t, store.Save(ctx, want[:1]))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_CorruptStateDegrades(t *testing.T) {
	tests := []struct {
		name string
		list string
	}{
		{"malformed json", `[{"id":`},
		{"object instead of array", `{"entries":[]}`},
		{"scalar", `"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := storage.NewMemoryKV()
			store := NewStore(kv, Options{})

			require.NoError(t, kv.PutAll(ctx, storage.Item{Key: KeysFor("").List, Value: []byte(tt.list)}))
			require.NoError(t, kv.PutAll(ctx, storage.Item{Key: KeysFor("").Meta, Value: []byte(`not json`)}))

			entries, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, entries)

			_, ok := store.LoadMeta(ctx)
			assert.False(t, ok)
		})
	}
}

func TestStore_LoadReclampsRows(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := NewStore(kv, Options{})

	require.NoError(t, kv.PutAll(ctx, storage.Item{Key: KeysFor("").List, Value: []byte(`[{"id":"a","name":"A","qty":500},{"bogus":true}]`)}))

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 99, entries[0].Qty)
}

func TestStore_NamespacesAreDisjoint(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()

	a := NewStore(kv, Options{Namespace: "a"})
	b := NewStore(kv, Options{Namespace: "b"})

	require.NoError(t, a.Save(ctx, []cube.Entry{{ID: "x", Name: "X", Qty: 1}}))

	entries, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, "a:v1:list", KeysFor("a").List)
}

func TestProjectRemoteCard(t *testing.T) {
	cmc := 1.0
	card := &scryfall.Card{
		ID:              "bolt-id",
		OracleID:        "bolt-oracle",
		Name:            "Lightning Bolt",
		SetCode:         "m11",
		CollectorNumber: "149",
		Rarity:          "common",
		TypeLine:        "Instant",
		ManaCost:        "{R}",
		CMC:             &cmc,
		ColorIdentity:   []string{"R"},
		ScryfallURI:     "https://scryfall.com/card/m11/149/lightning-bolt",
		ImageURIs:       &scryfall.ImageURIs{Small: "small.jpg", Normal: "normal.jpg"},
	}

	entry := ProjectRemoteCard(card, "")
	assert.Equal(t, cube.Entry{
		ID:              "bolt-id",
		Name:            "Lightning Bolt",
		Qty:             1,
		Set:             "m11",
		CollectorNumber: "149",
		Rarity:          "common",
		TypeLine:        "Instant",
		ManaCost:        "{R}",
		ManaValue:       &cmc,
		ColorIdentity:   []string{"R"},
		ScryfallURI:     "https://scryfall.com/card/m11/149/lightning-bolt",
		Image:           "small.jpg",
	}, entry)

	assert.Equal(t, "thumb.jpg", ProjectRemoteCard(card, "thumb.jpg").Image)

	// The entry must not alias the card's slices.
	entry.ColorIdentity[0] = "G"
	assert.Equal(t, "R", card.ColorIdentity[0])
}
