package cube

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// SnapshotVersion tags the structured export format.
const SnapshotVersion = 1

// ErrInvalidImport is returned when import data cannot be turned into a list.
var ErrInvalidImport = errors.New("invalid import")

// ImportMode selects how imported entries are combined with the current list.
type ImportMode string

const (
	// ImportReplace discards the current list.
	ImportReplace ImportMode = "replace"
	// ImportMerge sums quantities of matching cards and appends the rest.
	ImportMerge ImportMode = "merge"
)

// ParseImportMode accepts "replace" or "merge" (case-insensitive).
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case ImportReplace:
		return ImportReplace, nil
	case ImportMerge:
		return ImportMerge, nil
	default:
		return "", fmt.Errorf("unknown import mode %q (use replace or merge)", s)
	}
}

// Snapshot is the structured export document.
type Snapshot struct {
	Version    int     `json:"version"`
	ExportedAt string  `json:"exported_at"`
	Entries    []Entry `json:"entries"`
}

// isoMillis matches JavaScript's Date.toISOString output.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// ExportJSON renders entries, unsorted, as an indented Snapshot.
func ExportJSON(entries []Entry, now time.Time) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: now.UTC().Format(isoMillis),
		Entries:    entries,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// ParseImport reads a Snapshot document or a bare array of entries. Rows
// that are not objects or have no name are dropped, and every quantity is
// re-clamped (missing or unusable quantities become 1). Fails with
// ErrInvalidImport when the shape is wrong or no row survives.
func ParseImport(data []byte) ([]Entry, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: the file is not valid JSON (%v); export a fresh backup and try again", ErrInvalidImport, err)
	}

	var rows []interface{}
	switch v := doc.(type) {
	case []interface{}:
		rows = v
	case map[string]interface{}:
		entries, ok := v["entries"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: expected an \"entries\" array; make sure the file is a cube export", ErrInvalidImport)
		}
		rows = entries
	default:
		return nil, fmt.Errorf("%w: expected a cube export object or an array of cards", ErrInvalidImport)
	}

	entries := NormalizeRows(rows)
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no valid cards found (each card needs at least a name)", ErrInvalidImport)
	}
	return entries, nil
}

// DecodeEntries decodes a JSON array of entries with the same leniency as
// ParseImport. ok is false when data is not a JSON array.
func DecodeEntries(data []byte) (entries []Entry, ok bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var rows []interface{}
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, false
	}
	return NormalizeRows(rows), true
}

// NormalizeRows turns decoded JSON values into entries, skipping anything
// that is not an object with a non-empty name. Rows without an id use their
// name as id so every entry stays addressable.
func NormalizeRows(rows []interface{}) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		name := stringField(obj, "name")
		if name == "" {
			continue
		}
		id := stringField(obj, "id")
		if id == "" {
			id = name
		}

		entry := Entry{
			ID:              id,
			Name:            name,
			Qty:             qtyField(obj["qty"]),
			Set:             stringField(obj, "set"),
			CollectorNumber: stringField(obj, "collector_number"),
			Rarity:          stringField(obj, "rarity"),
			TypeLine:        stringField(obj, "type_line"),
			ManaCost:        stringField(obj, "mana_cost"),
			ScryfallURI:     stringField(obj, "scryfall_uri"),
			Image:           stringField(obj, "image"),
		}
		if cmc, ok := obj["cmc"].(float64); ok {
			entry.ManaValue = &cmc
		}
		if colors, ok := obj["color_identity"].([]interface{}); ok {
			for _, c := range colors {
				if s, ok := c.(string); ok {
					entry.ColorIdentity = append(entry.ColorIdentity, s)
				}
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func stringField(obj map[string]interface{}, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func qtyField(v interface{}) int {
	switch q := v.(type) {
	case float64:
		return ClampQtyFloat(q)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
		if err != nil {
			return MinQty
		}
		return ClampQtyFloat(n)
	default:
		return MinQty
	}
}
