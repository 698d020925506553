package cube

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CSVHeader is the fixed header row of a delimited export.
var CSVHeader = []string{
	"qty", "name", "set", "collector_number", "rarity",
	"color_identity", "cmc", "type_line", "scryfall_uri",
}

// WriteCSV writes entries as comma-separated rows sorted by name. Fields
// holding a comma, quote or newline are quoted with inner quotes doubled.
func WriteCSV(w io.Writer, entries []Entry) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	SortByName(sorted)

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range sorted {
		record := []string{
			strconv.Itoa(e.Qty),
			e.Name,
			e.Set,
			e.CollectorNumber,
			e.Rarity,
			e.Colors(),
			formatManaValue(e.ManaValue),
			e.TypeLine,
			e.ScryfallURI,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %q: %w", e.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSV returns the delimited export as bytes.
func ExportCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SortByName orders entries by name using English collation, so case and
// accents sort the way a reader expects ("Æther" next to "Aether").
func SortByName(entries []Entry) {
	c := collate.New(language.English)
	sort.SliceStable(entries, func(i, j int) bool {
		return c.CompareString(entries[i].Name, entries[j].Name) < 0
	})
}

func formatManaValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
