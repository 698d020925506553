// Package cube holds the cube list model and the rules for adding, merging,
// importing and exporting its entries.
package cube

import (
	"math"
	"strings"
)

const (
	MinQty = 1
	MaxQty = 99
)

// Entry is one row of the cube list.
type Entry struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Qty             int      `json:"qty"`
	Set             string   `json:"set"`
	CollectorNumber string   `json:"collector_number"`
	Rarity          string   `json:"rarity"`
	TypeLine        string   `json:"type_line"`
	ManaCost        string   `json:"mana_cost,omitempty"`
	ManaValue       *float64 `json:"cmc,omitempty"`
	ColorIdentity   []string `json:"color_identity,omitempty"`
	ScryfallURI     string   `json:"scryfall_uri"`
	Image           string   `json:"image,omitempty"`
}

// SameCard reports whether e and other share an id or a name.
func (e Entry) SameCard(other Entry) bool {
	if e.ID != "" && e.ID == other.ID {
		return true
	}
	return e.Name != "" && e.Name == other.Name
}

// Colors returns the color identity symbols concatenated, e.g. "UR".
func (e Entry) Colors() string {
	return strings.Join(e.ColorIdentity, "")
}

// ClampQty limits n to [MinQty, MaxQty].
func ClampQty(n int) int {
	if n < MinQty {
		return MinQty
	}
	if n > MaxQty {
		return MaxQty
	}
	return n
}

// ClampQtyFloat converts an arbitrary number to a quantity. Fractions are
// truncated; NaN, infinities and values below 1 become 1.
func ClampQtyFloat(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinQty {
		return MinQty
	}
	if v > MaxQty {
		return MaxQty
	}
	return int(math.Trunc(v))
}
