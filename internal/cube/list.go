package cube

import "fmt"

// List is an insertion-ordered set of entries in which no two entries share
// an id or a name. The zero value is an empty list ready to use.
type List struct {
	entries []Entry
}

// NewList builds a list from entries, folding duplicates together the same
// way Merge does.
func NewList(entries []Entry) *List {
	l := &List{}
	l.Merge(entries)
	return l
}

// Entries returns a copy of the entries in insertion order.
func (l *List) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of distinct cards.
func (l *List) Len() int {
	return len(l.entries)
}

// TotalQty returns the sum of all quantities.
func (l *List) TotalQty() int {
	total := 0
	for _, e := range l.entries {
		total += e.Qty
	}
	return total
}

// Get returns the entry with the given id.
func (l *List) Get(id string) (Entry, bool) {
	if i := l.indexByID(id); i >= 0 {
		return l.entries[i], true
	}
	return Entry{}, false
}

// Add adds qty copies of entry. When an entry with the same id or name
// already exists its quantity is increased, capped at MaxQty; otherwise the
// entry is appended. qty is clamped to [MinQty, MaxQty] first. Returns the
// stored entry.
func (l *List) Add(entry Entry, qty int) Entry {
	qty = ClampQty(qty)

	if i := l.indexOf(entry); i >= 0 {
		l.entries[i].Qty = ClampQty(l.entries[i].Qty + qty)
		return l.entries[i]
	}

	entry.Qty = qty
	l.entries = append(l.entries, entry)
	return entry
}

// SetQuantity sets the quantity of the entry with the given id. Any numeric
// input is accepted and coerced with ClampQtyFloat. Returns false when id is
// not in the list.
func (l *List) SetQuantity(id string, value float64) (Entry, bool) {
	i := l.indexByID(id)
	if i < 0 {
		return Entry{}, false
	}
	l.entries[i].Qty = ClampQtyFloat(value)
	return l.entries[i], true
}

// Remove drops the entry with the given id. Removing an unknown id is a
// no-op and returns false.
func (l *List) Remove(id string) bool {
	i := l.indexByID(id)
	if i < 0 {
		return false
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return true
}

// Replace discards the current entries and installs entries in their place.
func (l *List) Replace(entries []Entry) {
	l.entries = nil
	l.Merge(entries)
}

// Merge folds entries into the list: an entry sharing an id or name with an
// existing one adds its quantity (capped at MaxQty), anything else is
// appended. Existing entries keep their position.
func (l *List) Merge(entries []Entry) {
	for _, e := range entries {
		if i := l.indexOf(e); i >= 0 {
			l.entries[i].Qty = ClampQty(l.entries[i].Qty + e.Qty)
			continue
		}
		e.Qty = ClampQty(e.Qty)
		l.entries = append(l.entries, e)
	}
}

func (l *List) indexOf(entry Entry) int {
	for i, e := range l.entries {
		if e.SameCard(entry) {
			return i
		}
	}
	return -1
}

func (l *List) indexByID(id string) int {
	for i, e := range l.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Import installs parsed import entries according to mode.
func (l *List) Import(entries []Entry, mode ImportMode) error {
	switch mode {
	case ImportReplace:
		l.Replace(entries)
	case ImportMerge:
		l.Merge(entries)
	default:
		return fmt.Errorf("unknown import mode %q", mode)
	}
	return nil
}
