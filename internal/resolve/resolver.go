// Package resolve turns free-text card names into a single canonical card,
// a short list of candidates to choose from, or a not-found error. Names are
// tried in the primary language first, then in a secondary language whose
// matches are mapped back to their primary-language printing.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ramonehamilton/cube-builder/internal/scryfall"
)

const (
	DefaultPrimaryLang   = "en"
	DefaultSecondaryLang = "it"
	DefaultMaxCandidates = 8
)

var (
	// ErrEmptyInput is returned for blank input.
	ErrEmptyInput = errors.New("enter a card name")
	// ErrNotFound is returned when no usable card matches the input.
	ErrNotFound = errors.New("card not found")
	// ErrNoCanonical is returned when a translated printing has no
	// primary-language equivalent. It also matches ErrNotFound.
	ErrNoCanonical = fmt.Errorf("%w: translated printing found but no canonical equivalent", ErrNotFound)
)

// Lookup is the subset of the Scryfall client the resolver needs.
type Lookup interface {
	FetchExact(ctx context.Context, name string) (*scryfall.Card, error)
	Search(ctx context.Context, expr string) ([]scryfall.Card, error)
}

// Kind tells which shape an Outcome has.
type Kind int

const (
	// Resolved carries a single card.
	Resolved Kind = iota + 1
	// Ambiguous carries candidates for the user to pick from.
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Candidate is one secondary-language match awaiting a choice.
type Candidate struct {
	OracleID      string
	LocalizedName string
	Card          scryfall.Card
}

// Outcome is the result of a successful resolution.
type Outcome struct {
	Kind Kind

	// Set when Kind is Resolved.
	Card                  *scryfall.Card
	MatchedDirectly       bool
	MatchedViaTranslation bool
	LocalizedName         string

	// Set when Kind is Ambiguous, in upstream order.
	Candidates []Candidate
}

// Options configures a Resolver.
type Options struct {
	PrimaryLang   string
	SecondaryLang string
	MaxCandidates int
	Logger        *slog.Logger
}

// DefaultOptions returns English primary, Italian secondary, 8 candidates.
func DefaultOptions() Options {
	return Options{
		PrimaryLang:   DefaultPrimaryLang,
		SecondaryLang: DefaultSecondaryLang,
		MaxCandidates: DefaultMaxCandidates,
	}
}

// Resolver resolves user input against a Lookup.
type Resolver struct {
	lookup        Lookup
	primaryLang   string
	secondaryLang string
	maxCandidates int
	logger        *slog.Logger
}

// New creates a Resolver. Zero-valued options fall back to DefaultOptions.
func New(lookup Lookup, options Options) *Resolver {
	defaults := DefaultOptions()
	if options.PrimaryLang == "" {
		options.PrimaryLang = defaults.PrimaryLang
	}
	if options.SecondaryLang == "" {
		options.SecondaryLang = defaults.SecondaryLang
	}
	if options.MaxCandidates <= 0 {
		options.MaxCandidates = defaults.MaxCandidates
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Resolver{
		lookup:        lookup,
		primaryLang:   options.PrimaryLang,
		secondaryLang: options.SecondaryLang,
		maxCandidates: options.MaxCandidates,
		logger:        options.Logger,
	}
}

// Resolve looks up input. It returns a Resolved or Ambiguous outcome, or an
// error matching ErrEmptyInput, ErrNotFound, or a *scryfall.LookupError when
// the secondary search itself failed.
func (r *Resolver) Resolve(ctx context.Context, input string) (*Outcome, error) {
	name := strings.TrimSpace(input)
	if name == "" {
		return nil, ErrEmptyInput
	}

	card, err := r.lookup.FetchExact(ctx, name)
	if err == nil {
		return &Outcome{Kind: Resolved, Card: card, MatchedDirectly: true}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	r.logger.Debug("primary lookup failed, trying secondary language", "name", name, "lang", r.secondaryLang, "error", err)

	results, err := r.searchSecondary(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no card named %q in %s or %s; check the spelling or pick a suggestion",
			ErrNotFound, name, r.primaryLang, r.secondaryLang)
	}

	candidates := r.candidates(results)
	if len(candidates) == 1 {
		return r.Pick(ctx, candidates[0])
	}
	return &Outcome{Kind: Ambiguous, Candidates: candidates}, nil
}

// Pick maps a secondary-language candidate to its primary-language printing
// through its oracle id.
func (r *Resolver) Pick(ctx context.Context, candidate Candidate) (*Outcome, error) {
	if candidate.OracleID == "" {
		return nil, fmt.Errorf("%w (%s)", ErrNoCanonical, candidate.LocalizedName)
	}

	cards, err := r.lookup.Search(ctx, OracleQuery(candidate.OracleID, r.primaryLang))
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w (%s)", ErrNoCanonical, candidate.LocalizedName)
	}

	card := cards[0]
	return &Outcome{
		Kind:                  Resolved,
		Card:                  &card,
		MatchedViaTranslation: true,
		LocalizedName:         candidate.LocalizedName,
	}, nil
}

// searchSecondary tries the exact-phrase query, then the loose one, and
// returns the first non-empty result.
func (r *Resolver) searchSecondary(ctx context.Context, name string) ([]scryfall.Card, error) {
	for _, query := range []string{
		ExactPhraseQuery(r.secondaryLang, name),
		PhraseQuery(r.secondaryLang, name),
	} {
		cards, err := r.lookup.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(cards) > 0 {
			return cards, nil
		}
	}
	return nil, nil
}

// candidates dedupes by (oracle id, localized name) in upstream order and
// caps the list.
func (r *Resolver) candidates(cards []scryfall.Card) []Candidate {
	type key struct{ oracleID, name string }

	seen := make(map[key]bool, len(cards))
	out := make([]Candidate, 0, min(len(cards), r.maxCandidates))
	for _, card := range cards {
		k := key{oracleID: card.OracleID, name: card.LocalizedName()}
		if seen[k] {
			continue
		}
		seen[k] = true

		out = append(out, Candidate{OracleID: card.OracleID, LocalizedName: k.name, Card: card})
		if len(out) == r.maxCandidates {
			break
		}
	}
	return out
}
