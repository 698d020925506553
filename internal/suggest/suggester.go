// Package suggest provides search-as-you-type name suggestions on top of the
// Scryfall autocomplete endpoint.
package suggest

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bep/debounce"
)

const (
	DefaultDebounce  = 250 * time.Millisecond
	DefaultMinPrefix = 2
	DefaultTimeout   = 10 * time.Second
)

// Autocompleter returns full card names for a prefix.
type Autocompleter interface {
	Autocomplete(ctx context.Context, prefix string) ([]string, error)
}

// Result is a batch of suggestions for Prefix. Names is never nil when Err is nil.
type Result struct {
	Prefix string
	Names  []string
	Err    error
}

// Options configures a Suggester.
type Options struct {
	Debounce  time.Duration
	MinPrefix int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Suggester debounces prefix requests, caches answers for the lifetime of the
// value, and drops responses that a newer request has superseded.
type Suggester struct {
	source    Autocompleter
	deliver   func(Result)
	debounced func(func())
	minPrefix int
	timeout   time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	cache      map[string][]string
	generation uint64
	closed     bool
	wg         sync.WaitGroup
}

// New creates a Suggester that calls deliver with each result.
func New(source Autocompleter, deliver func(Result), options Options) *Suggester {
	if options.Debounce <= 0 {
		options.Debounce = DefaultDebounce
	}
	if options.MinPrefix <= 0 {
		options.MinPrefix = DefaultMinPrefix
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Suggester{
		source:    source,
		deliver:   deliver,
		debounced: debounce.New(options.Debounce),
		minPrefix: options.MinPrefix,
		timeout:   options.Timeout,
		logger:    options.Logger,
		ctx:       ctx,
		cancel:    cancel,
		cache:     make(map[string][]string),
	}
}

// CacheKey normalizes a prefix for cache lookups.
func CacheKey(prefix string) string {
	return strings.ToLower(strings.TrimSpace(prefix))
}

// Request asks for suggestions for prefix. Short prefixes and cache hits are
// answered synchronously; everything else waits for the quiet period.
func (s *Suggester) Request(prefix string) {
	text := strings.TrimSpace(prefix)
	key := CacheKey(text)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation

	if utf8.RuneCountInString(text) < s.minPrefix {
		s.mu.Unlock()
		s.deliver(Result{Prefix: text, Names: []string{}})
		return
	}
	if names, ok := s.cache[key]; ok {
		s.mu.Unlock()
		s.deliver(Result{Prefix: text, Names: clone(names)})
		return
	}
	s.mu.Unlock()

	s.debounced(func() { s.fetch(text, key, gen) })
}

// Cached returns the stored answer for prefix without a lookup.
func (s *Suggester) Cached(prefix string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, ok := s.cache[CacheKey(prefix)]
	if !ok {
		return nil, false
	}
	return clone(names), true
}

// Close stops delivery and waits for any in-flight lookup to return.
func (s *Suggester) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Suggester) fetch(text, key string, gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	names, err := s.source.Autocomplete(ctx, text)

	s.mu.Lock()
	if err == nil {
		if names == nil {
			names = []string{}
		}
		s.cache[key] = clone(names)
	}
	current := !s.closed && gen == s.generation
	s.mu.Unlock()

	if !current {
		s.logger.Debug("Dropping stale suggestions", "prefix", text)
		return
	}
	if err != nil {
		s.logger.Warn("Autocomplete failed", "prefix", text, "error", err)
		s.deliver(Result{Prefix: text, Err: err})
		return
	}
	s.deliver(Result{Prefix: text, Names: names})
}

func clone(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}
