package scryfall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientOptions{
		BaseURL:      server.URL,
		RateInterval: time.Millisecond,
	})
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientOptions{})

	if client.httpClient == nil {
		t.Error("httpClient is nil")
	}
	if client.rateLimiter == nil {
		t.Error("rateLimiter is nil")
	}
	if client.baseURL != DefaultBaseURL {
		t.Errorf("Expected base URL %s, got %s", DefaultBaseURL, client.baseURL)
	}
	if client.userAgent == "" {
		t.Error("userAgent is empty")
	}
}

func TestClient_RateLimiting(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"catalog","data":[]}`))
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseURL: server.URL, RateInterval: 50 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Autocomplete(ctx, "Li"); err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
	}
	elapsed := time.Since(start)

	if requestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", requestCount)
	}

	// 2 delays of 50ms between 3 requests
	if minDuration := 100 * time.Millisecond; elapsed < minDuration {
		t.Errorf("Rate limiting not working: completed 3 requests in %v (expected >= %v)", elapsed, minDuration)
	}
}

func TestClient_Autocomplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/autocomplete" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "Light" {
			t.Errorf("Expected q=Light, got %q", q.Get("q"))
		}
		if q.Get("include_extras") != "false" || q.Get("include_multilingual") != "false" {
			t.Errorf("Expected extras and multilingual excluded, got %v", q)
		}
		_, _ = w.Write([]byte(`{"object":"catalog","total_values":2,"data":["Lightning Bolt","Lightning Strike"]}`))
	})

	names, err := client.Autocomplete(context.Background(), "Light")
	if err != nil {
		t.Fatalf("Autocomplete failed: %v", err)
	}

	if len(names) != 2 || names[0] != "Lightning Bolt" || names[1] != "Lightning Strike" {
		t.Errorf("Unexpected suggestions: %v", names)
	}
}

func TestClient_AutocompleteNonSuccessIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","code":"bad_request","status":400,"details":"nope"}`))
	})

	names, err := client.Autocomplete(context.Background(), "Li")
	if err != nil {
		t.Fatalf("Expected no error for non-success status, got %v", err)
	}
	if names == nil || len(names) != 0 {
		t.Errorf("Expected empty, non-nil suggestions, got %#v", names)
	}
}

func TestClient_AutocompleteInvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{invalid json}`))
	})

	_, err := client.Autocomplete(context.Background(), "Li")
	if err == nil {
		t.Fatal("Expected error for invalid JSON, got nil")
	}

	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("Expected *LookupError, got %T", err)
	}
	if le.HasStatus() {
		t.Errorf("Expected no upstream status for decode failure, got %d", le.Status)
	}
}

func TestClient_FetchExact(t *testing.T) {
	var mu sync.Mutex
	var modes []string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		if r.URL.Query().Get("exact") != "" {
			modes = append(modes, "exact")
		}
		if r.URL.Query().Get("fuzzy") != "" {
			modes = append(modes, "fuzzy")
		}
		_, _ = w.Write([]byte(`{"id":"bolt-id","oracle_id":"bolt-oracle","name":"Lightning Bolt","lang":"en","cmc":1.0,"type_line":"Instant"}`))
	})

	card, err := client.FetchExact(context.Background(), "Lightning Bolt")
	if err != nil {
		t.Fatalf("FetchExact failed: %v", err)
	}

	if card.Name != "Lightning Bolt" {
		t.Errorf("Expected card name 'Lightning Bolt', got '%s'", card.Name)
	}
	if card.CMC == nil || *card.CMC != 1 {
		t.Errorf("Expected cmc 1, got %v", card.CMC)
	}
	if len(modes) != 1 || modes[0] != "exact" {
		t.Errorf("Expected a single exact lookup, got %v", modes)
	}
}

func TestClient_FetchExactFallsBackToFuzzy(t *testing.T) {
	var modes []string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("exact") != "":
			modes = append(modes, "exact:"+q.Get("exact"))
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error","code":"not_found","status":404,"details":"No card found"}`))
		case q.Get("fuzzy") != "":
			modes = append(modes, "fuzzy:"+q.Get("fuzzy"))
			_, _ = w.Write([]byte(`{"id":"bolt-id","name":"Lightning Bolt"}`))
		}
	})

	card, err := client.FetchExact(context.Background(), "lightning blt")
	if err != nil {
		t.Fatalf("FetchExact failed: %v", err)
	}

	if card.Name != "Lightning Bolt" {
		t.Errorf("Expected fuzzy match 'Lightning Bolt', got '%s'", card.Name)
	}
	if len(modes) != 2 || modes[0] != "exact:lightning blt" || modes[1] != "fuzzy:lightning blt" {
		t.Errorf("Expected exact then fuzzy with the same name, got %v", modes)
	}
}

func TestClient_FetchExactBothFail(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"object":"error","code":"not_found","status":404,"details":"No card found"}`))
	})

	_, err := client.FetchExact(context.Background(), "Fulmine")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !IsNotFound(err) {
		t.Errorf("Expected not-found lookup error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected exactly 2 attempts, got %d", attempts)
	}
}

func TestClient_Search(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/search" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("unique") != "prints" {
			t.Errorf("Expected unique=prints, got %q", q.Get("unique"))
		}
		if q.Get("q") != `lang:it !"Fulmine"` {
			t.Errorf("Unexpected query: %q", q.Get("q"))
		}
		_, _ = w.Write([]byte(`{"object":"list","total_cards":1,"has_more":false,"data":[{"id":"it-1","oracle_id":"X","lang":"it","name":"Lightning Bolt","printed_name":"Fulmine"}]}`))
	})

	cards, err := client.Search(context.Background(), `lang:it !"Fulmine"`)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(cards) != 1 {
		t.Fatalf("Expected 1 card, got %d", len(cards))
	}
	if cards[0].LocalizedName() != "Fulmine" {
		t.Errorf("Expected printed name 'Fulmine', got %q", cards[0].LocalizedName())
	}
}

func TestClient_SearchNoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"object":"error","code":"not_found","status":404,"details":"Your query didn't match any cards."}`))
	})

	cards, err := client.Search(context.Background(), `lang:it "Nulla"`)
	if err != nil {
		t.Fatalf("Expected no error for empty search, got %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("Expected no cards, got %d", len(cards))
	}
}

func TestClient_SearchServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"object":"error","code":"unavailable","status":503,"details":"Down for maintenance"}`))
	})

	_, err := client.Search(context.Background(), "bolt")

	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("Expected *LookupError, got %T (%v)", err, err)
	}
	if le.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", le.Status)
	}
	if le.Details != "Down for maintenance" {
		t.Errorf("Expected upstream details, got %q", le.Details)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"object":"catalog","data":[]}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Autocomplete(ctx, "Li")
	if err == nil {
		t.Fatal("Expected error for cancelled context, got nil")
	}
}
