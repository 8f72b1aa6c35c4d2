package token

import (
	"sync"
	"testing"
	"time"
)

func TestGetTokenMintsOnce(t *testing.T) {
	m := NewManager([]byte("secret"))

	first, err := m.GetToken()
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	second, err := m.GetToken()
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if first.Raw != second.Raw {
		t.Fatal("expected cached token to be reused before expiry")
	}
}

// TestConcurrentRefresh runs 50 concurrent GetToken calls while the cached
// token has 30s left and safetyMargin=60s; exactly one new token must be
// minted, and every caller must observe a token valid for at least the
// safety margin.
func TestConcurrentRefresh(t *testing.T) {
	fixedNow := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager([]byte("secret"),
		WithSafetyMargin(60*time.Second),
		withClock(func() time.Time { return fixedNow }),
	)

	// Seed a cached token with exactly 30s left, inside the safety margin.
	m.cached = &Token{Raw: "stale", ExpiresAt: fixedNow.Add(30 * time.Second)}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Token
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.GetToken()
			if err != nil {
				t.Errorf("GetToken: %v", err)
				return
			}
			mu.Lock()
			results = append(results, tok)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(results) != 50 {
		t.Fatalf("got %d results, want 50", len(results))
	}
	first := results[0].Raw
	for _, r := range results {
		if r.Raw != first {
			t.Fatal("expected exactly one token minted across concurrent callers")
		}
		if r.ExpiresAt.Sub(fixedNow) < 60*time.Second {
			t.Fatalf("token expires too soon: %v left, want >= safety margin", r.ExpiresAt.Sub(fixedNow))
		}
	}
	if first == "stale" {
		t.Fatal("expected the stale token to be refreshed")
	}
}
