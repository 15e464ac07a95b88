package consensus

import (
	"testing"
	"time"

	"sealevel/backend/internal/consensus/contract"
)

func cacheReq(prompt string) *contract.ConsensusRequest {
	return &contract.ConsensusRequest{ID: "req-" + prompt, Prompt: prompt, CreatedAt: time.Now()}
}

func sampleResult(id string) *contract.ConsensusResult {
	return &contract.ConsensusResult{
		ID:        id,
		Consensus: true,
		Agreement: 100,
		Majority:  "answer",
		Minority:  []string{"other"},
		Responses: []contract.ProviderResponse{
			{Provider: "a", Text: "answer", Metadata: map[string]string{"finish_reason": "stop"}},
		},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set(cacheReq("what is go"), sampleResult("r1"), 0)

	got, ok := cache.Get(cacheReq("what is go"))
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.ID != "r1" || got.Majority != "answer" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if _, ok := cache.Get(cacheReq("something else")); ok {
		t.Fatalf("expected miss for unknown prompt")
	}
}

func TestCacheFingerprintNormalization(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set(cacheReq("  Hello   WORLD "), sampleResult("r1"), 0)
	if _, ok := cache.Get(cacheReq("hello world")); !ok {
		t.Fatalf("case and whitespace variants should share an entry")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set(cacheReq("prompt"), sampleResult("r1"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get(cacheReq("prompt")); ok {
		t.Fatalf("expected expired entry to miss")
	}
	stats := cache.Stats()
	if stats.Evictions != 1 || stats.Misses != 1 {
		t.Fatalf("expected lazy eviction counted, got %+v", stats)
	}
	if stats.Entries != 0 {
		t.Fatalf("expired entry should be removed, got %d", stats.Entries)
	}
}

func TestCacheCleanup(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set(cacheReq("a"), sampleResult("r1"), 10*time.Millisecond)
	cache.Set(cacheReq("b"), sampleResult("r2"), 10*time.Millisecond)
	cache.Set(cacheReq("c"), sampleResult("r3"), time.Minute)
	time.Sleep(20 * time.Millisecond)

	if removed := cache.Cleanup(); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if stats := cache.Stats(); stats.Entries != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", stats.Entries)
	}
}

func TestCacheCloneIsolation(t *testing.T) {
	cache := NewCache(time.Minute)
	original := sampleResult("r1")
	cache.Set(cacheReq("prompt"), original, 0)

	original.Majority = "mutated after store"
	original.Minority[0] = "mutated"

	first, ok := cache.Get(cacheReq("prompt"))
	if !ok {
		t.Fatalf("expected hit")
	}
	if first.Majority != "answer" || first.Minority[0] != "other" {
		t.Fatalf("stored entry should not share memory with the caller's result")
	}

	first.Metadata.CacheHit = true
	first.Responses[0].Metadata["finish_reason"] = "mutated"

	second, ok := cache.Get(cacheReq("prompt"))
	if !ok {
		t.Fatalf("expected hit")
	}
	if second.Metadata.CacheHit {
		t.Fatalf("patched copy should not leak back into the cache")
	}
	if second.Responses[0].Metadata["finish_reason"] != "stop" {
		t.Fatalf("response metadata should be copied per hit")
	}
}

func TestCacheFlush(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set(cacheReq("a"), sampleResult("r1"), 0)
	cache.Set(cacheReq("b"), sampleResult("r2"), 0)
	cache.Flush()
	if stats := cache.Stats(); stats.Entries != 0 {
		t.Fatalf("expected empty cache after flush, got %d", stats.Entries)
	}
}

func TestCacheStatsCounters(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Get(cacheReq("missing"))
	cache.Set(cacheReq("prompt"), sampleResult("r1"), 0)
	cache.Get(cacheReq("prompt"))
	cache.Get(cacheReq("prompt"))

	stats := cache.Stats()
	if stats.Hits != 2 {
		t.Fatalf("expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.Entries != 1 {
		t.Fatalf("expected 1 entry, got %d", stats.Entries)
	}
}

func TestCacheIgnoresNilResult(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set(cacheReq("prompt"), nil, 0)
	if _, ok := cache.Get(cacheReq("prompt")); ok {
		t.Fatalf("nil results must not be stored")
	}
}
