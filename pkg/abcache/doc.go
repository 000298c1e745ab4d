// Package abcache serves per-tenant A/B experiment configuration from an
// in-process cache and assigns users to variants deterministically.
//
// A Service loads a tenant's mee group id, experiments and variants from a
// Gateway (MySQL, Redis or in-memory), parses them into an immutable
// ExperimentSet and keeps the most recently used sets in an LRU cache.
// Concurrent misses for one tenant share a single load. With the cache
// disabled every call reads the gateway and returns identical results.
//
// # Quick Start
//
//	svc, err := abcache.NewFromFile("abcache.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	variant, ok, err := svc.VariantForUser(ctx, "shop", "user-42", 7)
//
// # Bucketing
//
// A user's score for an experiment is derived from the MD5 digest of the
// user id followed by the experiment id and lies in [0,100). The first
// variant whose half-open range contains the score is assigned:
//
//	score := abcache.Score("user-42", "7")
//
// Scores never depend on process state, so every instance assigns the same
// user to the same variant.
//
// # Invalidation
//
// Invalidate drops one tenant, InvalidateAll drops every tenant and Reload
// re-reads every tenant the gateway lists. A tenant whose reload fails keeps
// its previous set.
//
// # Resilience
//
// Gateway calls run behind a circuit breaker, retry with exponential
// backoff and a bulkhead. Disable them with WithoutResilience or through
// the circuitBreaker, retry and bulkhead config sections.
//
// # Observability
//
// Stats returns the cache counters and MetricsSnapshot the tracked metrics.
// Enable metrics.prometheus to register collectors, or metrics.datadog to
// publish to a statsd agent:
//
//	reg := prometheus.NewRegistry()
//	svc, err := abcache.NewFromConfig(cfg, abcache.WithRegisterer(reg))
//
// # Testing
//
// NewMemoryGateway returns an in-process gateway:
//
//	gw := abcache.NewMemoryGateway()
//	gw.PutTenant("shop", abcache.TenantData{...})
//	svc, err := abcache.NewFromConfig(abcache.TestConfig(), abcache.WithGateway(gw))
package abcache
