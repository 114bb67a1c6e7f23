package geocode

import (
	"context"
	"sync"

	"github.com/example/ewaste-pickup/internal/models"
	"github.com/example/ewaste-pickup/internal/observability"
)

// SearchSession serializes search-as-you-type against a Resolver.
// Completions arrive in any order; only the one tagged with the most
// recently issued query is delivered, so a slow stale response can
// never overwrite a fresh one.
type SearchSession struct {
	resolver Resolver
	apply    func(query string, results []models.AddressCandidate)

	mu  sync.Mutex
	seq uint64
	cur string
}

// NewSearchSession builds a session delivering accepted results to
// apply. apply runs on the completing goroutine, one call at a time.
func NewSearchSession(r Resolver, apply func(string, []models.AddressCandidate)) *SearchSession {
	return &SearchSession{resolver: r, apply: apply}
}

// Ticket tags one in-flight search with the input that triggered it.
type Ticket struct {
	Query string
	seq   uint64
}

// Begin registers query as the latest input and returns its ticket.
// Any ticket issued earlier becomes stale immediately.
func (s *SearchSession) Begin(query string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.cur = query
	observability.SearchesIssued.Inc()
	return Ticket{Query: query, seq: s.seq}
}

// Deliver hands a completion to the session. It reports whether the
// results were applied; stale tickets are discarded.
func (s *SearchSession) Deliver(t Ticket, results []models.AddressCandidate) bool {
	s.mu.Lock()
	if t.seq != s.seq {
		s.mu.Unlock()
		observability.SearchesDiscarded.Inc()
		return false
	}
	s.mu.Unlock()
	s.apply(t.Query, results)
	return true
}

// Current returns the latest registered query.
func (s *SearchSession) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Submit issues the search asynchronously: short queries resolve to an
// empty candidate list without a network call, and resolver failures
// degrade to an empty list for the same ticket.
func (s *SearchSession) Submit(ctx context.Context, query string) Ticket {
	t := s.Begin(query)
	go func() {
		results, err := s.resolver.Search(ctx, query)
		if err != nil {
			results = nil
		}
		s.Deliver(t, results)
	}()
	return t
}
