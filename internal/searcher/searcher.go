package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/labelreader/labelreader/internal/normalize"
	"github.com/labelreader/labelreader/internal/storage"
	"github.com/labelreader/labelreader/pkg/types"
)

// DefaultLimit caps smart-search results when the request does not set one.
const DefaultLimit = 50

// Relative match weights. Code matches always outrank description matches;
// exact equality on either field dominates everything else.
const (
	scoreExactCode  = 100
	scorePrefixCode = 40
	scoreExactDesc  = 100
	scoreDescToken  = 5
)

// Request contains parameters for a smart search. At least one of Code and
// Description should be set; an empty request yields no results.
type Request struct {
	Code        string
	Description string
	Limit       int
}

// Response contains smart search results and metadata.
type Response struct {
	Results  []types.Product
	Duration time.Duration
	CacheHit bool
}

// Searcher answers exact and smart lookups over the local catalog mirror.
type Searcher struct {
	store storage.Store
	cache *lru.Cache[[32]byte, []types.Product]
}

// New creates a Searcher over the given store.
func New(store storage.Store) *Searcher {
	// Create LRU cache with 1000 entry limit
	cache, err := lru.New[[32]byte, []types.Product](1000)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		store: store,
		cache: cache,
	}
}

// InvalidateCache drops all cached responses. The sync coordinator calls
// this after replacing the catalog.
func (s *Searcher) InvalidateCache() {
	s.cache.Purge()
}

// Exact looks up a code as typed: first as a primary code, then across the
// alias space (inline secondary codes and the alias table). Aliases pointing
// at missing products are skipped. When the query carries characters that
// normalization would change beyond case, a normalized full scan backstops
// the point lookups. Results are deduplicated by primary code; zero, one or
// many matches are all returned as-is.
func (s *Searcher) Exact(ctx context.Context, code string) ([]types.Product, error) {
	code = strings.TrimSpace(code)
	results := []types.Product{}
	if code == "" {
		return results, nil
	}

	seen := make(map[string]bool)
	add := func(p types.Product) {
		if !seen[p.Code] {
			seen[p.Code] = true
			results = append(results, p)
		}
	}

	p, err := s.store.GetProduct(ctx, code)
	switch {
	case err == nil:
		add(*p)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("exact lookup %q: %w", code, err)
	}

	inline, err := s.store.ProductsBySecondaryCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exact alias lookup %q: %w", code, err)
	}
	for _, m := range inline {
		add(m)
	}

	sc, err := s.store.GetSecondaryCode(ctx, code)
	switch {
	case err == nil:
		primary, perr := s.store.GetProduct(ctx, sc.PrimaryCode)
		if perr == nil {
			add(*primary)
		} else if !errors.Is(perr, storage.ErrNotFound) {
			return nil, fmt.Errorf("resolving alias %q: %w", code, perr)
		}
		// Dangling alias: skip, the alias table lags the catalog after a
		// partially applied sync.
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("exact alias lookup %q: %w", code, err)
	}

	if len(results) > 0 || normalize.Normalize(code) == strings.ToLower(code) {
		return results, nil
	}
	if err := s.exactNormalized(ctx, code, add); err != nil {
		return nil, err
	}
	return results, nil
}

// exactNormalized scans both collections comparing normalized codes and
// feeds matches into add. Only reached for queries where normalization
// changes more than letter case.
func (s *Searcher) exactNormalized(ctx context.Context, code string, add func(types.Product)) error {
	nq := normalize.Normalize(code)

	products, err := s.store.ScanProducts(ctx)
	if err != nil {
		return fmt.Errorf("normalized scan: %w", err)
	}
	byCode := make(map[string]types.Product, len(products))
	for _, p := range products {
		byCode[p.Code] = p
		if normalize.Normalize(p.Code) == nq || (p.SecondaryCode != "" && normalize.Normalize(p.SecondaryCode) == nq) {
			add(p)
		}
	}

	aliases, err := s.store.ScanSecondaryCodes(ctx)
	if err != nil {
		return fmt.Errorf("normalized alias scan: %w", err)
	}
	for _, a := range aliases {
		if normalize.Normalize(a.SecondaryCode) != nq {
			continue
		}
		if p, ok := byCode[a.PrimaryCode]; ok {
			add(p)
		}
	}
	return nil
}

// Smart performs a normalized, two-stage search: exact normalized matches
// are exclusive; otherwise prefix matches over the primary and alias code
// spaces form the candidate set, filtered and ranked by description tokens.
// Thirteen-digit numeric queries search the alias space only.
func (s *Searcher) Smart(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	key := cacheKey(req)
	if cached, ok := s.cache.Get(key); ok {
		return &Response{Results: cloneProducts(cached), Duration: time.Since(start), CacheHit: true}, nil
	}

	results, err := s.smartSearch(ctx, req)
	if err != nil {
		return nil, err
	}

	// The cache keeps its own copy: callers own the slices they receive and
	// may mutate them freely.
	s.cache.Add(key, cloneProducts(results))
	return &Response{Results: results, Duration: time.Since(start)}, nil
}

func cloneProducts(products []types.Product) []types.Product {
	out := make([]types.Product, len(products))
	copy(out, products)
	return out
}

func (s *Searcher) smartSearch(ctx context.Context, req Request) ([]types.Product, error) {
	nCode := normalize.Normalize(req.Code)
	nDesc := normalize.Normalize(req.Description)
	if nCode == "" && nDesc == "" {
		return []types.Product{}, nil
	}

	products, err := s.store.ScanProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("smart search scan: %w", err)
	}

	var candidates map[string]*scoredProduct
	if nCode != "" {
		aliases, err := s.store.ScanSecondaryCodes(ctx)
		if err != nil {
			return nil, fmt.Errorf("smart search alias scan: %w", err)
		}
		candidates = s.matchCode(nCode, normalize.IsGTIN(strings.TrimSpace(req.Code)), products, aliases)
	} else {
		// Description-only search ranks the whole catalog.
		candidates = make(map[string]*scoredProduct, len(products))
		for _, p := range products {
			candidates[p.Code] = &scoredProduct{product: p}
		}
	}

	if nDesc != "" {
		filterByDescription(candidates, nDesc)
	}

	return rank(candidates, req.Limit), nil
}

type scoredProduct struct {
	product types.Product
	score   int
}

// matchCode builds the candidate set for a code query. Exact normalized
// matches are exclusive: when any exist, prefix matches are discarded. GTIN
// queries never match against primary codes.
func (s *Searcher) matchCode(nCode string, gtin bool, products []types.Product, aliases []types.SecondaryCode) map[string]*scoredProduct {
	exact := make(map[string]*scoredProduct)
	prefix := make(map[string]*scoredProduct)

	consider := func(p types.Product, candidate string) {
		nc := normalize.Normalize(candidate)
		switch {
		case nc == nCode:
			if _, ok := exact[p.Code]; !ok {
				exact[p.Code] = &scoredProduct{product: p, score: scoreExactCode}
			}
		case strings.HasPrefix(nc, nCode):
			if _, ok := prefix[p.Code]; !ok {
				prefix[p.Code] = &scoredProduct{product: p, score: scorePrefixCode}
			}
		}
	}

	byCode := make(map[string]types.Product, len(products))
	for _, p := range products {
		byCode[p.Code] = p
		if !gtin {
			consider(p, p.Code)
		}
		if p.SecondaryCode != "" {
			consider(p, p.SecondaryCode)
		}
	}
	for _, a := range aliases {
		p, ok := byCode[a.PrimaryCode]
		if !ok {
			continue // dangling alias
		}
		consider(p, a.SecondaryCode)
	}

	if len(exact) > 0 {
		return exact
	}
	return prefix
}

// filterByDescription removes candidates missing any query token and scores
// the survivors.
func filterByDescription(candidates map[string]*scoredProduct, nDesc string) {
	tokens := strings.Fields(nDesc)
	for code, c := range candidates {
		d := normalize.Normalize(c.product.Description)
		matched := true
		for _, tok := range tokens {
			if !strings.Contains(d, tok) {
				matched = false
				break
			}
		}
		if !matched {
			delete(candidates, code)
			continue
		}
		c.score += scoreDescToken * len(tokens)
		if d == nDesc {
			c.score += scoreExactDesc
		}
	}
}

// rank orders candidates by score, breaking ties by primary code for
// deterministic output, and truncates to limit.
func rank(candidates map[string]*scoredProduct, limit int) []types.Product {
	scored := make([]*scoredProduct, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, c)
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].product.Code < scored[j].product.Code
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	results := make([]types.Product, len(scored))
	for i, c := range scored {
		results[i] = c.product
	}
	return results
}

func cacheKey(req Request) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d", req.Code, req.Description, req.Limit)))
}
