// Package search provides a small, deterministic, concurrency-safe in-memory
// search index over orders. It backs the "search my orders" filter of the
// order listing, which works on the cached snapshot and so also offline.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern)
//   - Unicode-aware tokenization with optional stop-word removal
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Each order is indexed as one document made of its number, item names and
// categories, instructions, and status label. Scoring uses Jaccard
// similarity between the query token set and the document token set:
// score = |Q ∩ D| / |Q ∪ D|. A query equal to an order number scores 1.
package search

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tbourn/go-laundry-sync/internal/domain"
	"github.com/tbourn/go-laundry-sync/internal/status"
)

// Result is a matched order with its similarity score.
type Result struct {
	Order domain.Order
	Score float64
}

// Index is the minimal interface implemented by order indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
	minScore  float64
}

func defaultConfig() config {
	return config{}
}

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps how many orders are indexed.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// WithMinScore discards matches scoring below s.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s > 0 {
			c.minScore = s
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	order  domain.Order
	number string
	tokens map[string]struct{}
	tLen   int
}

type index struct {
	cfg  config
	docs []doc
}

// NewOrderIndex builds an Index over orders. Orders with no indexable text
// are skipped.
func NewOrderIndex(orders []domain.Order, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(orders))
	for _, o := range orders {
		toks := tokenize(orderText(o), cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{
			order:  o,
			number: strings.ToLower(strings.TrimSpace(o.Number)),
			tokens: toks,
			tLen:   len(toks),
		})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

// orderText flattens the searchable fields of o.
func orderText(o domain.Order) string {
	parts := make([]string, 0, 3+2*len(o.Items))
	parts = append(parts, o.Number)
	for _, it := range o.Items {
		parts = append(parts, it.Name, it.Category)
	}
	parts = append(parts, o.Instructions)
	if o.Status != "" {
		parts = append(parts, status.DisplayLabel(o.Status))
	}
	return strings.Join(parts, " ")
}

// Len returns the number of indexed orders.
func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching orders; k <= 0 returns every match.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 {
		return nil
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)
	qNumber := strings.ToLower(q)

	buf := make([]Result, 0, len(i.docs))
	for _, d := range i.docs {
		var score float64
		if d.number != "" && d.number == qNumber {
			score = 1
		} else {
			over := overlap(qTokens, d.tokens)
			if over == 0 {
				continue
			}
			union := float64(qLen + d.tLen - over)
			if union <= 0 {
				continue
			}
			score = float64(over) / union
		}
		if score <= 0 || score < i.cfg.minScore {
			continue
		}
		buf = append(buf, Result{Order: d.order, Score: score})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if !buf[a].Order.CreatedAt.Equal(buf[b].Order.CreatedAt) {
			return buf[a].Order.CreatedAt.After(buf[b].Order.CreatedAt)
		}
		return buf[a].Order.ID < buf[b].Order.ID
	})

	if k > 0 && k < len(buf) {
		buf = buf[:k]
	}
	return buf
}

// Filter returns the orders matching q, best first. A blank q returns orders
// unchanged.
func Filter(orders []domain.Order, q string, opts ...Option) []domain.Order {
	if strings.TrimSpace(q) == "" {
		return orders
	}
	rs := NewOrderIndex(orders, opts...).TopK(q, 0)
	out := make([]domain.Order, len(rs))
	for i, r := range rs {
		out[i] = r.Order
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
