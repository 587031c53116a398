// Package feed implements cursor-based infinite pagination shared by all list views.
package feed

import (
	"context"
	"errors"
	"iter"

	"github.com/anonto42/nano-midea/client/internal/models"
)

// ErrExhausted is returned by Pager.Next after the last page
var ErrExhausted = errors.New("feed exhausted")

// FetchFunc fetches the page after cursor; the first page has cursor ""
type FetchFunc[T any] func(ctx context.Context, cursor string) (models.Page[T], error)

// Pager runs the cursor protocol for one sequence of pages. It is not safe for
// concurrent use; Feed adds the locking and de-duplication a view needs.
type Pager[T any] struct {
	fetch     FetchFunc[T]
	capped    bool
	cursor    string
	fetched   int
	exhausted bool
}

// NewPager returns a pager positioned before the first page. A capped pager
// stops after its first fetch.
func NewPager[T any](fetch FetchFunc[T], capped bool) *Pager[T] {
	return &Pager[T]{fetch: fetch, capped: capped}
}

// Next fetches the page after the current cursor. A page with no cursor means
// the backend returned nothing, which exhausts the pager.
func (p *Pager[T]) Next(ctx context.Context) (models.Page[T], error) {
	if p.exhausted {
		return models.Page[T]{}, ErrExhausted
	}
	page, err := p.fetch(ctx, p.cursor)
	if err != nil {
		return models.Page[T]{}, err
	}
	p.fetched++
	if page.Cursor == "" || p.capped {
		p.exhausted = true
	} else {
		p.cursor = page.Cursor
	}
	return page, nil
}

// Cursor is the cursor the next fetch will use
func (p *Pager[T]) Cursor() string { return p.cursor }

// Exhausted reports whether the last page has been fetched
func (p *Pager[T]) Exhausted() bool { return p.exhausted }

// Fetched is the number of successful fetches so far
func (p *Pager[T]) Fetched() int { return p.fetched }

// Pages lazily yields non-empty pages from the start of the sequence. Each
// iteration uses its own cursor state, so ranging twice restarts from empty.
func (p *Pager[T]) Pages(ctx context.Context) iter.Seq2[models.Page[T], error] {
	return func(yield func(models.Page[T], error) bool) {
		run := NewPager(p.fetch, p.capped)
		for !run.Exhausted() {
			page, err := run.Next(ctx)
			if err != nil {
				yield(page, err)
				return
			}
			if len(page.Items) == 0 && page.Cursor == "" {
				return
			}
			if !yield(page, nil) {
				return
			}
		}
	}
}
