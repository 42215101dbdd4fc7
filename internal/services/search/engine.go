package search

import (
	"context"
	"log/slog"

	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/pkg/errors"
)

const DefaultPageLimit = 500

type Searcher interface {
	SearchClaims(ctx context.Context, req cargo.SearchRequest) (cargo.SearchPage, error)
}

type Options struct {
	CollectDuplicates bool
	CollectSorting    bool
}

// SortingRow maps a parcel barcode to the route it rides on.
type SortingRow struct {
	ExternalOrderID string `json:"external_order_id"`
	RouteID         string `json:"route_id"`
}

type Result struct {
	ClaimIDs   []string     `json:"claim_ids"`
	Duplicates []string     `json:"duplicates,omitempty"`
	Sorting    []SortingRow `json:"sorting,omitempty"`
}

type Engine struct {
	api       Searcher
	pageLimit int
}

func New(api Searcher) *Engine {
	return &Engine{api: api, pageLimit: DefaultPageLimit}
}

func (e *Engine) WithPageLimit(n int) *Engine {
	if n > 0 {
		e.pageLimit = n
	}
	return e
}

// collector accumulates matches of one Search call across passes.
type collector struct {
	opts Options
	res  Result
	seen map[string]struct{}
}

func (c *collector) add(cl models.Claim) {
	c.res.ClaimIDs = append(c.res.ClaimIDs, cl.ID)
	ext, hasExt := cl.PickupExternalOrderID()

	if c.opts.CollectDuplicates && hasExt {
		if _, dup := c.seen[ext]; dup {
			c.res.Duplicates = append(c.res.Duplicates, ext)
		}
		c.seen[ext] = struct{}{}
	}
	if c.opts.CollectSorting && cl.RouteID != nil {
		c.res.Sorting = append(c.res.Sorting, SortingRow{ExternalOrderID: ext, RouteID: *cl.RouteID})
	}
}

// Search pages through the claim index once per status of f (or once when
// no status is set) and returns claims passing every predicate of f.
func (e *Engine) Search(ctx context.Context, f Filter, opts Options) (Result, error) {
	c := &collector{opts: opts, seen: map[string]struct{}{}}
	preds := f.Predicates()

	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = []models.ClaimStatus{""}
	}
	for _, st := range statuses {
		if err := ctx.Err(); err != nil {
			return c.res, err
		}
		if err := e.pass(ctx, st, preds, c); err != nil {
			return c.res, errors.Wrapf(err, "search pass status=%q", st)
		}
	}

	if len(c.res.ClaimIDs) == 0 {
		slog.Info("no claims were found")
	}
	return c.res, nil
}

func (e *Engine) pass(ctx context.Context, status models.ClaimStatus, preds []Predicate, c *collector) error {
	req := cargo.FirstPage(e.pageLimit)
	req.Status = string(status)
	cursors := map[string]struct{}{}

	for page := 1; ; page++ {
		res, err := e.api.SearchClaims(ctx, req)
		if err != nil {
			return err
		}
		if !res.HasClaims {
			return nil
		}

		matched := 0
		for _, cl := range res.Claims {
			if !matchAll(preds, cl) {
				continue
			}
			matched++
			c.add(cl)
		}
		slog.Debug("search page", "status", string(status), "page", page, "claims", len(res.Claims), "matched", matched)

		// Страница без совпадений завершает проход, даже если есть курсор.
		if matched == 0 || res.Cursor == "" {
			return nil
		}
		if _, again := cursors[res.Cursor]; again {
			slog.Warn("search cursor repeated, stopping pass", "status", string(status), "cursor", res.Cursor)
			return nil
		}
		cursors[res.Cursor] = struct{}{}
		req = cargo.SearchRequest{Cursor: res.Cursor}
	}
}
