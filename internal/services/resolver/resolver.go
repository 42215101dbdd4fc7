package resolver

import (
	"context"
	"log/slog"

	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/models"
)

const (
	lookupLimit = 5
	// maxRoutePoints отсекает мультиточечные заявки, где номер заказа
	// встречается на доставке, а не на заборе.
	maxRoutePoints = 3
)

type Searcher interface {
	SearchClaims(ctx context.Context, req cargo.SearchRequest) (cargo.SearchPage, error)
}

// Resolver maps operator tokens to canonical claim ids.
type Resolver struct {
	api Searcher
}

func New(api Searcher) *Resolver {
	return &Resolver{api: api}
}

// IsCanonical reports whether token is already a claim id.
func IsCanonical(token string) bool {
	return models.IsCanonicalID(token)
}

// Resolve returns the claim id for token. Canonical ids are returned as is;
// external order ids are looked up, the last small claim among the matches wins.
func (r *Resolver) Resolve(ctx context.Context, token string) (string, bool) {
	if IsCanonical(token) {
		return token, true
	}

	req := cargo.FirstPage(lookupLimit)
	req.ExternalOrderID = token
	page, err := r.api.SearchClaims(ctx, req)
	if err != nil {
		slog.Debug("resolve claim", "token", token, "error", err.Error())
		return "", false
	}

	var id string
	for _, c := range page.Claims {
		if len(c.RoutePoints) <= maxRoutePoints {
			id = c.ID
		}
	}
	if id == "" {
		slog.Debug("resolve claim: no match", "token", token, "claims", len(page.Claims))
		return "", false
	}
	return id, true
}
