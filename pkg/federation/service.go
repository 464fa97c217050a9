package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/developmentseed/stac-collection-federator/pkg/cursor"
	"github.com/developmentseed/stac-collection-federator/pkg/logging"
	"github.com/developmentseed/stac-collection-federator/pkg/stac"
	"github.com/developmentseed/stac-collection-federator/pkg/upstream"
)

// ErrFederationUnavailable is returned when every source fails on the first
// page. Later pages with all sources failing still return an empty page:
// at that point partial data has flowed and failure is a degradation.
var ErrFederationUnavailable = errors.New("federation unavailable: all upstream sources failed")

// Page size bounds applied when the caller gives none.
const (
	DefaultLimit = 10
	MaxLimit     = 1000
)

// Options configures the service facade.
type Options struct {
	// DefaultLimit is applied when the request carries no limit.
	DefaultLimit int

	// MaxLimit caps the requested limit.
	MaxLimit int
}

// Service is the federation core's entry point: decode the caller's token,
// dispatch, merge, encode the next token.
type Service struct {
	dispatcher   *Dispatcher
	defaultLimit int
	maxLimit     int
	logger       zerolog.Logger
}

// NewService creates the federation service.
func NewService(d *Dispatcher, opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}

	return &Service{
		dispatcher:   d,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		logger:       logging.NewLogger("federation"),
	}
}

// Search runs one federated collection search. token is the caller's opaque
// pagination token, empty on the first page.
//
// Error cases: ErrInvalidCursor for a bad token, ErrNoSources when nothing
// is configured, ErrFederationUnavailable when the first page gets no data
// from any source. Per-source failures on their own never produce an error;
// they appear in the page's Failed list.
func (s *Service) Search(ctx context.Context, req stac.SearchRequest, token string) (Page, error) {
	start := time.Now()

	// Canonical sort spec for this request; an absent sortby means the
	// default order, so it binds tokens the same way as asking for it
	// explicitly.
	sortSpec := stac.SortBySpec(req.SortBy)
	if sortSpec == "" {
		sortSpec = stac.SortBySpec(stac.DefaultSort)
	}

	var cur cursor.Logical
	if token != "" {
		decoded, tokenSort, err := cursor.Decode(token)
		if err != nil {
			return Page{}, err
		}
		// Skip offsets in the token only make sense under the sort order
		// they were produced with.
		if tokenSort != sortSpec {
			return Page{}, fmt.Errorf("%w: sort order changed between pages", cursor.ErrInvalidCursor)
		}
		cur = decoded
	}

	if req.Limit <= 0 {
		req.Limit = s.defaultLimit
	}
	if req.Limit > s.maxLimit {
		req.Limit = s.maxLimit
	}

	outcomes, err := s.dispatcher.Dispatch(ctx, req, cur)
	if err != nil {
		return Page{}, err
	}

	if cur == nil && allFailed(outcomes) {
		s.logger.Error().
			Int("sources", len(outcomes)).
			Msg("Every source failed on the first page")
		return Page{}, fmt.Errorf("%w (%d sources)", ErrFederationUnavailable, len(outcomes))
	}

	page := Merge(outcomes, cur, req.SortBy, req.Limit)

	if page.Cursor != nil {
		nextToken, err := cursor.Encode(page.Cursor, sortSpec)
		if err != nil {
			return Page{}, fmt.Errorf("encode next cursor: %w", err)
		}
		page.NextToken = nextToken
	}

	s.logger.Info().
		Int("collections", len(page.Collections)).
		Int("failed_sources", len(page.Failed)).
		Bool("has_next", page.NextToken != "").
		Dur("duration", time.Since(start)).
		Msg("Federated search complete")

	return page, nil
}

// Sources exposes the configured sources for the health and HTTP layers.
func (s *Service) Sources() []stac.Source {
	return s.dispatcher.Sources()
}

func allFailed(outcomes map[string]upstream.Outcome) bool {
	for _, o := range outcomes {
		if !o.Failed() {
			return false
		}
	}
	return len(outcomes) > 0
}
