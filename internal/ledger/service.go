package ledger

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// ServiceConfig tunes the ledger service.
type ServiceConfig struct {
	PageSize   int
	Categories CategoryConfig
}

// Service is the command/query facade over the filter engine. It owns no
// mutable state: rows come from the repository (through the cache) and
// criteria from the store on every call.
type Service struct {
	repo  Repository
	cache *Cache
	store CriteriaStore
	cfg   ServiceConfig
	loads singleflight.Group
}

// NewService wires the repository, cache and criteria store.
func NewService(repo Repository, cache *Cache, store CriteriaStore, cfg ServiceConfig) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Service{repo: repo, cache: cache, store: store, cfg: cfg}
}

// Categories exposes the category configuration handed to collaborators.
func (s *Service) Categories() CategoryConfig {
	return s.cfg.Categories
}

// PageSize returns the configured page size.
func (s *Service) PageSize() int {
	return s.cfg.PageSize
}

// Rows returns the entity's full row set.
func (s *Service) Rows(ctx context.Context, entityID string) ([]Row, error) {
	if entityID == "" {
		return nil, ErrEntityRequired
	}
	value, err, _ := s.loads.Do(entityID, func() (interface{}, error) {
		return s.cache.FetchRows(context.WithoutCancel(ctx), entityID, func(ctx context.Context) ([]Row, error) {
			return s.repo.ListRows(ctx, entityID)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: load rows for %s: %w", entityID, err)
	}
	return value.([]Row), nil
}

// Criteria loads the persisted criteria for scope and applies the
// request-scoped category.
func (s *Service) Criteria(ctx context.Context, scope string, category Category) (Criteria, error) {
	if s.store == nil {
		return Criteria{Category: category}, nil
	}
	criteria, err := s.store.Load(ctx, scope)
	if err != nil {
		return Criteria{}, err
	}
	criteria.Category = category
	return criteria, nil
}

// View renders the requested page for the persisted criteria.
func (s *Service) View(ctx context.Context, scope, entityID string, category Category, page int) (View, error) {
	rows, err := s.Rows(ctx, entityID)
	if err != nil {
		return View{}, err
	}
	criteria, err := s.Criteria(ctx, scope, category)
	if err != nil {
		return View{}, err
	}
	return BuildView(rows, criteria, s.cfg.Categories, page, s.cfg.PageSize), nil
}

// UpdateCriteria persists criteria and returns the first page. A criteria
// change always resets paging.
func (s *Service) UpdateCriteria(ctx context.Context, scope, entityID string, criteria Criteria) (View, error) {
	rows, err := s.Rows(ctx, entityID)
	if err != nil {
		return View{}, err
	}
	if s.store != nil {
		if err := s.store.Save(ctx, scope, criteria); err != nil {
			return View{}, err
		}
	}
	return BuildView(rows, criteria, s.cfg.Categories, 1, s.cfg.PageSize), nil
}

// ResetCriteria clears the persisted criteria and returns the first page.
func (s *Service) ResetCriteria(ctx context.Context, scope, entityID string) (View, error) {
	rows, err := s.Rows(ctx, entityID)
	if err != nil {
		return View{}, err
	}
	if s.store != nil {
		if err := s.store.Clear(ctx, scope); err != nil {
			return View{}, err
		}
	}
	return BuildView(rows, Criteria{}, s.cfg.Categories, 1, s.cfg.PageSize), nil
}

// MatchedRows returns the full matched set for the persisted criteria, as
// consumed by exporters.
func (s *Service) MatchedRows(ctx context.Context, scope, entityID string, category Category) ([]Row, Criteria, error) {
	rows, err := s.Rows(ctx, entityID)
	if err != nil {
		return nil, Criteria{}, err
	}
	criteria, err := s.Criteria(ctx, scope, category)
	if err != nil {
		return nil, Criteria{}, err
	}
	return FilterRows(rows, criteria, s.cfg.Categories), criteria, nil
}

// Filter evaluates an arbitrary criteria snapshot without persisting it.
func (s *Service) Filter(ctx context.Context, entityID string, criteria Criteria) ([]Row, error) {
	rows, err := s.Rows(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return FilterRows(rows, criteria, s.cfg.Categories), nil
}

// Stats summarises the rows a pending criteria would select.
func (s *Service) Stats(ctx context.Context, entityID string, criteria Criteria) (Stats, error) {
	matched, err := s.Filter(ctx, entityID, criteria)
	if err != nil {
		return Stats{}, err
	}
	return BuildStats(matched), nil
}

// Voucher returns the voucher group for voucherNo.
func (s *Service) Voucher(ctx context.Context, entityID, voucherNo string) (VoucherGroup, error) {
	rows, err := s.Rows(ctx, entityID)
	if err != nil {
		return VoucherGroup{}, err
	}
	group := GroupByVoucher(rows, voucherNo)
	if len(group.Rows) == 0 {
		return VoucherGroup{}, fmt.Errorf("%w: %s", ErrVoucherNotFound, voucherNo)
	}
	return group, nil
}

// UnbalancedVouchers reports every voucher of the entity that does not balance.
func (s *Service) UnbalancedVouchers(ctx context.Context, entityID string) ([]VoucherGroup, error) {
	rows, err := s.Rows(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return CheckVouchers(rows), nil
}

// Periods lists the periods known for the entity.
func (s *Service) Periods(ctx context.Context, entityID string) ([]string, error) {
	rows, err := s.Rows(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return Periods(rows), nil
}

// Entities lists every entity known to the repository.
func (s *Service) Entities(ctx context.Context) ([]string, error) {
	entities, err := s.repo.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entities: %w", err)
	}
	return entities, nil
}

// ImportRows replaces the entity's row set and bumps the row cache so every
// process reloads it. Rows need a unique id and non-negative amounts.
func (s *Service) ImportRows(ctx context.Context, entityID string, rows []Row) error {
	if entityID == "" {
		return ErrEntityRequired
	}
	writer, ok := s.repo.(RowWriter)
	if !ok {
		return ErrImportUnsupported
	}
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			return fmt.Errorf("%w: line %d has no id", ErrInvalidRow, i+1)
		}
		if _, dup := seen[row.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidRow, row.ID)
		}
		seen[row.ID] = struct{}{}
		if row.DebitAmount.IsNegative() || row.CreditAmount.IsNegative() {
			return fmt.Errorf("%w: row %s has a negative amount", ErrInvalidRow, row.ID)
		}
	}
	if err := writer.ReplaceRows(ctx, entityID, rows); err != nil {
		return fmt.Errorf("ledger: import rows for %s: %w", entityID, err)
	}
	if err := s.cache.Bump(ctx); err != nil {
		return fmt.Errorf("ledger: bump row cache: %w", err)
	}
	return nil
}

// IsNotFound reports whether err signals a missing voucher.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrVoucherNotFound)
}
