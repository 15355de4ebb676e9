// Package resolver provides get-or-create resolution of dimension entities
// with a run-scoped cache in front of the persistent store.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/parser"
	"github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/repository"
	"github.com/FACorreiaa/federal-budget-tracker/pkg/observability"
)

// ErrEmptyCode is returned when a dimension key field is blank after trimming
var ErrEmptyCode = errors.New("dimension code is empty")

// Store is the slice of the import repository the resolver needs
type Store interface {
	FindAgencyByCode(ctx context.Context, code string) (*repository.Agency, error)
	CreateAgency(ctx context.Context, agency *repository.Agency) error
	FindBureau(ctx context.Context, agencyID uuid.UUID, code string) (*repository.Bureau, error)
	CreateBureau(ctx context.Context, bureau *repository.Bureau) error
	FindAccount(ctx context.Context, bureauID uuid.UUID, code string) (*repository.Account, error)
	CreateAccount(ctx context.Context, account *repository.Account) error
	FindFunctionByCode(ctx context.Context, code string) (*repository.BudgetFunction, error)
	CreateFunction(ctx context.Context, function *repository.BudgetFunction) error
	FindSubfunction(ctx context.Context, functionID uuid.UUID, code string) (*repository.BudgetSubfunction, error)
	CreateSubfunction(ctx context.Context, subfunction *repository.BudgetSubfunction) error
	FindObjectClassByCode(ctx context.Context, code string) (*repository.ObjectClass, error)
	CreateObjectClass(ctx context.Context, objectClass *repository.ObjectClass) error
}

// key is the composite cache key: scope is the owning entity's id (empty
// for globally keyed dimensions), code the trimmed source code.
type key struct {
	scope string
	code  string
}

// Resolver owns the per-run dimension cache. Lifetime is one ingestion run;
// it assumes a single sequential writer (see the service row loop) and
// relies on DB uniqueness constraints as the backstop against concurrent
// runs creating duplicates.
type Resolver struct {
	repo   Store
	logger *slog.Logger

	agencies      map[key]*repository.Agency
	bureaus       map[key]*repository.Bureau
	accounts      map[key]*repository.Account
	functions     map[key]*repository.BudgetFunction
	subfunctions  map[key]*repository.BudgetSubfunction
	objectClasses map[key]*repository.ObjectClass
}

// New creates a resolver with an empty cache
func New(repo Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		repo:          repo,
		logger:        logger,
		agencies:      make(map[key]*repository.Agency),
		bureaus:       make(map[key]*repository.Bureau),
		accounts:      make(map[key]*repository.Account),
		functions:     make(map[key]*repository.BudgetFunction),
		subfunctions:  make(map[key]*repository.BudgetSubfunction),
		objectClasses: make(map[key]*repository.ObjectClass),
	}
}

// resolve is the one get-or-create algorithm shared by all six dimension
// kinds: cache hit, then store lookup, then create-and-persist immediately
// so that later rows in the same run observe the new entity. Created
// entities are never mutated afterwards.
func resolve[T any](
	ctx context.Context,
	cache map[key]*T,
	k key,
	find func(context.Context) (*T, error),
	create func(context.Context) (*T, error),
) (*T, error) {
	if cached, ok := cache[k]; ok {
		return cached, nil
	}

	entity, err := find(ctx)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		entity, err = create(ctx)
		if err != nil {
			return nil, err
		}
	}

	cache[k] = entity
	return entity, nil
}

// Agency resolves an agency by OMB code
func (r *Resolver) Agency(ctx context.Context, code, title string) (*repository.Agency, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("agency: %w", ErrEmptyCode)
	}

	return resolve(ctx, r.agencies, key{code: code},
		func(ctx context.Context) (*repository.Agency, error) {
			return r.repo.FindAgencyByCode(ctx, code)
		},
		func(ctx context.Context) (*repository.Agency, error) {
			agency := &repository.Agency{
				OMBCode:      code,
				Title:        strings.TrimSpace(title),
				Abbreviation: optional(parser.Abbreviation(title)),
			}
			if err := r.repo.CreateAgency(ctx, agency); err != nil {
				return nil, err
			}
			observability.DimensionsCreated.WithLabelValues("agency").Inc()
			r.logger.Info("created agency", "code", code, "title", agency.Title)
			return agency, nil
		},
	)
}

// Bureau resolves a bureau scoped to its agency
func (r *Resolver) Bureau(ctx context.Context, agency *repository.Agency, code, title string) (*repository.Bureau, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("bureau: %w", ErrEmptyCode)
	}

	return resolve(ctx, r.bureaus, key{scope: agency.ID.String(), code: code},
		func(ctx context.Context) (*repository.Bureau, error) {
			return r.repo.FindBureau(ctx, agency.ID, code)
		},
		func(ctx context.Context) (*repository.Bureau, error) {
			bureau := &repository.Bureau{
				AgencyID:     agency.ID,
				OMBCode:      code,
				Title:        strings.TrimSpace(title),
				Abbreviation: optional(parser.Abbreviation(title)),
			}
			if err := r.repo.CreateBureau(ctx, bureau); err != nil {
				return nil, err
			}
			observability.DimensionsCreated.WithLabelValues("bureau").Inc()
			r.logger.Info("created bureau", "code", code, "agency", agency.OMBCode)
			return bureau, nil
		},
	)
}

// Account resolves an account scoped to its bureau
func (r *Resolver) Account(ctx context.Context, bureau *repository.Bureau, code, title string) (*repository.Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("account: %w", ErrEmptyCode)
	}

	return resolve(ctx, r.accounts, key{scope: bureau.ID.String(), code: code},
		func(ctx context.Context) (*repository.Account, error) {
			return r.repo.FindAccount(ctx, bureau.ID, code)
		},
		func(ctx context.Context) (*repository.Account, error) {
			title := strings.TrimSpace(title)
			account := &repository.Account{
				BureauID:       bureau.ID,
				OMBAccountCode: code,
				Title:          title,
				Description:    optional(title),
			}
			if err := r.repo.CreateAccount(ctx, account); err != nil {
				return nil, err
			}
			observability.DimensionsCreated.WithLabelValues("account").Inc()
			r.logger.Info("created account", "code", code, "bureau", bureau.OMBCode)
			return account, nil
		},
	)
}

// Function resolves a budget function by code
func (r *Resolver) Function(ctx context.Context, code, title string) (*repository.BudgetFunction, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("budget function: %w", ErrEmptyCode)
	}

	return resolve(ctx, r.functions, key{code: code},
		func(ctx context.Context) (*repository.BudgetFunction, error) {
			return r.repo.FindFunctionByCode(ctx, code)
		},
		func(ctx context.Context) (*repository.BudgetFunction, error) {
			title := strings.TrimSpace(title)
			function := &repository.BudgetFunction{
				Code:        code,
				Title:       title,
				Description: optional(title),
			}
			if err := r.repo.CreateFunction(ctx, function); err != nil {
				return nil, err
			}
			observability.DimensionsCreated.WithLabelValues("function").Inc()
			r.logger.Info("created budget function", "code", code, "title", title)
			return function, nil
		},
	)
}

// Subfunction resolves a budget subfunction scoped to its function
func (r *Resolver) Subfunction(ctx context.Context, function *repository.BudgetFunction, code, title string) (*repository.BudgetSubfunction, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("budget subfunction: %w", ErrEmptyCode)
	}

	return resolve(ctx, r.subfunctions, key{scope: function.ID.String(), code: code},
		func(ctx context.Context) (*repository.BudgetSubfunction, error) {
			return r.repo.FindSubfunction(ctx, function.ID, code)
		},
		func(ctx context.Context) (*repository.BudgetSubfunction, error) {
			title := strings.TrimSpace(title)
			subfunction := &repository.BudgetSubfunction{
				FunctionID:  function.ID,
				Code:        code,
				Title:       title,
				Description: optional(title),
			}
			if err := r.repo.CreateSubfunction(ctx, subfunction); err != nil {
				return nil, err
			}
			observability.DimensionsCreated.WithLabelValues("subfunction").Inc()
			r.logger.Info("created budget subfunction", "code", code, "function", function.Code)
			return subfunction, nil
		},
	)
}

// ObjectClass resolves an object class by code
func (r *Resolver) ObjectClass(ctx context.Context, code, title string) (*repository.ObjectClass, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("object class: %w", ErrEmptyCode)
	}

	return resolve(ctx, r.objectClasses, key{code: code},
		func(ctx context.Context) (*repository.ObjectClass, error) {
			return r.repo.FindObjectClassByCode(ctx, code)
		},
		func(ctx context.Context) (*repository.ObjectClass, error) {
			title := strings.TrimSpace(title)
			objectClass := &repository.ObjectClass{
				Code:        code,
				Title:       title,
				GroupCode:   parser.GroupCode(code),
				Description: optional(title),
			}
			if err := r.repo.CreateObjectClass(ctx, objectClass); err != nil {
				return nil, err
			}
			observability.DimensionsCreated.WithLabelValues("object_class").Inc()
			r.logger.Info("created object class", "code", code, "group", objectClass.GroupCode)
			return objectClass, nil
		},
	)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
