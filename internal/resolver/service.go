// Package resolver ties request decoding, plan compilation and execution
// together for the HTTP handlers and the CLI.
package resolver

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"RequestCriteria/internal/criteria"
	"RequestCriteria/internal/executor"
	"RequestCriteria/internal/logger"
	"RequestCriteria/internal/request"
	"RequestCriteria/internal/schema"
	"RequestCriteria/internal/sqlbuild"
)

// IndexResult is the page of rows plus the unpaginated total.
type IndexResult struct {
	Items []executor.Row `json:"items"`
	Total int64          `json:"total"`
}

// CompileResult is the rendered SQL of a request, without running it.
type CompileResult struct {
	SQL      string                   `json:"sql"`
	Args     []any                    `json:"args"`
	CountSQL string                   `json:"count_sql"`
	Dropped  []criteria.DroppedClause `json:"dropped"`
}

type Service struct {
	registry *schema.Registry
	compiler *criteria.Compiler
	exec     *executor.Executor
}

// New builds a service. conn may be nil, in which case only Compile works.
func New(reg *schema.Registry, opts criteria.Options, conn *sql.DB) *Service {
	s := &Service{
		registry: reg,
		compiler: criteria.NewCompiler(reg, opts),
	}
	if conn != nil {
		s.exec = executor.New(conn, reg)
	}
	return s
}

// Plan compiles a request against the registry.
func (s *Service) Plan(req request.Request) (*criteria.Plan, error) {
	in, err := req.Input()
	if err != nil {
		return nil, err
	}
	plan, err := s.compiler.Compile(req.Model, s.registry.Searchable(req.Model), in)
	if err != nil {
		return nil, err
	}
	for _, d := range plan.Dropped {
		logger.Debug("clause_dropped", logger.Fields{
			"model":  req.Model,
			"clause": d.Clause,
			"field":  d.Field,
			"reason": d.Reason,
		})
	}
	logger.Debug("plan_compiled", logger.Fields{
		"model":   req.Model,
		"joins":   len(plan.Joins),
		"dropped": len(plan.Dropped),
		"limit":   plan.Limit,
	})
	return plan, nil
}

// Index returns one page and the total, queried in parallel.
func (s *Service) Index(ctx context.Context, req request.Request) (IndexResult, error) {
	if s.exec == nil {
		return IndexResult{}, fmt.Errorf("resolver: no database configured")
	}
	plan, err := s.Plan(req)
	if err != nil {
		return IndexResult{}, err
	}

	var res IndexResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.exec.Index(gctx, plan)
		res.Items = items
		return err
	})
	g.Go(func() error {
		total, err := s.exec.Count(gctx, plan)
		res.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		return IndexResult{}, err
	}
	if res.Items == nil {
		res.Items = []executor.Row{}
	}
	return res, nil
}

func (s *Service) Count(ctx context.Context, req request.Request) (int64, error) {
	if s.exec == nil {
		return 0, fmt.Errorf("resolver: no database configured")
	}
	plan, err := s.Plan(req)
	if err != nil {
		return 0, err
	}
	return s.exec.Count(ctx, plan)
}

// Compile renders the select and count statements of a request.
func (s *Service) Compile(req request.Request) (CompileResult, error) {
	plan, err := s.Plan(req)
	if err != nil {
		return CompileResult{}, err
	}
	b := sqlbuild.Build(plan)
	query, args, err := b.ToSql()
	if err != nil {
		return CompileResult{}, fmt.Errorf("render select: %w", err)
	}
	countQuery, _, err := b.CountSQL()
	if err != nil {
		return CompileResult{}, fmt.Errorf("render count: %w", err)
	}
	if args == nil {
		args = []any{}
	}
	dropped := plan.Dropped
	if dropped == nil {
		dropped = []criteria.DroppedClause{}
	}
	return CompileResult{SQL: query, Args: args, CountSQL: countQuery, Dropped: dropped}, nil
}
