package migrate

import (
	"context"
	"fmt"

	"github.com/tracewire/tracewire/internal/db"
	"github.com/tracewire/tracewire/internal/logger"
	"github.com/tracewire/tracewire/internal/schema"
)

// DownPolicy states, per definition, how faithfully its down reverses its up.
// The limitation is part of the definition's contract, not a buried log line.
type DownPolicy int

const (
	// DownReversible: down restores the pre-up introspectable schema shape.
	DownReversible DownPolicy = iota
	// DownBestEffort: down reverts what it can and skips, with a warning,
	// operations an engine cannot perform without a table rebuild.
	DownBestEffort
	// DownUnsupported: the change is lossy and has no down; rollback of this
	// id is rejected before any database mutation.
	DownUnsupported
)

func (p DownPolicy) String() string {
	switch p {
	case DownReversible:
		return "reversible"
	case DownBestEffort:
		return "best-effort"
	case DownUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("DownPolicy(%d)", int(p))
}

// StepOutcome reports what a guarded statement actually did, so an expected
// skip is an explicit result rather than a swallowed error.
type StepOutcome int

const (
	// Applied: the statement ran and changed the schema.
	Applied StepOutcome = iota
	// SkippedAlreadyPresent: the desired schema state was already in place.
	SkippedAlreadyPresent
	// SkippedUnsupported: the active engine cannot perform the operation (or
	// an optional statement failed) and the step is documented as
	// non-load-bearing.
	SkippedUnsupported
)

func (o StepOutcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case SkippedAlreadyPresent:
		return "skipped-already-present"
	case SkippedUnsupported:
		return "skipped-unsupported"
	}
	return fmt.Sprintf("StepOutcome(%d)", int(o))
}

// Transform is one direction of a definition. It runs inside the runner's
// transaction; the Step carries the transaction handle, the active dialect,
// and an introspector bound to the same transaction.
type Transform func(ctx context.Context, step *Step) error

// Definition is a single versioned schema transformation. The catalog of
// definitions is append-only: ids are never renumbered or reordered, and
// cross-definition dependencies flow only through the database itself.
type Definition struct {
	ID         string
	Name       string
	Up         Transform
	Down       Transform // nil iff DownPolicy is DownUnsupported
	DownPolicy DownPolicy
}

// Step is the handle a Transform operates through.
type Step struct {
	Exec    db.Handle
	Dialect db.Dialect
	Schema  *schema.Introspector
	Log     *logger.Logger
}

func newStep(tx *db.Tx, log *logger.Logger) *Step {
	return &Step{
		Exec:    tx,
		Dialect: tx.Dialect(),
		Schema:  schema.New(tx, tx.Dialect()),
		Log:     log,
	}
}

// Run executes the fragment for the active dialect. Engine errors surface
// unchanged; absorbing a failure is a decision for Optional, made per
// statement by the definition author.
func (s *Step) Run(ctx context.Context, stmt db.ByDialect, args ...any) error {
	_, err := s.Exec.Execute(ctx, stmt.For(s.Dialect), args...)
	return err
}

// Optional executes the fragment and absorbs any failure. Only statements
// that are not load-bearing for later definitions may use it, e.g. a
// defense-in-depth constraint an older engine version rejects.
func (s *Step) Optional(ctx context.Context, stmt db.ByDialect, args ...any) StepOutcome {
	sql := stmt.For(s.Dialect)
	if sql == "" {
		// No fragment for this dialect: the other engine covers the concern
		// elsewhere (e.g. an inline CHECK in its column definition).
		s.outcome("no optional statement for dialect", SkippedUnsupported,
			map[string]any{"dialect": string(s.Dialect)})
		return SkippedUnsupported
	}
	if _, err := s.Exec.Execute(ctx, sql, args...); err != nil {
		s.outcome("optional statement skipped", SkippedUnsupported, map[string]any{"error": err.Error()})
		return SkippedUnsupported
	}
	return Applied
}

// CreateTable runs ddl unless the table already exists.
func (s *Step) CreateTable(ctx context.Context, table string, ddl db.ByDialect) (StepOutcome, error) {
	ok, err := s.Schema.TableExists(ctx, table)
	if err != nil {
		return SkippedUnsupported, err
	}
	if ok {
		s.outcome("table already present", SkippedAlreadyPresent, map[string]any{"table": table})
		return SkippedAlreadyPresent, nil
	}
	if err := s.Run(ctx, ddl); err != nil {
		return SkippedUnsupported, err
	}
	return Applied, nil
}

// AddColumn runs ddl unless the column already exists, so re-running against
// a database that partially reflects a later state does not fail fatally.
func (s *Step) AddColumn(ctx context.Context, table, column string, ddl db.ByDialect) (StepOutcome, error) {
	ok, err := s.Schema.ColumnExists(ctx, table, column)
	if err != nil {
		return SkippedUnsupported, err
	}
	if ok {
		s.outcome("column already present", SkippedAlreadyPresent, map[string]any{"table": table, "column": column})
		return SkippedAlreadyPresent, nil
	}
	if err := s.Run(ctx, ddl); err != nil {
		return SkippedUnsupported, err
	}
	return Applied, nil
}

// DropColumn removes a column where the engine supports it. SQLite needs a
// full table rebuild on older versions, so a failure there is reported as
// skipped rather than fatal; callers tag the enclosing down DownBestEffort.
func (s *Step) DropColumn(ctx context.Context, table, column string) (StepOutcome, error) {
	ok, err := s.Schema.ColumnExists(ctx, table, column)
	if err != nil {
		return SkippedUnsupported, err
	}
	if !ok {
		s.outcome("column already absent", SkippedAlreadyPresent, map[string]any{"table": table, "column": column})
		return SkippedAlreadyPresent, nil
	}
	drop := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, column)
	if _, err := s.Exec.Execute(ctx, drop); err != nil {
		if s.Dialect == db.SQLite {
			s.outcome("drop column not supported without table rebuild", SkippedUnsupported,
				map[string]any{"table": table, "column": column, "error": err.Error()})
			return SkippedUnsupported, nil
		}
		return SkippedUnsupported, err
	}
	return Applied, nil
}

// CreateIndex runs ddl unless an index of that name already exists.
func (s *Step) CreateIndex(ctx context.Context, index string, ddl db.ByDialect) (StepOutcome, error) {
	ok, err := s.Schema.IndexExists(ctx, index)
	if err != nil {
		return SkippedUnsupported, err
	}
	if ok {
		s.outcome("index already present", SkippedAlreadyPresent, map[string]any{"index": index})
		return SkippedAlreadyPresent, nil
	}
	if err := s.Run(ctx, ddl); err != nil {
		return SkippedUnsupported, err
	}
	return Applied, nil
}

// DropIndex removes an index if present.
func (s *Step) DropIndex(ctx context.Context, index string, ddl db.ByDialect) (StepOutcome, error) {
	ok, err := s.Schema.IndexExists(ctx, index)
	if err != nil {
		return SkippedUnsupported, err
	}
	if !ok {
		s.outcome("index already absent", SkippedAlreadyPresent, map[string]any{"index": index})
		return SkippedAlreadyPresent, nil
	}
	if err := s.Run(ctx, ddl); err != nil {
		return SkippedUnsupported, err
	}
	return Applied, nil
}

func (s *Step) outcome(msg string, o StepOutcome, fields map[string]any) {
	if s.Log == nil {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["outcome"] = o.String()
	if o == SkippedUnsupported {
		s.Log.Warn(msg, fields)
		return
	}
	s.Log.Info(msg, fields)
}
