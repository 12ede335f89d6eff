package scenario

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dictengine/pkg/database"
	dberr "dictengine/pkg/error"
	"dictengine/pkg/logging"
)

// DefaultSession names the session of steps that do not name one.
const DefaultSession = "main"

// Observer is told about each step as it runs.
type Observer interface {
	Step(n int, session, statement string)
	Result(res database.QueryResult)
	Error(err error)
	Expected(code string)
}

type nopObserver struct{}

func (nopObserver) Step(int, string, string) {}
func (nopObserver) Result(database.QueryResult) {}
func (nopObserver) Error(error) {}
func (nopObserver) Expected(string) {}

// StepError reports the step a scenario stopped at.
type StepError struct {
	Step int
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes scenarios against one database. Sessions are opened on
// first use by name and stay open across scenarios until Close.
type Runner struct {
	db       *database.Database
	obs      Observer
	sessions map[string]*database.Session
	log      *zap.Logger
}

// NewRunner creates a runner. obs may be nil.
func NewRunner(db *database.Database, obs Observer) *Runner {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Runner{
		db:       db,
		obs:      obs,
		sessions: make(map[string]*database.Session),
		log:      logging.WithComponent("scenario"),
	}
}

// Session returns the named session, opening it if needed.
func (r *Runner) Session(name string) (*database.Session, error) {
	if name == "" {
		name = DefaultSession
	}
	if s, ok := r.sessions[name]; ok {
		return s, nil
	}
	s, err := r.db.NewSession()
	if err != nil {
		return nil, err
	}
	r.sessions[name] = s
	return s, nil
}

// Run executes the steps of sc in order and stops at the first step that
// fails unexpectedly or does not meet its expectations.
func (r *Runner) Run(ctx context.Context, sc *Scenario) error {
	r.log.Info("running scenario", zap.String("name", sc.Name), zap.Int("steps", len(sc.Steps)))
	for i, st := range sc.Steps {
		if err := r.step(ctx, i+1, st); err != nil {
			return &StepError{Step: i + 1, Op: st.Op, Err: err}
		}
	}
	return nil
}

func (r *Runner) step(ctx context.Context, n int, st Step) error {
	op, ok := operations[st.Op]
	if !ok {
		return fmt.Errorf("unknown op %q", st.Op)
	}
	s, err := r.Session(st.Session)
	if err != nil {
		return err
	}
	session := st.Session
	if session == "" {
		session = DefaultSession
	}
	r.obs.Step(n, session, op.text(st))

	res, err := op.run(ctx, r, s, st)
	if st.ExpectError != "" {
		if err == nil {
			return fmt.Errorf("expected error %s, statement succeeded", st.ExpectError)
		}
		if !dberr.HasCode(err, st.ExpectError) {
			r.obs.Error(err)
			return fmt.Errorf("expected error %s, got %s: %w", st.ExpectError, dberr.CodeOf(err), err)
		}
		r.obs.Expected(st.ExpectError)
		return nil
	}
	if err != nil {
		r.obs.Error(err)
		return err
	}
	r.obs.Result(res)
	return check(st, res)
}

func check(st Step, res database.QueryResult) error {
	if st.ExpectRows != nil {
		if diff := cmp.Diff(st.ExpectRows, res.Rows, cmpopts.EquateEmpty()); diff != "" {
			return fmt.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	}
	if st.ExpectCount != nil {
		got := res.RowsAffected
		if st.Op == "query" {
			got = len(res.Rows)
		}
		if got != *st.ExpectCount {
			return fmt.Errorf("expected %d rows, got %d", *st.ExpectCount, got)
		}
	}
	return nil
}

// Close closes every session the runner opened. Pending work is rolled
// back.
func (r *Runner) Close() error {
	var err error
	for name, s := range r.sessions {
		err = multierr.Append(err, s.Close())
		delete(r.sessions, name)
	}
	return err
}
