package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"polling/internal/domain"
	"polling/internal/events"
	"polling/internal/identity"
	"polling/internal/ledger"
	"polling/internal/repo"
)

var (
	ErrNotDeployed     = errors.New("organization not deployed")
	ErrAlreadyDeployed = errors.New("organization already deployed")
)

var tracer = otel.Tracer("polling/internal/engine")

// Engine runs ledger operations against the workspace database. Operations are
// serialized and each one commits in a single transaction together with its
// journal event, or not at all.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
	Logger *slog.Logger

	mu *sync.Mutex
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Now:    time.Now,
		mu:     &sync.Mutex{},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) lock() func() {
	if e.mu == nil {
		return func() {}
	}
	e.mu.Lock()
	return e.mu.Unlock
}

// Deploy stores the organization and its governance parameters. It can run
// once per workspace.
func (e Engine) Deploy(ctx context.Context, org domain.Organization) (domain.Organization, error) {
	defer e.lock()()
	ctx, span := tracer.Start(ctx, "engine.deploy")
	defer span.End()

	l, err := ledger.New(org, e.now)
	if err != nil {
		return domain.Organization{}, e.reject(span, "deploy", org.Owner.Address, err)
	}
	org = l.Organization()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Organization{}, err
	}
	defer tx.Rollback()

	if _, _, err := e.Repo.GetOrganization(ctx, tx); err == nil {
		return domain.Organization{}, e.reject(span, "deploy", org.Owner.Address, ErrAlreadyDeployed)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Organization{}, err
	}
	deployedAt := e.now().UTC().Truncate(time.Second)
	if err := e.Repo.InsertOrganization(ctx, tx, org, deployedAt); err != nil {
		return domain.Organization{}, fmt.Errorf("insert organization: %w", err)
	}
	evt := domain.Event{
		TS:         deployedAt,
		Type:       domain.EventDeployed,
		Actor:      org.Owner.Address,
		EntityKind: "organization",
		EntityID:   org.Name,
		Payload: domain.EventPayload{
			"name":                     org.Name,
			"owner":                    org.Owner.Address.String(),
			"owner_name":               org.Owner.Name,
			"task_approval_percentage": org.TaskApprovalPercentage,
			"minimum_staking_amount":   uint64(org.MinimumStakingAmount),
			"vesting_period_in_days":   org.VestingPeriodInDays,
		},
	}
	if _, err := e.commit(ctx, tx, span, "deploy", evt); err != nil {
		return domain.Organization{}, err
	}
	return org, nil
}

func (e Engine) AddDirector(ctx context.Context, caller, addr identity.Address, name string) (domain.Director, error) {
	var d domain.Director
	_, err := e.apply(ctx, "add_director", caller, func(l *ledger.Ledger) (domain.Event, error) {
		evt, err := l.AddDirector(caller, addr, name)
		if err == nil {
			d, _ = l.Director(addr)
		}
		return evt, err
	})
	return d, err
}

func (e Engine) Stake(ctx context.Context, caller identity.Address, name string, amount domain.Amount) (domain.Stakeholder, error) {
	var s domain.Stakeholder
	_, err := e.apply(ctx, "stake", caller, func(l *ledger.Ledger) (domain.Event, error) {
		evt, err := l.Stake(caller, name, amount)
		if err == nil {
			s, _ = l.Stakeholder(caller)
		}
		return evt, err
	})
	return s, err
}

// Withdraw returns the caller's slot after the withdrawal; it is zeroed when
// the whole stake was withdrawn.
func (e Engine) Withdraw(ctx context.Context, caller identity.Address, amount domain.Amount) (domain.Stakeholder, error) {
	var s domain.Stakeholder
	_, err := e.apply(ctx, "withdraw", caller, func(l *ledger.Ledger) (domain.Event, error) {
		evt, err := l.Withdraw(caller, amount)
		if err == nil {
			s, _ = l.Stakeholder(caller)
		}
		return evt, err
	})
	return s, err
}

func (e Engine) AddTask(ctx context.Context, caller identity.Address, title, description string) (domain.Task, error) {
	var t domain.Task
	_, err := e.apply(ctx, "add_task", caller, func(l *ledger.Ledger) (domain.Event, error) {
		evt, err := l.AddTask(caller, title, description)
		if err != nil {
			return evt, err
		}
		tasks := l.Tasks()
		t = tasks[len(tasks)-1]
		return evt, nil
	})
	return t, err
}

func (e Engine) ApproveTask(ctx context.Context, caller identity.Address, id int64) (domain.Task, error) {
	var t domain.Task
	_, err := e.apply(ctx, "approve_task", caller, func(l *ledger.Ledger) (domain.Event, error) {
		evt, err := l.ApproveTask(caller, id)
		if err == nil {
			t, err = l.Task(id)
		}
		return evt, err
	})
	return t, err
}

// apply restores the ledger inside a transaction, runs op against it and
// persists whatever op changed along with the event it emitted.
func (e Engine) apply(ctx context.Context, name string, caller identity.Address, op func(*ledger.Ledger) (domain.Event, error)) (domain.Event, error) {
	defer e.lock()()
	ctx, span := tracer.Start(ctx, "engine."+name, trace.WithAttributes(attribute.String("poll.caller", caller.String())))
	defer span.End()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()

	before, err := e.Repo.LoadState(ctx, tx)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Event{}, ErrNotDeployed
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("load state: %w", err)
	}
	l, err := ledger.Restore(before, e.now)
	if err != nil {
		return domain.Event{}, fmt.Errorf("restore ledger: %w", err)
	}
	evt, err := op(l)
	if err != nil {
		return domain.Event{}, e.reject(span, name, caller, err)
	}
	if err := e.persist(ctx, tx, before, l.Snapshot()); err != nil {
		return domain.Event{}, fmt.Errorf("%s: persist: %w", name, err)
	}
	return e.commit(ctx, tx, span, name, evt)
}

func (e Engine) commit(ctx context.Context, tx *sql.Tx, span trace.Span, name string, evt domain.Event) (domain.Event, error) {
	evt.OpID = uuid.NewString()
	id, err := e.Events.Append(ctx, tx, evt.OpID, evt)
	if err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}
	evt.ID = id
	span.SetAttributes(attribute.String("poll.event", evt.Type), attribute.Int64("poll.event_id", id))
	e.logger().Info("operation committed",
		"op", name,
		"op_id", evt.OpID,
		"actor", evt.Actor.String(),
		"event", evt.Type,
		"entity", evt.EntityKind+":"+evt.EntityID,
	)
	return evt, nil
}

// reject records a failed operation. Unauthorized calls log at WARN, failed
// preconditions at INFO and anything else at ERROR.
func (e Engine) reject(span trace.Span, name string, caller identity.Address, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	attrs := []any{"op", name, "caller", caller.String(), "error", err}
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		e.logger().Warn("operation unauthorized", attrs...)
	case ledger.IsValidation(err), errors.Is(err, ErrAlreadyDeployed):
		e.logger().Info("operation rejected", attrs...)
	default:
		e.logger().Error("operation failed", attrs...)
	}
	return err
}

// view restores a read-only ledger from committed state.
func (e Engine) view(ctx context.Context) (*ledger.Ledger, error) {
	st, err := e.Repo.LoadState(ctx, nil)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotDeployed
	}
	if err != nil {
		return nil, err
	}
	return ledger.Restore(st, e.now)
}

func (e Engine) Organization(ctx context.Context) (domain.Organization, error) {
	l, err := e.view(ctx)
	if err != nil {
		return domain.Organization{}, err
	}
	return l.Organization(), nil
}

// Balance returns the amount held in custody.
func (e Engine) Balance(ctx context.Context) (domain.Amount, error) {
	l, err := e.view(ctx)
	if err != nil {
		return 0, err
	}
	return l.Balance(), nil
}

func (e Engine) Role(ctx context.Context, addr identity.Address) (domain.Role, error) {
	l, err := e.view(ctx)
	if err != nil {
		return "", err
	}
	return l.Role(addr), nil
}

func (e Engine) DisplayName(ctx context.Context, addr identity.Address) (string, error) {
	l, err := e.view(ctx)
	if err != nil {
		return "", err
	}
	return l.DisplayName(addr), nil
}

func (e Engine) Directors(ctx context.Context) ([]domain.Director, error) {
	l, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	return l.Directors(), nil
}

// Stakeholders lists every slot; with activeOnly, only positive stakes.
func (e Engine) Stakeholders(ctx context.Context, activeOnly bool) ([]domain.Stakeholder, error) {
	l, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	if activeOnly {
		return l.ActiveStakeholders(), nil
	}
	return l.Stakeholders(), nil
}

func (e Engine) Tasks(ctx context.Context) ([]domain.Task, error) {
	l, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	return l.Tasks(), nil
}

func (e Engine) Task(ctx context.Context, id int64) (domain.Task, error) {
	l, err := e.view(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	return l.Task(id)
}

// Journal returns up to limit journal entries, newest first.
func (e Engine) Journal(ctx context.Context, limit int, f repo.EventFilter) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, limit, f)
}

// JournalAfter returns the journal entries recorded after event id after,
// oldest first.
func (e Engine) JournalAfter(ctx context.Context, after int64, f repo.EventFilter) ([]domain.Event, error) {
	return e.Repo.EventsAfter(ctx, after, f)
}
