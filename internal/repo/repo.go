package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"polling/internal/domain"
	"polling/internal/identity"
	"polling/internal/ledger"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Querier is satisfied by both *sql.DB and *sql.Tx so reads can run inside the
// operation transaction or standalone.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(q Querier) Querier {
	if q == nil {
		return r.DB
	}
	return q
}

func (r Repo) InsertOrganization(ctx context.Context, tx *sql.Tx, org domain.Organization, deployedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO organization(id,name,owner_address,owner_name,task_approval_percentage,minimum_staking_amount,vesting_period_days,balance,deployed_at) VALUES (1,?,?,?,?,?,?,'0',?)`,
		org.Name, org.Owner.Address.String(), org.Owner.Name, org.TaskApprovalPercentage, formatAmount(org.MinimumStakingAmount), org.VestingPeriodInDays, formatTime(deployedAt))
	return err
}

// GetOrganization returns the deployed organization and its custody balance.
func (r Repo) GetOrganization(ctx context.Context, q Querier) (domain.Organization, domain.Amount, error) {
	var (
		org                 domain.Organization
		owner, minimum, bal string
		pct                 int
		vesting             int64
	)
	err := r.q(q).QueryRowContext(ctx, `SELECT name,owner_address,owner_name,task_approval_percentage,minimum_staking_amount,vesting_period_days,balance FROM organization WHERE id=1`).
		Scan(&org.Name, &owner, &org.Owner.Name, &pct, &minimum, &vesting, &bal)
	if errors.Is(err, sql.ErrNoRows) {
		return org, 0, ErrNotFound
	}
	if err != nil {
		return org, 0, err
	}
	org.Owner.Address = identity.Address(owner)
	org.TaskApprovalPercentage = uint8(pct)
	org.VestingPeriodInDays = uint32(vesting)
	if org.MinimumStakingAmount, err = parseAmount(minimum); err != nil {
		return org, 0, fmt.Errorf("organization minimum_staking_amount: %w", err)
	}
	balance, err := parseAmount(bal)
	if err != nil {
		return org, 0, fmt.Errorf("organization balance: %w", err)
	}
	return org, balance, nil
}

func (r Repo) SetBalance(ctx context.Context, tx *sql.Tx, balance domain.Amount) error {
	res, err := tx.ExecContext(ctx, `UPDATE organization SET balance=? WHERE id=1`, formatAmount(balance))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadState reads the whole ledger state.
func (r Repo) LoadState(ctx context.Context, q Querier) (ledger.State, error) {
	org, balance, err := r.GetOrganization(ctx, q)
	if err != nil {
		return ledger.State{}, err
	}
	directors, err := r.ListDirectors(ctx, q)
	if err != nil {
		return ledger.State{}, fmt.Errorf("load directors: %w", err)
	}
	slots, err := r.ListSlots(ctx, q)
	if err != nil {
		return ledger.State{}, fmt.Errorf("load stakeholder slots: %w", err)
	}
	tasks, err := r.ListTasks(ctx, q)
	if err != nil {
		return ledger.State{}, fmt.Errorf("load tasks: %w", err)
	}
	return ledger.State{
		Organization: org,
		Directors:    directors,
		Slots:        slots,
		Tasks:        tasks,
		Balance:      balance,
	}, nil
}

func formatAmount(a domain.Amount) string {
	return strconv.FormatUint(uint64(a), 10)
}

func parseAmount(s string) (domain.Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return domain.Amount(v), err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
