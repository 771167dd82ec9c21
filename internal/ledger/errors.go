package ledger

import (
	"errors"
	"fmt"
	"strings"

	"polling/internal/domain"
	"polling/internal/identity"
)

// ErrUnauthorized is the single authorization failure signal. Every role check
// failure unwraps to it.
var ErrUnauthorized = errors.New("unauthorized")

// Validation failures.
var (
	ErrInvalidConfig           = errors.New("invalid organization config")
	ErrInvalidAddress          = errors.New("invalid address")
	ErrEmptyName               = errors.New("name cannot be empty")
	ErrEmptyTitle              = errors.New("title cannot be empty")
	ErrEmptyDescription        = errors.New("description cannot be empty")
	ErrDuplicateDirector       = errors.New("address is already a director")
	ErrDuplicateTitle          = errors.New("a task with the same title is already added")
	ErrRestricted              = errors.New("address already holds another role")
	ErrBelowMinimumStake       = errors.New("received amount does not meet the minimum staking amount")
	ErrNotVested               = errors.New("staked amount not vested yet")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrBelowMinimumRemainder   = errors.New("balance left should be more than minimum staking amount")
	ErrAmountOverflow          = errors.New("amount overflows custody balance")
	ErrTaskNotFound            = errors.New("task not found")
	ErrAlreadyApproved         = errors.New("task already approved")
	ErrAlreadyApprovedByCaller = errors.New("task already approved by you")
)

// UnauthorizedError reports which operation rejected which caller role.
type UnauthorizedError struct {
	Op     string
	Caller identity.Address
	Role   domain.Role
	Want   []domain.Role
}

func (e *UnauthorizedError) Error() string {
	want := make([]string, len(e.Want))
	for i, r := range e.Want {
		want[i] = string(r)
	}
	return fmt.Sprintf("%s: unauthorized: caller %s is %s, requires %s", e.Op, e.Caller, e.Role, strings.Join(want, " or "))
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// IsValidation reports whether err is a precondition failure other than authorization.
func IsValidation(err error) bool {
	if err == nil || errors.Is(err, ErrUnauthorized) {
		return false
	}
	for _, target := range []error{
		ErrInvalidConfig, ErrInvalidAddress, ErrEmptyName, ErrEmptyTitle, ErrEmptyDescription,
		ErrDuplicateDirector, ErrDuplicateTitle, ErrRestricted, ErrBelowMinimumStake, ErrNotVested,
		ErrInsufficientBalance, ErrBelowMinimumRemainder, ErrAmountOverflow,
		ErrTaskNotFound, ErrAlreadyApproved, ErrAlreadyApprovedByCaller,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
