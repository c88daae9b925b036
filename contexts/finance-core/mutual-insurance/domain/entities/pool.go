package entities

import (
	"math"
	"strings"
	"time"

	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
)

const poolCustodyPrefix = "pool:"

// Account is a staker's net contribution to one pool.
type Account struct {
	Owner          string
	Balance        int64
	TotalStaked    int64
	TotalWithdrawn int64
	UpdatedAt      time.Time
}

// Pool is the shared custody debited by claim settlement. Accounts are
// mutated only together with the pool totals, under the pool's guard.
type Pool struct {
	PoolID         string
	TotalAmount    int64
	Stakers        []string
	Accounts       map[string]Account
	PaidOut        int64
	AdminWithdrawn int64
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewPool(poolID string, createdBy string, now time.Time) (Pool, error) {
	if strings.TrimSpace(poolID) == "" || strings.TrimSpace(createdBy) == "" {
		return Pool{}, domainerrors.ErrInvalidInput
	}
	return Pool{
		PoolID:    poolID,
		Stakers:   []string{},
		Accounts:  make(map[string]Account),
		CreatedBy: strings.TrimSpace(createdBy),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// CustodyAccount is the funds-transfer account holding this pool's balance.
func (p Pool) CustodyAccount() string {
	return CustodyAccountFor(p.PoolID)
}

func CustodyAccountFor(poolID string) string {
	return poolCustodyPrefix + poolID
}

// IsCustodyAccount reports whether id names pool custody. Such ids are never
// valid as a staker, claimant, payer or policy owner.
func IsCustodyAccount(id string) bool {
	return strings.HasPrefix(strings.TrimSpace(id), poolCustodyPrefix)
}

func addWouldOverflow(balance int64, amount int64) bool {
	return balance > math.MaxInt64-amount
}

func (p Pool) Account(owner string) (Account, bool) {
	account, ok := p.Accounts[owner]
	return account, ok
}

// CheckStake runs before any funds move, so a rejected stake leaves custody
// untouched.
func (p Pool) CheckStake(staker string, amount int64) error {
	staker = strings.TrimSpace(staker)
	if staker == "" || amount <= 0 || IsCustodyAccount(staker) {
		return domainerrors.ErrInvalidInput
	}
	account := p.Accounts[staker]
	if addWouldOverflow(p.TotalAmount, amount) ||
		addWouldOverflow(account.Balance, amount) ||
		addWouldOverflow(account.TotalStaked, amount) {
		return domainerrors.ErrAmountOverflow
	}
	return nil
}

func (p *Pool) Stake(staker string, amount int64, now time.Time) error {
	if err := p.CheckStake(staker, amount); err != nil {
		return err
	}
	staker = strings.TrimSpace(staker)
	if p.Accounts == nil {
		p.Accounts = make(map[string]Account)
	}
	at := now.UTC()
	account, ok := p.Accounts[staker]
	if !ok {
		account = Account{Owner: staker}
		p.Stakers = append(p.Stakers, staker)
	}
	account.Balance += amount
	account.TotalStaked += amount
	account.UpdatedAt = at
	p.Accounts[staker] = account
	p.TotalAmount += amount
	p.UpdatedAt = at
	return nil
}

// CheckWithdraw validates a staker withdrawal against both the account and
// the pool so neither can be driven negative.
func (p Pool) CheckWithdraw(owner string, amount int64) error {
	if strings.TrimSpace(owner) == "" || amount <= 0 {
		return domainerrors.ErrInvalidInput
	}
	account, ok := p.Accounts[owner]
	if !ok {
		return domainerrors.ErrAccountNotFound
	}
	if account.Balance < amount {
		return domainerrors.ErrInsufficientBalance
	}
	if p.TotalAmount < amount {
		return domainerrors.ErrInsufficientPoolBalance
	}
	return nil
}

func (p *Pool) Withdraw(owner string, amount int64, now time.Time) error {
	if err := p.CheckWithdraw(owner, amount); err != nil {
		return err
	}
	at := now.UTC()
	account := p.Accounts[owner]
	account.Balance -= amount
	account.TotalWithdrawn += amount
	account.UpdatedAt = at
	p.Accounts[owner] = account
	p.TotalAmount -= amount
	p.UpdatedAt = at
	return nil
}

func (p Pool) CheckDebit(amount int64) error {
	if amount <= 0 {
		return domainerrors.ErrInvalidInput
	}
	if p.TotalAmount < amount {
		return domainerrors.ErrInsufficientPoolBalance
	}
	return nil
}

func (p Pool) CheckAdminWithdraw(amount int64) error {
	if err := p.CheckDebit(amount); err != nil {
		return err
	}
	if addWouldOverflow(p.AdminWithdrawn, amount) {
		return domainerrors.ErrAmountOverflow
	}
	return nil
}

// AdminWithdraw drains the pool without touching any staker account.
func (p *Pool) AdminWithdraw(amount int64, now time.Time) error {
	if err := p.CheckAdminWithdraw(amount); err != nil {
		return err
	}
	p.TotalAmount -= amount
	p.AdminWithdrawn += amount
	p.UpdatedAt = now.UTC()
	return nil
}

func (p Pool) CheckPayOut(amount int64) error {
	if err := p.CheckDebit(amount); err != nil {
		return err
	}
	if addWouldOverflow(p.PaidOut, amount) {
		return domainerrors.ErrAmountOverflow
	}
	return nil
}

// PayOut debits a claim settlement from the pool.
func (p *Pool) PayOut(amount int64, now time.Time) error {
	if err := p.CheckPayOut(amount); err != nil {
		return err
	}
	p.TotalAmount -= amount
	p.PaidOut += amount
	p.UpdatedAt = now.UTC()
	return nil
}

// AccountsTotal sums every staker's net balance.
func (p Pool) AccountsTotal() int64 {
	var total int64
	for _, account := range p.Accounts {
		total += account.Balance
	}
	return total
}

// Drift is zero when accounts, settlements and admin drains explain the
// pool total exactly.
func (p Pool) Drift() int64 {
	return p.AccountsTotal() - p.PaidOut - p.AdminWithdrawn - p.TotalAmount
}

func (p Pool) Clone() Pool {
	out := p
	out.Stakers = append([]string{}, p.Stakers...)
	out.Accounts = make(map[string]Account, len(p.Accounts))
	for owner, account := range p.Accounts {
		out.Accounts[owner] = account
	}
	return out
}
