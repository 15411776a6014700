// Package credit keeps per-user credit balances that gate paid inference
// calls.
package credit

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/model"
	"github.com/sells-group/leadfinder/internal/telemetry"
)

const (
	// DefaultGrant is the balance given to a user on first access.
	DefaultGrant = 25
	// CostPerEmail is charged for each inference attempt.
	CostPerEmail = 1
)

// Store persists balances. It does not need to be safe for concurrent
// check-then-set; the Ledger serializes callers per user.
type Store interface {
	// Get returns the balance and whether the account exists.
	Get(ctx context.Context, userID string) (int, bool, error)
	Set(ctx context.Context, userID string, balance int) error
}

// AtomicStore is a Store that can enforce balances itself, which keeps
// deductions safe across processes sharing the store.
type AtomicStore interface {
	Store
	// Ensure creates the account with grant if it does not exist and
	// returns the current balance.
	Ensure(ctx context.Context, userID string, grant int) (int, error)
	// Deduct subtracts amount only if the balance covers it.
	Deduct(ctx context.Context, userID string, amount, grant int) (remaining int, ok bool, err error)
	// Add increases the balance by amount.
	Add(ctx context.Context, userID string, amount, grant int) (int, error)
}

// Result is the outcome of a Deduct or Add.
type Result struct {
	Success   bool   `json:"success"`
	Remaining int    `json:"remaining_balance"`
	Message   string `json:"message,omitempty"`
}

// Ledger is the per-user credit ledger.
type Ledger struct {
	store Store
	grant int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger returns a ledger over store. A grant <= 0 uses DefaultGrant.
func NewLedger(store Store, grant int) *Ledger {
	if grant <= 0 {
		grant = DefaultGrant
	}
	return &Ledger{store: store, grant: grant, locks: make(map[string]*sync.Mutex)}
}

// Grant returns the balance new accounts start with.
func (l *Ledger) Grant() int { return l.grant }

func (l *Ledger) lock(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// GetBalance returns the user's balance, granting new users DefaultGrant.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, eris.New("credit: user id is required")
	}
	if as, ok := l.store.(AtomicStore); ok {
		bal, err := as.Ensure(ctx, userID, l.grant)
		return bal, eris.Wrapf(err, "credit: balance for %s", userID)
	}

	unlock := l.lock(userID)
	defer unlock()
	return l.balanceLocked(ctx, userID)
}

func (l *Ledger) balanceLocked(ctx context.Context, userID string) (int, error) {
	bal, found, err := l.store.Get(ctx, userID)
	if err != nil {
		return 0, eris.Wrapf(err, "credit: get %s", userID)
	}
	if found {
		return bal, nil
	}
	if err := l.store.Set(ctx, userID, l.grant); err != nil {
		return 0, eris.Wrapf(err, "credit: grant %s", userID)
	}
	zap.L().Info("credit: account created", zap.String("user_id", userID), zap.Int("grant", l.grant))
	return l.grant, nil
}

// HasSufficient reports whether the user can pay amount.
func (l *Ledger) HasSufficient(ctx context.Context, userID string, amount int) (bool, error) {
	bal, err := l.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return bal >= amount, nil
}

// Deduct subtracts amount if the balance covers it. An uncovered deduct
// returns Success false with the unchanged balance; the error is reserved
// for store failures.
func (l *Ledger) Deduct(ctx context.Context, userID string, amount int) (Result, error) {
	if amount < 0 {
		return Result{}, eris.Errorf("credit: negative deduct %d", amount)
	}
	if userID == "" {
		return Result{}, eris.New("credit: user id is required")
	}

	var (
		remaining int
		ok        bool
	)
	if as, isAtomic := l.store.(AtomicStore); isAtomic {
		var err error
		remaining, ok, err = as.Deduct(ctx, userID, amount, l.grant)
		if err != nil {
			return Result{}, eris.Wrapf(err, "credit: deduct %s", userID)
		}
	} else {
		unlock := l.lock(userID)
		bal, err := l.balanceLocked(ctx, userID)
		if err == nil && bal >= amount {
			err = l.store.Set(ctx, userID, bal-amount)
			bal -= amount
			ok = true
		}
		unlock()
		if err != nil {
			return Result{}, eris.Wrapf(err, "credit: deduct %s", userID)
		}
		remaining = bal
	}

	if !ok {
		telemetry.CreditDeductions.WithLabelValues("refused").Inc()
		return Result{Success: false, Remaining: remaining, Message: model.ErrInsufficientCredits.Error()}, nil
	}
	telemetry.CreditDeductions.WithLabelValues("ok").Inc()
	return Result{Success: true, Remaining: remaining}, nil
}

// Add credits amount to the user.
func (l *Ledger) Add(ctx context.Context, userID string, amount int) (Result, error) {
	if amount < 0 {
		return Result{}, eris.Errorf("credit: negative add %d", amount)
	}
	if userID == "" {
		return Result{}, eris.New("credit: user id is required")
	}

	if as, ok := l.store.(AtomicStore); ok {
		bal, err := as.Add(ctx, userID, amount, l.grant)
		if err != nil {
			return Result{}, eris.Wrapf(err, "credit: add %s", userID)
		}
		return Result{Success: true, Remaining: bal}, nil
	}

	unlock := l.lock(userID)
	defer unlock()
	bal, err := l.balanceLocked(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if err := l.store.Set(ctx, userID, bal+amount); err != nil {
		return Result{}, eris.Wrapf(err, "credit: add %s", userID)
	}
	return Result{Success: true, Remaining: bal + amount}, nil
}
