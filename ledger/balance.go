/*
balance.go - Balance Engine

PURPOSE:
  Computes the signed delta a transaction applies to each account it
  touches. Pure and stateless: callers own the accounts.

SIGN RULES:
  Source leg:
    income              +amount (any account type)
    expense / transfer  -amount, or +amount if the source is a loan
                        (spending from a loan is new debt)
  Destination leg (transfer only):
    +amount, or -amount if the destination is a loan (a repayment)

REVERT:
  There is no separate revert table. Reverting recomputes the forward
  delta with the same rules and subtracts it, so revert(apply(x)) == x
  exactly for every transaction, including ones whose type, amount or
  accounts were later changed.

EXCLUSIONS AND DANGLING LEGS:
  ExcludeFromBalance short-circuits everything: no effects at all.
  A leg whose account does not resolve is dropped, not an error.
*/
package ledger

import "github.com/shopspring/decimal"

// Leg identifies which side of a transaction an account sits on.
type Leg int

const (
	LegSource Leg = iota
	LegDestination
)

// Effect is the balance change a transaction applies to one account.
type Effect struct {
	AccountID string
	Leg       Leg
	Delta     decimal.Decimal
}

// AccountLookup resolves an account id against some account set.
type AccountLookup func(id string) (Account, bool)

// LegDelta returns the forward delta tx applies to acct on the given leg.
func LegDelta(acct Account, tx Transaction, leg Leg) decimal.Decimal {
	amount := tx.Amount
	switch leg {
	case LegSource:
		switch tx.Type {
		case TxIncome:
			return amount
		case TxExpense, TxTransfer:
			if acct.IsLoan() {
				return amount
			}
			return amount.Neg()
		}
	case LegDestination:
		if tx.Type != TxTransfer {
			return decimal.Zero
		}
		if acct.IsLoan() {
			return amount.Neg()
		}
		return amount
	}
	return decimal.Zero
}

// Effects returns the forward effects of tx on the accounts lookup resolves.
func Effects(tx Transaction, lookup AccountLookup) []Effect {
	if tx.ExcludeFromBalance {
		return nil
	}

	var effects []Effect
	if src, ok := lookup(tx.AccountID); ok {
		effects = append(effects, Effect{AccountID: src.ID, Leg: LegSource, Delta: LegDelta(src, tx, LegSource)})
	}
	if tx.Type == TxTransfer && tx.ToAccountID != "" {
		if dst, ok := lookup(tx.ToAccountID); ok {
			effects = append(effects, Effect{AccountID: dst.ID, Leg: LegDestination, Delta: LegDelta(dst, tx, LegDestination)})
		}
	}
	return effects
}

// Apply adds the forward effects of tx to accounts in place and returns the
// ids it touched, in leg order.
func Apply(accounts []Account, tx Transaction) []string {
	return post(accounts, tx, false)
}

// Revert subtracts the forward effects of tx from accounts in place.
func Revert(accounts []Account, tx Transaction) []string {
	return post(accounts, tx, true)
}

func post(accounts []Account, tx Transaction, revert bool) []string {
	index := make(map[string]int, len(accounts))
	for i, a := range accounts {
		index[a.ID] = i
	}
	lookup := func(id string) (Account, bool) {
		i, ok := index[id]
		if !ok {
			return Account{}, false
		}
		return accounts[i], true
	}

	var touched []string
	for _, e := range Effects(tx, lookup) {
		i := index[e.AccountID]
		if revert {
			accounts[i].Balance = accounts[i].Balance.Sub(e.Delta)
		} else {
			accounts[i].Balance = accounts[i].Balance.Add(e.Delta)
		}
		touched = append(touched, e.AccountID)
	}
	return touched
}
