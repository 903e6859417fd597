package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/warp/money-ledger/ledger"
)

var (
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow, color.Bold)
	header  = color.New(color.FgBlue, color.Bold)
	debt    = color.New(color.FgRed)
)

func printAccounts(w io.Writer, accounts []ledger.Account) {
	header.Fprintf(w, "%-28s %-14s %16s\n", "ACCOUNT", "TYPE", "BALANCE")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, a := range accounts {
		line := fmt.Sprintf("%-28s %-14s %16s\n", a.Name, a.Type, a.Balance.StringFixed(2))
		if a.IsLoan() {
			debt.Fprint(w, line)
			continue
		}
		fmt.Fprint(w, line)
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%-43s %16s\n", "NET WORTH", ledger.NetWorth(accounts).StringFixed(2))
}

func printMandates(w io.Writer, l *ledger.Ledger, mandates []ledger.Mandate, day time.Time) {
	if len(mandates) == 0 {
		fmt.Fprintf(w, "No mandates due on %s\n", ledger.ISODate(day))
		return
	}
	header.Fprintf(w, "Due on %s:\n", ledger.ISODate(day))
	for _, m := range mandates {
		fmt.Fprintf(w, "  %-24s %12s  %s -> %s\n",
			m.Description, m.Amount.StringFixed(2),
			l.AccountName(m.SourceAccountID), l.AccountName(m.DestinationAccountID))
	}
}

func printTransactions(w io.Writer, l *ledger.Ledger, txs []ledger.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "Nothing to run")
		return
	}
	for _, tx := range txs {
		success.Fprintf(w, "  → %s %s: %s -> %s\n",
			tx.Note, tx.Amount.StringFixed(2),
			l.AccountName(tx.AccountID), l.AccountName(tx.ToAccountID))
	}
}
