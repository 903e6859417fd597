package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// PATCHES - Typed partial updates, merged field by field
// =============================================================================
// A nil field leaves the stored value untouched.

type AccountPatch struct {
	Name             *string          `json:"name,omitempty"`
	SubName          *string          `json:"subName,omitempty"`
	Type             *AccountType     `json:"type,omitempty"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
	Group            *AccountGroup    `json:"group,omitempty"`
	IsPrimary        *bool            `json:"isPrimary,omitempty"`
	AccountNumber    *string          `json:"accountNumber,omitempty"`
	CustomerID       *string          `json:"customerId,omitempty"`
	DmatID           *string          `json:"dmatId,omitempty"`
	LoanDetails      *LoanDetails     `json:"loanDetails,omitempty"`
	Holdings         *[]Holding       `json:"holdings,omitempty"`
	IncludeInReports *bool            `json:"includeInReports,omitempty"`
}

func (p AccountPatch) apply(a Account) Account {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.SubName != nil {
		a.SubName = *p.SubName
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Balance != nil {
		a.Balance = *p.Balance
	}
	if p.Group != nil {
		a.Group = *p.Group
	}
	if p.IsPrimary != nil {
		a.IsPrimary = *p.IsPrimary
	}
	if p.AccountNumber != nil {
		a.AccountNumber = *p.AccountNumber
	}
	if p.CustomerID != nil {
		a.CustomerID = *p.CustomerID
	}
	if p.DmatID != nil {
		a.DmatID = *p.DmatID
	}
	if p.LoanDetails != nil {
		ld := *p.LoanDetails
		a.LoanDetails = &ld
	}
	if p.Holdings != nil {
		a.Holdings = append([]Holding(nil), (*p.Holdings)...)
	}
	if p.IncludeInReports != nil {
		v := *p.IncludeInReports
		a.IncludeInReports = &v
	}
	return a
}

type MandatePatch struct {
	SourceAccountID      *string          `json:"sourceAccountId,omitempty"`
	DestinationAccountID *string          `json:"destinationAccountId,omitempty"`
	Amount               *decimal.Decimal `json:"amount,omitempty"`
	DayOfMonth           *int             `json:"dayOfMonth,omitempty"`
	Description          *string          `json:"description,omitempty"`
	IsEnabled            *bool            `json:"isEnabled,omitempty"`
	LastRunDate          *string          `json:"lastRunDate,omitempty"`
	LastSkippedDate      *string          `json:"lastSkippedDate,omitempty"`
}

func (p MandatePatch) apply(m Mandate) Mandate {
	if p.SourceAccountID != nil {
		m.SourceAccountID = *p.SourceAccountID
	}
	if p.DestinationAccountID != nil {
		m.DestinationAccountID = *p.DestinationAccountID
	}
	if p.Amount != nil {
		m.Amount = *p.Amount
	}
	if p.DayOfMonth != nil {
		m.DayOfMonth = *p.DayOfMonth
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.IsEnabled != nil {
		m.IsEnabled = *p.IsEnabled
	}
	if p.LastRunDate != nil {
		m.LastRunDate = *p.LastRunDate
	}
	if p.LastSkippedDate != nil {
		m.LastSkippedDate = *p.LastSkippedDate
	}
	return m
}

type EventPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"startDate,omitempty"`
	EndDate     *string `json:"endDate,omitempty"`
}

func (p EventPatch) apply(e Event) Event {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		e.EndDate = *p.EndDate
	}
	return e
}

type CategoryPatch struct {
	Name  *string       `json:"name,omitempty"`
	Type  *CategoryType `json:"type,omitempty"`
	Icon  *string       `json:"icon,omitempty"`
	Color *string       `json:"color,omitempty"`
}

func (p CategoryPatch) apply(c Category) Category {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	return c
}
