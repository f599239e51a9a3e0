package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cycle is the history record of one completed draw. Never mutated after creation.
type Cycle struct {
	GroupID     string
	CycleNumber int

	WinnerUserID string
	PrizeAmount  decimal.Decimal
	DrawDate     time.Time

	// Participants are the user IDs of every member who paid in this cycle.
	Participants []string

	// PayoutTxID is the ledger transaction that paid the prize.
	PayoutTxID string
}
