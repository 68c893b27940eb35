package model

import "time"

// CreditType is an enumerated tier of purchasable reading allowance.
type CreditType string

const (
	CreditBasic   CreditType = "basic"
	CreditPro     CreditType = "pro"
	CreditPremium CreditType = "premium"
)

// KnownCreditType reports whether t is part of the closed tier set.
func KnownCreditType(t CreditType) bool {
	switch t {
	case CreditBasic, CreditPro, CreditPremium:
		return true
	}
	return false
}

// CreditBalance is a user's per-tier balance snapshot. Balances are only
// ever mutated through the ledger's Consume/Refund/Grant operations.
type CreditBalance struct {
	UserID    string
	Counts    map[CreditType]int
	UpdatedAt time.Time
}

func (b *CreditBalance) Get(t CreditType) int {
	if b == nil || b.Counts == nil {
		return 0
	}
	return b.Counts[t]
}

// OnboardingMarker is the idempotency marker for a user's one-time
// signup bonus grant.
func OnboardingMarker(userID string) string { return "onboarding:" + userID }
