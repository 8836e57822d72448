package payment

import (
	"context"

	"github.com/noah-isme/backend-wisata/internal/pricing"
)

// Method identifies how a booking or cart checkout is settled.
type Method string

const (
	// MethodCard charges an external card processor for the full total.
	MethodCard Method = "card"
	// MethodSavings debits the internal savings balance at the discounted total.
	MethodSavings Method = "savings"
	// MethodVault settles from an on-chain vault via approve-then-transfer.
	MethodVault Method = "vault"
)

// Valid reports whether the method is one of the supported values.
func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodSavings, MethodVault:
		return true
	}
	return false
}

// CardCharge captures the information sent to the card processor.
type CardCharge struct {
	Reference string
	UserID    string
	Amount    pricing.Money
	Currency  string
}

// CardResult is the processor's answer to a charge.
type CardResult struct {
	ProviderRef string
	Approved    bool
	Reason      string
}

// CardProvider abstracts the external card processor.
type CardProvider interface {
	Charge(ctx context.Context, req CardCharge) (CardResult, error)
}

// Transaction states reported by the vault node.
const (
	VaultTxPending   = "pending"
	VaultTxConfirmed = "confirmed"
	VaultTxFailed    = "failed"
)

// VaultProvider abstracts the on-chain vault contract. Balances and amounts
// are stable-unit cents; conversion to local currency happens in the
// dispatcher via the rate provider.
type VaultProvider interface {
	BalanceOf(ctx context.Context, wallet string) (pricing.Money, error)
	Allowance(ctx context.Context, wallet string) (pricing.Money, error)
	Approve(ctx context.Context, wallet string, amount pricing.Money) (string, error)
	Transfer(ctx context.Context, wallet string, amount pricing.Money) (string, error)
	TransactionStatus(ctx context.Context, txHash string) (string, error)
}
