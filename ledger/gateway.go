package ledger

import "context"

// PayoutGateway moves native-currency units out of the system. Burn and
// dividend withdrawal call it as their final step, after all ledger state
// has been committed; a gateway error causes the whole operation to roll
// back, so implementations must not leave a payment half-made.
//
// Pay returns an opaque settlement reference (for on-chain gateways, the
// transaction ID) on success.
type PayoutGateway interface {
	Pay(ctx context.Context, destination Address, amount uint64) (string, error)
}
