package ledger

import "context"

// MockGateway is a test double for PayoutGateway.
// If PayFn is nil, Pay records the call and succeeds with an empty reference.
type MockGateway struct {
	PayFn func(ctx context.Context, destination Address, amount uint64) (string, error)

	// Calls records every Pay invocation in order.
	Calls []MockPayment
}

// MockPayment is one recorded Pay call.
type MockPayment struct {
	Destination Address
	Amount      uint64
}

func (m *MockGateway) Pay(ctx context.Context, destination Address, amount uint64) (string, error) {
	m.Calls = append(m.Calls, MockPayment{Destination: destination, Amount: amount})
	if m.PayFn == nil {
		return "", nil
	}
	return m.PayFn(ctx, destination, amount)
}
