package actions

import "fmt"

// Message builds the signature message template for a's Kind, per spec.md
// §6. Only the signed variants (CreateOrder, Cancel, Withdraw) call this;
// it panics if asked for an unsigned Kind, since that's a dispatcher bug,
// not a malformed-input condition.
func Message(a *OrderbookAction) string {
	switch a.Kind {
	case KindCreateOrder:
		return fmt.Sprintf("%s:%d:create_order:%s", a.Identity, a.Nonce, a.Order.OrderID)
	case KindCancel:
		return fmt.Sprintf("%s:%d:cancel:%s", a.Identity, a.Nonce, a.OrderID)
	case KindWithdraw:
		return fmt.Sprintf("%s:%d:withdraw:%s:%d", a.Identity, a.Nonce, a.Symbol, a.Amount)
	default:
		panic(fmt.Sprintf("actions: Message called for unsigned kind %s", a.Kind))
	}
}
