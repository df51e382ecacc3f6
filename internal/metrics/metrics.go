package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	ActionsSent      Counter
	ActionsThrottled Counter
	OrdersInserted   Counter
	OrdersCancelled  Counter
	ArbitrageOrders  Counter
	HedgesSent       Counter
	HedgesUnfilled   Counter
	StaleBooks       Counter
	OrderErrors      Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		ActionsSent:      n,
		ActionsThrottled: n,
		OrdersInserted:   n,
		OrdersCancelled:  n,
		ArbitrageOrders:  n,
		HedgesSent:       n,
		HedgesUnfilled:   n,
		StaleBooks:       n,
		OrderErrors:      n,
	}
}
