package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "etf_mm_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
	}

	actionsSent := counter("actions_sent_total", "Total outbound actions admitted by the rate limiter.")
	actionsThrottled := counter("actions_throttled_total", "Total outbound actions dropped by the rate limiter.")
	ordersInserted := counter("orders_inserted_total", "Total insert orders sent.")
	ordersCancelled := counter("orders_cancelled_total", "Total cancel orders sent.")
	arbitrageOrders := counter("arbitrage_orders_total", "Total fill-and-kill arbitrage orders sent.")
	hedgesSent := counter("hedges_sent_total", "Total hedge orders sent.")
	hedgesUnfilled := counter("hedges_unfilled_total", "Total hedge orders reported back unfilled.")
	staleBooks := counter("stale_books_total", "Total order book snapshots discarded as stale or invalid.")
	orderErrors := counter("order_errors_total", "Total order-level errors reported by the venue.")

	registry.MustRegister(
		actionsSent, actionsThrottled,
		ordersInserted, ordersCancelled, arbitrageOrders,
		hedgesSent, hedgesUnfilled,
		staleBooks, orderErrors,
	)

	m := &Metrics{
		ActionsSent:      promCounter{actionsSent},
		ActionsThrottled: promCounter{actionsThrottled},
		OrdersInserted:   promCounter{ordersInserted},
		OrdersCancelled:  promCounter{ordersCancelled},
		ArbitrageOrders:  promCounter{arbitrageOrders},
		HedgesSent:       promCounter{hedgesSent},
		HedgesUnfilled:   promCounter{hedgesUnfilled},
		StaleBooks:       promCounter{staleBooks},
		OrderErrors:      promCounter{orderErrors},
	}

	return &Prometheus{
		Metrics:  m,
		registry: registry,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
