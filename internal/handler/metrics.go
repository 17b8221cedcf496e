package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopflow",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Total number of orders placed successfully",
		},
	)

	ordersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopflow",
			Subsystem: "orders",
			Name:      "creation_failed_total",
			Help:      "Total number of failed order creation attempts",
		},
	)

	ordersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopflow",
			Subsystem: "orders",
			Name:      "cancelled_total",
			Help:      "Total number of orders cancelled by shoppers",
		},
	)

	stockRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopflow",
			Subsystem: "orders",
			Name:      "stock_rejections_total",
			Help:      "Total number of orders rejected for insufficient stock",
		},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopflow",
			Subsystem: "orders",
			Name:      "status_transitions_total",
			Help:      "Total number of admin status transitions by target status",
		},
		[]string{"status"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		ordersCreated,
		ordersFailed,
		ordersCancelled,
		stockRejections,
		statusTransitions,
	)
}
