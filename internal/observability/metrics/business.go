package metrics

import (
	"time"

	"feed-relay/internal/domain/entity"
)

// StoreObserver records item store events.
type StoreObserver struct{}

// ObserveFlush records the duration and outcome of a store rewrite.
func (StoreObserver) ObserveFlush(d time.Duration, err error) {
	StoreFlushDuration.Observe(d.Seconds())
	if err != nil {
		StoreFlushErrors.Inc()
	}
}

// ObserveSize updates the store gauges.
func (StoreObserver) ObserveSize(total, pending int) {
	StoreItems.Set(float64(total))
	StorePending.Set(float64(pending))
}

// ObserveStatus counts a status update.
func (StoreObserver) ObserveStatus(status entity.Status) {
	StatusTransitionsTotal.WithLabelValues(status.String()).Inc()
}

// PollObserver records feed fetch attempts.
type PollObserver struct{}

// ObservePoll records one fetch attempt.
func (PollObserver) ObservePoll(err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	PollTotal.WithLabelValues(result).Inc()
	PollDuration.Observe(d.Seconds())
}

// DeliveryObserver records sender activity.
type DeliveryObserver struct{}

// ObserveAttempt counts one publish call. result is success, transient or permanent.
func (DeliveryObserver) ObserveAttempt(result string) {
	PublishAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveDelivery records the final status of one item.
func (DeliveryObserver) ObserveDelivery(status entity.Status, d time.Duration) {
	DeliveriesTotal.WithLabelValues(status.String()).Inc()
	DeliveryDuration.Observe(d.Seconds())
}

// ObserveQueueDepth updates the queue gauge.
func (DeliveryObserver) ObserveQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

// CycleObserver records relay cycle activity.
type CycleObserver struct{}

// ObserveCycle records one finished cycle.
func (CycleObserver) ObserveCycle(d time.Duration, newItems int, floodDelay time.Duration) {
	CycleDuration.Observe(d.Seconds())
	NewItemsTotal.Add(float64(newItems))
	FloodDelay.Set(floodDelay.Seconds())
}

// ObserveHistoryMarked counts items marked sent from history.
func (CycleObserver) ObserveHistoryMarked(n int) {
	HistoryMarkedTotal.Add(float64(n))
}

// ObserveCleanup counts items removed by maintenance.
func (CycleObserver) ObserveCleanup(removed int) {
	CleanupRemovedTotal.Add(float64(removed))
}
