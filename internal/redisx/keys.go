package redisx

import "time"

const (
	// Product record: hash product:{product_id}
	KeyProduct = "product:%s"

	// Placed order snapshot: order:{order_id} -> JSON
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Saga intent per order: hash saga:{order_id}
	KeySaga = "saga:%s"
	// Outstanding reservations of a saga: list saga:{order_id}:steps
	KeySagaSteps = "saga:%s:steps"
	// Repair lock: saga:{order_id}:lock
	KeySagaLock = "saga:%s:lock"
	// Open sagas scored by start time (unix ms).
	KeySagaOpen = "saga:open"
)

var (
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
	TTLSaga       = 48 * time.Hour
)
