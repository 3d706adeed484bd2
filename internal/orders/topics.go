package orders

const (
	TopicOrderPlaced        = "order.placed"
	TopicCompensationFailed = "order.compensation.failed"
)

// PartitionKey keeps every event of one order on one partition, in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
