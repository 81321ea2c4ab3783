package bus

// Durable queue names shared by all services. One queue per lifecycle event
// plus the offer broadcast consumed by the driver gateway.
const (
	QueueTripCreated   = "trip-created"
	QueueTripAccepted  = "trip-accepted"
	QueueTripStarted   = "trip-started"
	QueueTripCompleted = "trip-completed"
	QueueTripCancelled = "trip-cancelled"
	QueueTripOffer     = "trip-offer"
)
