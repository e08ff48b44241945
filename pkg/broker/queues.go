package broker

// Work queue names. Queues are grouped by fleet rather than by action:
// every action a fleet can run arrives on that fleet's single queue, and
// the envelope's type field selects the handler.
const (
	// QueueImage feeds the image fleet: thumbnails, conversions,
	// compression, and metadata extraction.
	QueueImage = "image_queue"

	// QueueVideo feeds the video fleet. Video jobs run far longer than
	// anything else, which is why they never share a queue with image
	// work.
	QueueVideo = "video_queue"

	// QueueMetadata is reserved for a dedicated metadata fleet. Metadata
	// jobs currently route to the image fleet, but the queue is declared
	// so a split needs no broker migration.
	QueueMetadata = "metadata_queue"

	// QueueSecurity feeds the security fleet: virus scans, encryption,
	// decryption, and archive compression.
	QueueSecurity = "security_queue"

	// QueueAI feeds the AI tagging fleet.
	QueueAI = "ai_queue"

	// QueueGeneric is the declared-but-unrouted overflow queue kept for
	// wire compatibility with older deployments.
	QueueGeneric = "generic_queue"
)

// AllQueues returns every queue the platform declares, in declaration
// order.
func AllQueues() []string {
	return []string{
		QueueImage,
		QueueVideo,
		QueueMetadata,
		QueueSecurity,
		QueueAI,
		QueueGeneric,
	}
}

// DeadLetterExchange receives envelopes a consumer rejected without
// requeue. Each work queue binds its own dead queue to it, so poisoned
// messages stay inspectable per queue instead of vanishing.
const DeadLetterExchange = "filemill.dlx"

// DeadQueueName returns the dead-letter queue paired with a work queue.
func DeadQueueName(queue string) string {
	return queue + ".dead"
}
