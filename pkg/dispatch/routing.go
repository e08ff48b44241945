package dispatch

import (
	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/broker"
	"github.com/filemill/filemill/pkg/models"
)

// QueueFor maps an action to the fleet queue that executes it.
//
// METADATA routes to the image queue: extraction is cheap enough that a
// dedicated metadata fleet has never been worth running, though its queue
// stays declared for the day it is.
//
// Unknown actions fall back to the image queue rather than erroring here.
// Routing runs after validation, so this only fires when the action set
// grows faster than a deployed dispatcher; the receiving worker fails the
// job with a clear message instead of the envelope vanishing.
func QueueFor(kind models.ActionKind) string {
	switch kind {
	case models.ActionThumbnail, models.ActionImageConvert, models.ActionImageCompress, models.ActionMetadata:
		return broker.QueueImage
	case models.ActionVideoThumbnail, models.ActionVideoPreview, models.ActionVideoConvert:
		return broker.QueueVideo
	case models.ActionCompress, models.ActionEncrypt, models.ActionDecrypt, models.ActionVirusScan:
		return broker.QueueSecurity
	case models.ActionAITag:
		return broker.QueueAI
	default:
		logger.Warn("No queue mapping for action, using image queue",
			logger.Action(string(kind)),
		)
		return broker.QueueImage
	}
}
