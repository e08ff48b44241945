package worker

import (
	"fmt"

	"github.com/filemill/filemill/pkg/broker"
)

// Fleet names accepted by --fleet. Each fleet consumes exactly one queue.
const (
	FleetImage    = "image"
	FleetVideo    = "video"
	FleetSecurity = "security"
	FleetAI       = "ai"
)

// AllFleets returns the runnable fleet names.
func AllFleets() []string {
	return []string{FleetImage, FleetVideo, FleetSecurity, FleetAI}
}

// QueueForFleet maps a fleet name to the queue it consumes.
func QueueForFleet(fleet string) (string, error) {
	switch fleet {
	case FleetImage:
		return broker.QueueImage, nil
	case FleetVideo:
		return broker.QueueVideo, nil
	case FleetSecurity:
		return broker.QueueSecurity, nil
	case FleetAI:
		return broker.QueueAI, nil
	}
	return "", fmt.Errorf("unknown fleet %q (valid: image, video, security, ai)", fleet)
}
