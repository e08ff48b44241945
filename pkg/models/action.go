package models

import (
	"fmt"
	"strings"
)

// ActionKind identifies one processing operation. The set is closed:
// submission fails at validation time when a string outside it is seen.
type ActionKind string

const (
	ActionThumbnail      ActionKind = "THUMBNAIL"
	ActionImageConvert   ActionKind = "IMAGE_CONVERT"
	ActionImageCompress  ActionKind = "IMAGE_COMPRESS"
	ActionVideoThumbnail ActionKind = "VIDEO_THUMBNAIL"
	ActionVideoPreview   ActionKind = "VIDEO_PREVIEW"
	ActionVideoConvert   ActionKind = "VIDEO_CONVERT"
	ActionCompress       ActionKind = "COMPRESS"
	ActionMetadata       ActionKind = "METADATA"
	ActionEncrypt        ActionKind = "ENCRYPT"
	ActionDecrypt        ActionKind = "DECRYPT"
	ActionVirusScan      ActionKind = "VIRUS_SCAN"
	ActionAITag          ActionKind = "AI_TAG"
)

// AllActionKinds lists every member of the enumeration in a stable order.
var AllActionKinds = []ActionKind{
	ActionThumbnail,
	ActionImageConvert,
	ActionImageCompress,
	ActionVideoThumbnail,
	ActionVideoPreview,
	ActionVideoConvert,
	ActionCompress,
	ActionMetadata,
	ActionEncrypt,
	ActionDecrypt,
	ActionVirusScan,
	ActionAITag,
}

// ParseActionKind maps a client-supplied action string to its canonical
// ActionKind. Matching is case-insensitive: clients historically submit
// lowercase strings such as "thumbnail".
func ParseActionKind(s string) (ActionKind, error) {
	kind := ActionKind(strings.ToUpper(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return kind, nil
}

// IsValid checks membership in the closed enumeration.
func (a ActionKind) IsValid() bool {
	switch a {
	case ActionThumbnail, ActionImageConvert, ActionImageCompress,
		ActionVideoThumbnail, ActionVideoPreview, ActionVideoConvert,
		ActionCompress, ActionMetadata, ActionEncrypt, ActionDecrypt,
		ActionVirusScan, ActionAITag:
		return true
	}
	return false
}

// ProducesArtifact reports whether a completed job of this kind creates a
// derived File. Side-effect-only actions (scan, tagging, metadata probe)
// complete without a result file.
func (a ActionKind) ProducesArtifact() bool {
	switch a {
	case ActionVirusScan, ActionAITag, ActionMetadata:
		return false
	}
	return true
}

// String returns the canonical uppercase literal.
func (a ActionKind) String() string {
	return string(a)
}
