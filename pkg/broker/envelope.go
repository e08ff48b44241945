package broker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the message carried on every work queue. One envelope
// describes one job: which object to fetch and which action to run on it.
//
// The params map carries per-action options (thumbnail size, target
// format, encryption passphrase). Values arrive as generic JSON types;
// handlers coerce what they need and ignore the rest.
type Envelope struct {
	JobID  string         `json:"job_id"`
	FileID string         `json:"file_id"`
	Bucket string         `json:"bucket"`
	Key    string         `json:"key"`
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// Encode serializes the envelope for publishing. A nil params map encodes
// as an empty object so consumers never see "params": null.
func (e *Envelope) Encode() ([]byte, error) {
	if e.Params == nil {
		e.Params = map[string]any{}
	}
	return json.Marshal(e)
}

// DecodeEnvelope parses a delivery body. Envelopes missing any addressing
// field are rejected; consumers dead-letter those instead of guessing.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate checks the addressing fields every consumer depends on. The
// action type is allowed to be unknown here; only its presence is
// required, so a newer publisher can still hand work to an older worker
// that will fail the job cleanly instead of dropping it.
func (e *Envelope) Validate() error {
	switch {
	case e.JobID == "":
		return errors.New("envelope missing job_id")
	case e.FileID == "":
		return errors.New("envelope missing file_id")
	case e.Bucket == "":
		return errors.New("envelope missing bucket")
	case e.Key == "":
		return errors.New("envelope missing key")
	case e.Type == "":
		return errors.New("envelope missing type")
	}
	return nil
}
