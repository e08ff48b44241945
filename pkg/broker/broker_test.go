package broker

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEnvelope_EncodeNilParams(t *testing.T) {
	env := &Envelope{
		JobID:  "job-1",
		FileID: "file-1",
		Bucket: "raw",
		Key:    "u1/f1_photo.jpg",
		Type:   "THUMBNAIL",
	}

	body, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("encoded envelope is not valid JSON: %v", err)
	}
	if string(raw["params"]) != "{}" {
		t.Errorf(`params = %s, expected {}`, raw["params"])
	}
	for _, field := range []string{"job_id", "file_id", "bucket", "key", "type"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("encoded envelope missing %q", field)
		}
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := &Envelope{
		JobID:  "job-1",
		FileID: "file-1",
		Bucket: "raw",
		Key:    "u1/f1_clip.mp4",
		Type:   "VIDEO_THUMBNAIL",
		Params: map[string]any{"timestamp": "00:00:05"},
	}

	body, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeEnvelope(body)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}

	if decoded.JobID != env.JobID || decoded.FileID != env.FileID {
		t.Errorf("identity fields lost: %+v", decoded)
	}
	if decoded.Bucket != env.Bucket || decoded.Key != env.Key {
		t.Errorf("object address lost: %+v", decoded)
	}
	if decoded.Type != env.Type {
		t.Errorf("type = %q, expected %q", decoded.Type, env.Type)
	}
	if ts, _ := decoded.Params["timestamp"].(string); ts != "00:00:05" {
		t.Errorf("params lost: %+v", decoded.Params)
	}
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "MalformedJSON",
			body: `{"job_id": `,
			want: "malformed envelope",
		},
		{
			name: "MissingJobID",
			body: `{"file_id":"f","bucket":"raw","key":"k","type":"THUMBNAIL"}`,
			want: "missing job_id",
		},
		{
			name: "MissingFileID",
			body: `{"job_id":"j","bucket":"raw","key":"k","type":"THUMBNAIL"}`,
			want: "missing file_id",
		},
		{
			name: "MissingBucket",
			body: `{"job_id":"j","file_id":"f","key":"k","type":"THUMBNAIL"}`,
			want: "missing bucket",
		},
		{
			name: "MissingKey",
			body: `{"job_id":"j","file_id":"f","bucket":"raw","type":"THUMBNAIL"}`,
			want: "missing key",
		},
		{
			name: "MissingType",
			body: `{"job_id":"j","file_id":"f","bucket":"raw","key":"k"}`,
			want: "missing type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.body))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, expected to contain %q", err, tt.want)
			}
		})
	}
}

func TestDecodeEnvelope_UnknownTypeAccepted(t *testing.T) {
	// Routing of unknown action types is a job-level decision, not a wire
	// error: the worker marks the job failed instead of dead-lettering.
	body := `{"job_id":"j","file_id":"f","bucket":"raw","key":"k","type":"HOLOGRAM"}`
	env, err := DecodeEnvelope([]byte(body))
	if err != nil {
		t.Fatalf("DecodeEnvelope rejected unknown type: %v", err)
	}
	if env.Type != "HOLOGRAM" {
		t.Errorf("type = %q, expected HOLOGRAM", env.Type)
	}
}

func TestAllQueues(t *testing.T) {
	expected := []string{
		"image_queue",
		"video_queue",
		"metadata_queue",
		"security_queue",
		"ai_queue",
		"generic_queue",
	}
	got := AllQueues()
	if len(got) != len(expected) {
		t.Fatalf("expected %d queues, got %d", len(expected), len(got))
	}
	for i, name := range expected {
		if got[i] != name {
			t.Errorf("queue[%d] = %q, expected %q", i, got[i], name)
		}
	}
}

func TestDeadQueueName(t *testing.T) {
	if got := DeadQueueName(QueueImage); got != "image_queue.dead" {
		t.Errorf("DeadQueueName = %q, expected image_queue.dead", got)
	}
}
