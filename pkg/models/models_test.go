package models

import (
	"testing"
)

func TestParseActionKind(t *testing.T) {
	tests := []struct {
		input   string
		want    ActionKind
		wantErr bool
	}{
		{"thumbnail", ActionThumbnail, false},
		{"THUMBNAIL", ActionThumbnail, false},
		{"Image_Convert", ActionImageConvert, false},
		{"video_preview", ActionVideoPreview, false},
		{"  virus_scan ", ActionVirusScan, false},
		{"ai_tag", ActionAITag, false},
		{"metadata", ActionMetadata, false},
		{"shred", "", true},
		{"", "", true},
		{"thumb nail", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseActionKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseActionKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseActionKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestActionKind_IsValid(t *testing.T) {
	for _, kind := range AllActionKinds {
		if !kind.IsValid() {
			t.Errorf("ActionKind(%q).IsValid() = false, want true", kind)
		}
	}

	for _, invalid := range []ActionKind{"", "thumbnail", "SHRED"} {
		if invalid.IsValid() {
			t.Errorf("ActionKind(%q).IsValid() = true, want false", invalid)
		}
	}
}

func TestActionKind_ProducesArtifact(t *testing.T) {
	tests := []struct {
		kind     ActionKind
		artifact bool
	}{
		{ActionThumbnail, true},
		{ActionImageConvert, true},
		{ActionImageCompress, true},
		{ActionVideoThumbnail, true},
		{ActionVideoPreview, true},
		{ActionVideoConvert, true},
		{ActionCompress, true},
		{ActionEncrypt, true},
		{ActionDecrypt, true},
		{ActionVirusScan, false},
		{ActionAITag, false},
		{ActionMetadata, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.ProducesArtifact(); got != tt.artifact {
				t.Errorf("ProducesArtifact() = %v, want %v", got, tt.artifact)
			}
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobQueued, false},
		{JobRunning, false},
		{JobCompleted, true},
		{JobFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestFile_StemAndExt(t *testing.T) {
	tests := []struct {
		name     string
		original string
		stem     string
		ext      string
	}{
		{"plain", "cat.png", "cat", ".png"},
		{"double extension", "report.pdf.enc", "report.pdf", ".enc"},
		{"no extension", "README", "README", ""},
		{"dotted stem", "archive.tar.gz", "archive.tar", ".gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := File{OriginalName: tt.original}
			if got := f.Stem(); got != tt.stem {
				t.Errorf("Stem() = %q, want %q", got, tt.stem)
			}
			if got := f.Ext(); got != tt.ext {
				t.Errorf("Ext() = %q, want %q", got, tt.ext)
			}
		})
	}
}

func TestJob_Params(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		job := Job{}
		job.SetParams(map[string]any{"size": "128x128", "quality": float64(60)})

		params := job.GetParams()
		if params["size"] != "128x128" {
			t.Errorf("size = %v, want 128x128", params["size"])
		}
		if params["quality"] != float64(60) {
			t.Errorf("quality = %v, want 60", params["quality"])
		}
	})

	t.Run("empty", func(t *testing.T) {
		job := Job{}
		if got := job.GetParams(); len(got) != 0 {
			t.Errorf("expected empty params, got %v", got)
		}
		job.SetParams(nil)
		if job.Params != "" {
			t.Errorf("expected empty storage, got %q", job.Params)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		job := Job{Params: "{not json"}
		if got := job.GetParams(); len(got) != 0 {
			t.Errorf("expected empty params for invalid JSON, got %v", got)
		}
	})
}

func TestPipeline_Steps(t *testing.T) {
	p := Pipeline{}
	p.SetSteps([]PipelineStep{
		{Type: ActionThumbnail, Params: map[string]any{"size": "256x256"}},
		{Type: ActionAITag},
	})

	steps := p.GetSteps()
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Type != ActionThumbnail {
		t.Errorf("steps[0].Type = %q, want %q", steps[0].Type, ActionThumbnail)
	}
	if steps[1].Type != ActionAITag {
		t.Errorf("steps[1].Type = %q, want %q", steps[1].Type, ActionAITag)
	}
}

func TestFileMetadata_AITags(t *testing.T) {
	m := FileMetadata{}
	m.SetAITags([]string{"cat", "animal", "pet"})

	tags := m.GetAITags()
	if len(tags) != 3 {
		t.Fatalf("expected 3 tags, got %d", len(tags))
	}
	if tags[0] != "cat" {
		t.Errorf("tags[0] = %q, want cat", tags[0])
	}

	m.SetAITags(nil)
	if m.AITags != "" {
		t.Errorf("expected empty storage, got %q", m.AITags)
	}
}

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid user", User{Email: "a@b.io", Role: "user"}, false},
		{"valid admin", User{Email: "a@b.io", Role: "admin"}, false},
		{"empty role", User{Email: "a@b.io"}, false},
		{"missing email", User{Role: "user"}, true},
		{"invalid role", User{Email: "a@b.io", Role: "superuser"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
