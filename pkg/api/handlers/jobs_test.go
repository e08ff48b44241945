//go:build integration

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/filemill/filemill/pkg/models"
)

func TestJobsHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewJobsHandler(s)
	owner := newTestUser(t, s, "jobowner@example.com")
	stranger := newTestUser(t, s, "jobviewer@example.com")

	file := newTestFile(t, s, owner, "scan.pdf", time.Hour)
	job := &models.Job{
		ID:     uuid.NewString(),
		FileID: file.ID,
		Type:   models.ActionVirusScan,
		Status: models.JobQueued,
	}
	if _, err := s.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	t.Run("owner sees the job", func(t *testing.T) {
		req := authed(withPathID(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID, nil), job.ID), owner)
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Get() status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
		}
		var resp models.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp.ID != job.ID || resp.Type != models.ActionVirusScan || resp.Status != models.JobQueued {
			t.Errorf("unexpected job: %+v", resp)
		}
	})

	t.Run("foreign job is 403", func(t *testing.T) {
		req := authed(withPathID(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID, nil), job.ID), stranger)
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("Get() status = %d, want 403", rec.Code)
		}
	})

	t.Run("missing job is 404", func(t *testing.T) {
		id := uuid.NewString()
		req := authed(withPathID(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id, nil), id), owner)
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("Get() status = %d, want 404", rec.Code)
		}
	})
}

func TestJobsHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewJobsHandler(s)
	owner := newTestUser(t, s, "joblister@example.com")
	other := newTestUser(t, s, "jobother@example.com")

	mine := newTestFile(t, s, owner, "mine.png", time.Hour)
	theirs := newTestFile(t, s, other, "theirs.png", time.Hour)

	older := &models.Job{
		ID:        uuid.NewString(),
		FileID:    mine.ID,
		Type:      models.ActionThumbnail,
		Status:    models.JobCompleted,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &models.Job{
		ID:        uuid.NewString(),
		FileID:    mine.ID,
		Type:      models.ActionAITag,
		Status:    models.JobQueued,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	foreign := &models.Job{
		ID:     uuid.NewString(),
		FileID: theirs.ID,
		Type:   models.ActionThumbnail,
		Status: models.JobQueued,
	}
	for _, job := range []*models.Job{older, newer, foreign} {
		if _, err := s.CreateJob(context.Background(), job); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil), owner)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("List() status = %d, want 200", rec.Code)
	}
	var jobs []*models.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != newer.ID || jobs[1].ID != older.ID {
		t.Errorf("expected newest first, got %s then %s", jobs[0].ID, jobs[1].ID)
	}
	for _, job := range jobs {
		if job.ID == foreign.ID {
			t.Error("foreign job leaked into listing")
		}
	}
}
