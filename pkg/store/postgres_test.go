//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/filemill/filemill/pkg/models"
)

// startPostgres provides a PostgreSQL server for the test: an external one
// when FILEMILL_TEST_POSTGRES_URL is set (CI with a service container), a
// throwaway testcontainer otherwise.
func startPostgres(t *testing.T) *Config {
	t.Helper()

	if url := os.Getenv("FILEMILL_TEST_POSTGRES_URL"); url != "" {
		return &Config{Type: DatabaseTypePostgres, URL: url}
	}

	ctx := context.Background()

	// PostgreSQL logs "ready to accept connections" twice during startup
	// (once during bootstrap, once when fully up), so wait for the second
	// occurrence. The deadline is generous because the image may need to
	// be pulled on first run.
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("filemill_test"),
		postgres.WithUsername("filemill_test"),
		postgres.WithPassword("filemill_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return &Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "filemill_test",
			User:     "filemill_test",
			Password: "filemill_test",
			SSLMode:  "disable",
		},
	}
}

// TestPostgresStore runs the store against a real PostgreSQL server. The
// SQLite suite covers query semantics; this one covers what only the
// PostgreSQL backend has: versioned migrations, the pgx connection path,
// dialect-specific constraint errors, and real foreign keys.
func TestPostgresStore(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	// Mirror the server startup sequence: versioned migrations first, then
	// open the store. The second run must be a clean no-op.
	if err := RunMigrations(ctx, cfg); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if err := RunMigrations(ctx, cfg); err != nil {
		t.Fatalf("re-running migrations on a migrated database failed: %v", err)
	}

	st, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Logf("failed to close store: %v", err)
		}
	})

	owner := pgTestUser(t, st, "owner@example.com")

	t.Run("Ping", func(t *testing.T) {
		if err := st.Ping(ctx); err != nil {
			t.Errorf("Ping() = %v, expected nil", err)
		}
	})

	t.Run("DuplicateEmailRejectedByDatabase", func(t *testing.T) {
		// The unique index lives in the database, not in application
		// code, so the dialect-specific violation must map to the
		// domain error.
		dup := &models.User{Email: "owner@example.com", PasswordHash: owner.PasswordHash}
		if _, err := st.CreateUser(ctx, dup); !errors.Is(err, models.ErrDuplicateEmail) {
			t.Errorf("CreateUser(duplicate) = %v, expected ErrDuplicateEmail", err)
		}
	})

	t.Run("SubmissionIsAtomic", func(t *testing.T) {
		file := &models.File{
			OwnerID:      owner.ID,
			OriginalName: "clip.mp4",
			Bucket:       "filemill-raw",
			Key:          owner.ID + "/clip.mp4",
			SizeBytes:    2048,
			MimeType:     "video/mp4",
			Status:       models.FileUploaded,
		}
		pipeline := &models.Pipeline{Name: "clip.mp4"}
		pipeline.SetSteps([]models.PipelineStep{
			{Type: models.ActionVideoThumbnail},
			{Type: models.ActionVideoPreview},
		})
		jobs := []*models.Job{
			{Type: models.ActionVideoThumbnail},
			{Type: models.ActionVideoPreview},
		}

		if err := st.CreateFileWithJobs(ctx, file, pipeline, jobs); err != nil {
			t.Fatalf("CreateFileWithJobs() failed: %v", err)
		}
		if file.ID == "" {
			t.Fatal("file ID not assigned")
		}

		stored, err := st.GetFile(ctx, file.ID)
		if err != nil {
			t.Fatalf("GetFile() failed: %v", err)
		}
		if stored.OriginalName != "clip.mp4" {
			t.Errorf("OriginalName = %q, expected %q", stored.OriginalName, "clip.mp4")
		}

		pipelines, err := st.ListPipelinesByFile(ctx, file.ID)
		if err != nil {
			t.Fatalf("ListPipelinesByFile() failed: %v", err)
		}
		if len(pipelines) != 1 {
			t.Fatalf("got %d pipelines, expected 1", len(pipelines))
		}
		if steps := pipelines[0].GetSteps(); len(steps) != 2 {
			t.Errorf("got %d pipeline steps, expected 2", len(steps))
		}

		listed, err := st.ListJobsByFile(ctx, file.ID)
		if err != nil {
			t.Fatalf("ListJobsByFile() failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("got %d jobs, expected 2", len(listed))
		}
		for _, job := range listed {
			if job.Status != models.JobQueued {
				t.Errorf("job %s status = %s, expected QUEUED", job.ID, job.Status)
			}
			if job.PipelineID == nil || *job.PipelineID != pipeline.ID {
				t.Errorf("job %s not linked to pipeline %s", job.ID, pipeline.ID)
			}
		}
	})

	t.Run("MetadataJSONRoundTrip", func(t *testing.T) {
		file := pgTestFile(t, st, owner.ID, "photo.jpg")

		exif := map[string]any{"Make": "Canon", "Model": "EOS R5", "ISO": float64(400)}
		if err := st.UpsertExifData(ctx, file.ID, exif); err != nil {
			t.Fatalf("UpsertExifData() failed: %v", err)
		}
		if err := st.UpsertAITags(ctx, file.ID, []string{"sunset", "beach"}); err != nil {
			t.Fatalf("UpsertAITags() failed: %v", err)
		}

		meta, err := st.GetMetadataByFileID(ctx, file.ID)
		if err != nil {
			t.Fatalf("GetMetadataByFileID() failed: %v", err)
		}
		got := meta.GetExifData()
		if got["Make"] != "Canon" || got["ISO"] != float64(400) {
			t.Errorf("exif data = %v, expected Make/ISO to survive", got)
		}
		tags := meta.GetAITags()
		if len(tags) != 2 || tags[0] != "sunset" {
			t.Errorf("ai tags = %v, expected [sunset beach]", tags)
		}
	})

	t.Run("CascadeRespectsForeignKeys", func(t *testing.T) {
		// The versioned schema carries real REFERENCES constraints that
		// the SQLite AutoMigrate schema does not, so the delete ordering
		// inside the cascade is only proven here.
		parent := pgTestFile(t, st, owner.ID, "report.pdf")
		child := pgTestDerived(t, st, owner.ID, parent.ID, "report_thumb.jpg")
		grandchild := pgTestDerived(t, st, owner.ID, child.ID, "report_thumb_small.jpg")

		job := &models.Job{
			FileID:       parent.ID,
			Type:         models.ActionThumbnail,
			Status:       models.JobCompleted,
			ResultFileID: &child.ID,
		}
		if _, err := st.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob() failed: %v", err)
		}
		if err := st.UpsertAITags(ctx, parent.ID, []string{"document"}); err != nil {
			t.Fatalf("UpsertAITags() failed: %v", err)
		}

		refs, err := st.DeleteFileCascade(ctx, parent.ID)
		if err != nil {
			t.Fatalf("DeleteFileCascade() failed: %v", err)
		}
		if len(refs) != 3 {
			t.Errorf("got %d object refs, expected 3 (parent, child, grandchild)", len(refs))
		}

		for _, id := range []string{parent.ID, child.ID, grandchild.ID} {
			if _, err := st.GetFile(ctx, id); !errors.Is(err, models.ErrFileNotFound) {
				t.Errorf("GetFile(%s) after cascade = %v, expected ErrFileNotFound", id, err)
			}
		}
		if _, err := st.GetJob(ctx, job.ID); !errors.Is(err, models.ErrJobNotFound) {
			t.Errorf("GetJob() after cascade = %v, expected ErrJobNotFound", err)
		}
	})
}

func pgTestUser(t *testing.T, s *GORMStore, email string) *models.User {
	t.Helper()
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{Email: email, PasswordHash: hash}
	if _, err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func pgTestFile(t *testing.T, s *GORMStore, ownerID, name string) *models.File {
	t.Helper()
	file := &models.File{
		OwnerID:      ownerID,
		OriginalName: name,
		Bucket:       "filemill-raw",
		Key:          fmt.Sprintf("%s/%s", ownerID, name),
		SizeBytes:    1024,
		Status:       models.FileUploaded,
	}
	if _, err := s.CreateFile(context.Background(), file); err != nil {
		t.Fatalf("failed to create test file %s: %v", name, err)
	}
	return file
}

func pgTestDerived(t *testing.T, s *GORMStore, ownerID, parentID, name string) *models.File {
	t.Helper()
	file := &models.File{
		OwnerID:           ownerID,
		OriginalName:      name,
		Bucket:            "filemill-thumbnails",
		Key:               fmt.Sprintf("%s/%s", ownerID, name),
		SizeBytes:         256,
		Status:            models.FileReady,
		IsProcessedOutput: true,
		ParentFileID:      &parentID,
	}
	if _, err := s.CreateFile(context.Background(), file); err != nil {
		t.Fatalf("failed to create derived test file %s: %v", name, err)
	}
	return file
}
