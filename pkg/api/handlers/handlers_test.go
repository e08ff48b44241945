//go:build integration

package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/filemill/filemill/pkg/api/auth"
	"github.com/filemill/filemill/pkg/api/middleware"
	"github.com/filemill/filemill/pkg/dispatch"
	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/store"
)

func newTestStore(t *testing.T) *store.GORMStore {
	t.Helper()
	s, err := store.New(&store.Config{
		Type: store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestTokenService(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(auth.Config{
		Secret: "test-secret-key-that-is-at-least-32-characters-long",
		Issuer: "test",
	})
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}
	return svc
}

func newTestUser(t *testing.T, s *store.GORMStore, email string) *models.User {
	t.Helper()
	hash, err := store.HashPassword("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	if _, err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func newTestFile(t *testing.T, s *store.GORMStore, owner *models.User, name string, age time.Duration) *models.File {
	t.Helper()
	file := &models.File{
		ID:           uuid.NewString(),
		OwnerID:      owner.ID,
		OriginalName: name,
		Bucket:       objectstore.BucketRaw,
		Key:          owner.ID + "/" + name,
		SizeBytes:    int64(len(name)),
		MimeType:     "image/jpeg",
		Status:       models.FileUploaded,
		CreatedAt:    time.Now().Add(-age),
	}
	if _, err := s.CreateFile(context.Background(), file); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return file
}

// authed attaches bearer claims for the given user without going through
// the middleware.
func authed(req *http.Request, user *models.User) *http.Request {
	claims := &auth.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenType: auth.TokenTypeAccess,
	}
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

// withPathID installs a chi route context carrying the {id} parameter.
func withPathID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// fakeObjects is an in-memory ObjectStore double. Blobs are keyed
// "bucket/key".
type fakeObjects struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	presigned  []string
	deleted    []string
	presignErr error
	deleteErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{blobs: map[string][]byte{}}
}

func (f *fakeObjects) put(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[bucket+"/"+key] = data
}

func (f *fakeObjects) PresignGet(ctx context.Context, bucket, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.presigned = append(f.presigned, bucket+"/"+key)
	return fmt.Sprintf("https://minio.test/%s/%s?signed=1", bucket, key), nil
}

func (f *fakeObjects) GetReader(ctx context.Context, bucket, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[bucket+"/"+key]
	if !ok {
		return nil, objectstore.ObjectInfo{}, objectstore.ErrNotFound
	}
	info := objectstore.ObjectInfo{Size: int64(len(data)), ContentType: "application/octet-stream"}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (f *fakeObjects) Delete(ctx context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, bucket+"/"+key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.blobs, bucket+"/"+key)
	return nil
}

// fakeSubmitter records the upload it was handed and reads the spool so
// callers can assert on the bytes that reached submission.
type fakeSubmitter struct {
	calls   int
	last    dispatch.Upload
	spooled []byte
	result  *dispatch.Result
	err     error
}

func (f *fakeSubmitter) Submit(ctx context.Context, up dispatch.Upload) (*dispatch.Result, error) {
	f.calls++
	f.last = up
	if data, err := os.ReadFile(up.LocalPath); err == nil {
		f.spooled = data
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &dispatch.Result{File: &models.File{ID: "file-from-fake"}}, nil
}

// multipartBody builds a multipart upload body with a "file" part and an
// optional pipeline_actions field.
func multipartBody(t *testing.T, filename string, content []byte, actions string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if actions != "" {
		if err := mw.WriteField("pipeline_actions", actions); err != nil {
			t.Fatalf("failed to write actions field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}
