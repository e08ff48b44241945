package image

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/worker"
)

// fakeMetaStore records upserted metadata.
type fakeMetaStore struct {
	fileID string
	data   map[string]any
	err    error
}

func (s *fakeMetaStore) UpsertExifData(_ context.Context, fileID string, data map[string]any) error {
	if s.err != nil {
		return s.err
	}
	s.fileID = fileID
	s.data = data
	return nil
}

// writePNG renders a width x height test image. When translucent is set
// the left half is fully transparent.
func writePNG(t *testing.T, dir string, width, height int, translucent bool) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if translucent && x < width/2 {
				img.SetNRGBA(x, y, color.NRGBA{})
				continue
			}
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	path := filepath.Join(dir, "input.png")
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

func testRequest(t *testing.T, inputPath string, params map[string]any) *worker.Request {
	t.Helper()
	if params == nil {
		params = map[string]any{}
	}
	return &worker.Request{
		Job:       &models.Job{ID: "job-1"},
		File:      &models.File{ID: "file-1", OwnerID: "owner-1", OriginalName: "photo.png"},
		Params:    params,
		InputPath: inputPath,
		WorkDir:   t.TempDir(),
	}
}

func decodeArtifact(t *testing.T, path string) (image.Image, string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		t.Fatalf("artifact does not decode: %v", err)
	}
	return img, format
}

func TestThumbnail_Defaults(t *testing.T) {
	input := writePNG(t, t.TempDir(), 1024, 512, false)
	req := testRequest(t, input, nil)

	res, err := ThumbnailHandler{}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	art := res.Artifact
	if art == nil {
		t.Fatal("Expected an artifact")
	}
	if art.Key != "photo_thumb_256x256.jpg" {
		t.Errorf("key = %q, expected photo_thumb_256x256.jpg", art.Key)
	}
	if art.Name != art.Key {
		t.Errorf("name = %q, expected the object key", art.Name)
	}
	if art.Bucket != "thumbnails" {
		t.Errorf("bucket = %q, expected thumbnails", art.Bucket)
	}
	if art.MimeType != "image/jpeg" {
		t.Errorf("mime = %q, expected image/jpeg", art.MimeType)
	}

	img, format := decodeArtifact(t, art.LocalPath)
	if format != "jpeg" {
		t.Errorf("format = %q, expected jpeg", format)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 256 || bounds.Dy() != 128 {
		t.Errorf("thumbnail = %dx%d, expected 256x128", bounds.Dx(), bounds.Dy())
	}
}

func TestThumbnail_CustomSize(t *testing.T) {
	input := writePNG(t, t.TempDir(), 200, 100, false)
	req := testRequest(t, input, map[string]any{"size": "64x64"})

	res, err := ThumbnailHandler{}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Artifact.Key != "photo_thumb_64x64.jpg" {
		t.Errorf("key = %q, expected photo_thumb_64x64.jpg", res.Artifact.Key)
	}
	img, _ := decodeArtifact(t, res.Artifact.LocalPath)
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Errorf("thumbnail = %dx%d, expected 64x32", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestThumbnail_NeverUpscales(t *testing.T) {
	input := writePNG(t, t.TempDir(), 100, 50, false)
	req := testRequest(t, input, nil)

	res, err := ThumbnailHandler{}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img, _ := decodeArtifact(t, res.Artifact.LocalPath)
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("thumbnail = %dx%d, expected the 100x50 original", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestThumbnail_FlattensAlphaOntoWhite(t *testing.T) {
	input := writePNG(t, t.TempDir(), 64, 64, true)
	req := testRequest(t, input, map[string]any{"size": "64x64"})

	res, err := ThumbnailHandler{}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img, _ := decodeArtifact(t, res.Artifact.LocalPath)

	// The transparent left half must come out white, within JPEG noise.
	r, g, b, _ := img.At(4, 32).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("transparent region = rgb(%d,%d,%d), expected near-white", r>>8, g>>8, b>>8)
	}
}

func TestThumbnail_InvalidSize(t *testing.T) {
	input := writePNG(t, t.TempDir(), 10, 10, false)
	req := testRequest(t, input, map[string]any{"size": "huge"})

	if _, err := (ThumbnailHandler{}).Execute(context.Background(), req); err == nil {
		t.Fatal("Expected error for malformed size")
	}
}

func TestConvert_DefaultWebp(t *testing.T) {
	input := writePNG(t, t.TempDir(), 80, 40, false)
	req := testRequest(t, input, nil)

	res, err := ConvertHandler{}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	art := res.Artifact
	if art.Key != "photo_converted.webp" {
		t.Errorf("key = %q, expected photo_converted.webp", art.Key)
	}
	if art.Bucket != "processed" {
		t.Errorf("bucket = %q, expected processed", art.Bucket)
	}
	if art.MimeType != "image/webp" {
		t.Errorf("mime = %q, expected image/webp", art.MimeType)
	}
	img, format := decodeArtifact(t, art.LocalPath)
	if format != "webp" {
		t.Errorf("format = %q, expected webp", format)
	}
	if img.Bounds().Dx() != 80 || img.Bounds().Dy() != 40 {
		t.Errorf("converted = %dx%d, expected 80x40", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestConvert_JpgAliasNormalizesToJpeg(t *testing.T) {
	input := writePNG(t, t.TempDir(), 32, 32, false)
	req := testRequest(t, input, map[string]any{"target_format": "jpg", "quality": 70.0})

	res, err := ConvertHandler{}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Artifact.Key != "photo_converted.jpeg" {
		t.Errorf("key = %q, expected photo_converted.jpeg", res.Artifact.Key)
	}
	if res.Artifact.MimeType != "image/jpeg" {
		t.Errorf("mime = %q, expected image/jpeg", res.Artifact.MimeType)
	}
	if _, format := decodeArtifact(t, res.Artifact.LocalPath); format != "jpeg" {
		t.Errorf("format = %q, expected jpeg", format)
	}
}

func TestConvert_PNG(t *testing.T) {
	input := writePNG(t, t.TempDir(), 32, 32, true)
	req := testRequest(t, input, map[string]any{"target_format": "PNG"})

	res, err := ConvertHandler{}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Artifact.Key != "photo_converted.png" {
		t.Errorf("key = %q, expected photo_converted.png", res.Artifact.Key)
	}
	if res.Artifact.MimeType != "image/png" {
		t.Errorf("mime = %q, expected image/png", res.Artifact.MimeType)
	}
	if _, format := decodeArtifact(t, res.Artifact.LocalPath); format != "png" {
		t.Errorf("format = %q, expected png", format)
	}
}

func TestConvert_UnsupportedFormat(t *testing.T) {
	input := writePNG(t, t.TempDir(), 8, 8, false)
	req := testRequest(t, input, map[string]any{"target_format": "TIFF"})

	_, err := ConvertHandler{}.Execute(context.Background(), req)
	if err == nil {
		t.Fatal("Expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported target format: TIFF") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestCompress(t *testing.T) {
	input := writePNG(t, t.TempDir(), 120, 90, false)
	req := testRequest(t, input, nil)

	res, err := CompressHandler{}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	art := res.Artifact
	if art.Key != "photo_compressed.jpg" {
		t.Errorf("key = %q, expected photo_compressed.jpg", art.Key)
	}
	if art.Bucket != "processed" {
		t.Errorf("bucket = %q, expected processed", art.Bucket)
	}
	img, format := decodeArtifact(t, art.LocalPath)
	if format != "jpeg" {
		t.Errorf("format = %q, expected jpeg", format)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 90 {
		t.Errorf("compressed = %dx%d, expected the original 120x90", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestMetadata_UpsertsDimensions(t *testing.T) {
	input := writePNG(t, t.TempDir(), 320, 240, false)
	meta := &fakeMetaStore{}
	req := testRequest(t, input, nil)

	res, err := NewMetadataHandler(meta).Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Artifact != nil {
		t.Error("METADATA must not produce an artifact")
	}
	if meta.fileID != "file-1" {
		t.Errorf("upserted file = %q, expected file-1", meta.fileID)
	}
	if meta.data["width"] != 320 || meta.data["height"] != 240 {
		t.Errorf("dimensions = %vx%v, expected 320x240", meta.data["width"], meta.data["height"])
	}
	if meta.data["format"] != "PNG" {
		t.Errorf("format = %v, expected PNG", meta.data["format"])
	}
}

func TestMetadata_StoreErrorFailsJob(t *testing.T) {
	input := writePNG(t, t.TempDir(), 8, 8, false)
	meta := &fakeMetaStore{err: errors.New("store unavailable")}
	req := testRequest(t, input, nil)

	if _, err := NewMetadataHandler(meta).Execute(context.Background(), req); err == nil {
		t.Fatal("Expected store error to propagate")
	}
}

func TestHandlers_CoverImageQueueActions(t *testing.T) {
	handlers := Handlers(&fakeMetaStore{})
	kinds := make(map[models.ActionKind]bool, len(handlers))
	for _, h := range handlers {
		kinds[h.Kind()] = true
	}
	for _, kind := range []models.ActionKind{
		models.ActionThumbnail,
		models.ActionImageConvert,
		models.ActionImageCompress,
		models.ActionMetadata,
	} {
		if !kinds[kind] {
			t.Errorf("missing handler for %s", kind)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"256x256", 256, 256, false},
		{"640x480", 640, 480, false},
		{" 64 x 64 ", 64, 64, false},
		{"huge", 0, 0, true},
		{"0x100", 0, 0, true},
		{"-1x100", 0, 0, true},
		{"100", 0, 0, true},
		{"axb", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseSize(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseSize(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSize(%q) failed: %v", tt.in, err)
			continue
		}
		if w != tt.w || h != tt.h {
			t.Errorf("parseSize(%q) = %dx%d, expected %dx%d", tt.in, w, h, tt.w, tt.h)
		}
	}
}
