package security

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/worker"
)

// CompressHandler wraps the input in a deflate ZIP archive with a single
// entry named after the parent's original_name.
type CompressHandler struct{}

func (CompressHandler) Kind() models.ActionKind { return models.ActionCompress }

func (CompressHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	out := filepath.Join(req.WorkDir, "compressed.zip")
	if err := writeZip(out, req.InputPath, req.File.OriginalName); err != nil {
		return nil, err
	}

	key := req.File.ID + "_compressed.zip"
	return &worker.Result{Artifact: &worker.Artifact{
		LocalPath: out,
		Bucket:    objectstore.BucketProcessed,
		Key:       key,
		Name:      key,
		MimeType:  "application/zip",
	}}, nil
}

func writeZip(dst, src, entryName string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	w, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("adding archive entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("compressing input: %w", err)
	}
	return zw.Close()
}
