// Package video implements the video fleet handlers: VIDEO_THUMBNAIL,
// VIDEO_PREVIEW and VIDEO_CONVERT. All shell out to ffmpeg under the job
// deadline; a killed or failing subprocess fails the job with its
// trailing stderr.
package video

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/worker"
)

// stderrTailBytes caps how much ffmpeg stderr lands in error_message.
const stderrTailBytes = 512

// Handlers returns the video fleet's action implementations.
func Handlers(cfg config.WorkerConfig) []worker.Handler {
	bin := cfg.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	return []worker.Handler{
		ThumbnailHandler{bin: bin, run: runFFmpeg},
		PreviewHandler{bin: bin, run: runFFmpeg},
		ConvertHandler{bin: bin, run: runFFmpeg},
	}
}

// ffmpegRunner executes one ffmpeg invocation. Swapped in tests.
type ffmpegRunner func(ctx context.Context, bin string, args ...string) error

// runFFmpeg invokes the binary via CommandContext so a passed deadline
// kills the subprocess. Non-zero exits surface the stderr tail.
func runFFmpeg(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), stderrTailBytes))
	}
	return nil
}

// tail returns at most n trailing bytes of s.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// stem returns name without its extension.
func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
