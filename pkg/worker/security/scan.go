package security

import (
	"context"
	"fmt"
	"io"
	"os"

	clamd "github.com/dutchcoders/go-clamd"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/worker"
)

const (
	verdictClean       = "clean"
	verdictUnavailable = "clean: scanner unavailable"
)

// clamdClient is the slice of go-clamd the scan handler uses.
type clamdClient interface {
	Ping() error
	ScanStream(r io.Reader, abort chan bool) (chan *clamd.ScanResult, error)
}

// ScanHandler streams the input through clamd. An unreachable or failing
// scanner downgrades to an informational clean verdict; only a positive
// finding condemns the file.
type ScanHandler struct {
	clam clamdClient
}

// NewScanHandler connects to clamd at address, e.g. "tcp://clamav:3310".
func NewScanHandler(address string) ScanHandler {
	return ScanHandler{clam: clamd.NewClamd(address)}
}

func (ScanHandler) Kind() models.ActionKind { return models.ActionVirusScan }

func (h ScanHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	if err := h.clam.Ping(); err != nil {
		logger.WarnCtx(ctx, "Virus scanner unreachable, recording informational verdict", logger.Err(err))
		return &worker.Result{Message: verdictUnavailable}, nil
	}

	f, err := os.Open(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	abort := make(chan bool)
	defer close(abort)
	results, err := h.clam.ScanStream(f, abort)
	if err != nil {
		logger.WarnCtx(ctx, "Virus scan failed, recording informational verdict", logger.Err(err))
		return &worker.Result{Message: fmt.Sprintf("clean: scan error: %v", err)}, nil
	}

	for res := range results {
		switch res.Status {
		case clamd.RES_FOUND:
			return nil, &worker.FileFailure{Message: "Virus detected: " + res.Description}
		case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
			logger.WarnCtx(ctx, "Virus scan returned an error, recording informational verdict", logger.Status(res.Status))
			return &worker.Result{Message: "clean: scan error: " + res.Description}, nil
		}
	}
	return &worker.Result{Message: verdictClean}, nil
}
