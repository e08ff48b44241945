// Package security implements the security fleet handlers: VIRUS_SCAN,
// ENCRYPT, DECRYPT and COMPRESS. Derived artifacts keep the object key
// as their display name.
package security

import (
	"path/filepath"
	"strings"

	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/worker"
)

// Handlers returns the security fleet's action implementations.
func Handlers(cfg config.WorkerConfig) []worker.Handler {
	return []worker.Handler{
		NewScanHandler(cfg.ClamdAddress),
		EncryptHandler{},
		DecryptHandler{},
		CompressHandler{},
	}
}

// stem returns name without its extension.
func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
