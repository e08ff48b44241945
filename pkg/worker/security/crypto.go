package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/filemill/filemill/pkg/models"
	"github.com/filemill/filemill/pkg/objectstore"
	"github.com/filemill/filemill/pkg/worker"
)

// Container layout: magic, version, argon2id parameters, salt, nonce,
// AES-256-GCM ciphertext. Only KDF parameters and salt are stored, never
// key material, so decryption needs nothing beyond the passphrase.
const (
	containerMagic   = "FMLX1"
	containerVersion = 0x01

	keyLen   = 32
	saltLen  = 16
	nonceLen = 12

	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// headerLen covers magic, version, time, memory, threads, salt and nonce.
const headerLen = len(containerMagic) + 1 + 4 + 4 + 1 + saltLen + nonceLen

var errNotContainer = errors.New("input is not a filemill encryption container")

// EncryptHandler seals the input into a self-describing container under a
// key derived from params.passphrase.
type EncryptHandler struct{}

func (EncryptHandler) Kind() models.ActionKind { return models.ActionEncrypt }

func (EncryptHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	passphrase := req.StringParam("passphrase", "")
	if passphrase == "" {
		return nil, errors.New("encrypt requires a passphrase parameter")
	}

	plain, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	sealed, err := sealContainer(plain, passphrase)
	if err != nil {
		return nil, err
	}

	out := filepath.Join(req.WorkDir, "sealed.enc")
	if err := os.WriteFile(out, sealed, 0o600); err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}

	key := fmt.Sprintf("%s_encrypted%s.enc", stem(req.File.OriginalName), filepath.Ext(req.File.OriginalName))
	return &worker.Result{Artifact: &worker.Artifact{
		LocalPath: out,
		Bucket:    objectstore.BucketEncrypted,
		Key:       key,
		Name:      key,
		MimeType:  "application/octet-stream",
	}}, nil
}

// DecryptHandler is the inverse of EncryptHandler. A wrong passphrase or
// tampered input fails GCM authentication and the job with it.
type DecryptHandler struct{}

func (DecryptHandler) Kind() models.ActionKind { return models.ActionDecrypt }

func (DecryptHandler) Execute(ctx context.Context, req *worker.Request) (*worker.Result, error) {
	passphrase := req.StringParam("passphrase", "")
	if passphrase == "" {
		return nil, errors.New("decrypt requires a passphrase parameter")
	}

	sealed, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	plain, err := openContainer(sealed, passphrase)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(req.File.OriginalName, ".enc")
	out := filepath.Join(req.WorkDir, "opened"+filepath.Ext(name))
	if err := os.WriteFile(out, plain, 0o600); err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}

	key := fmt.Sprintf("%s_decrypted%s", stem(name), filepath.Ext(name))
	return &worker.Result{Artifact: &worker.Artifact{
		LocalPath: out,
		Bucket:    objectstore.BucketProcessed,
		Key:       key,
		Name:      key,
		MimeType:  "application/octet-stream",
	}}, nil
}

// sealContainer encrypts plain under a key derived from the passphrase.
func sealContainer(plain []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	gcm, err := newGCM(passphrase, salt, argonTime, argonMemory, argonThreads)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerLen+len(plain)+gcm.Overhead())
	out = append(out, containerMagic...)
	out = append(out, containerVersion)
	out = binary.BigEndian.AppendUint32(out, argonTime)
	out = binary.BigEndian.AppendUint32(out, argonMemory)
	out = append(out, argonThreads)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plain, nil), nil
}

// openContainer re-derives the key from the stored parameters and opens
// the ciphertext.
func openContainer(sealed []byte, passphrase string) ([]byte, error) {
	if len(sealed) < headerLen || string(sealed[:len(containerMagic)]) != containerMagic {
		return nil, errNotContainer
	}
	rest := sealed[len(containerMagic):]
	if rest[0] != containerVersion {
		return nil, fmt.Errorf("unsupported container version %d", rest[0])
	}
	kdfTime := binary.BigEndian.Uint32(rest[1:5])
	kdfMemory := binary.BigEndian.Uint32(rest[5:9])
	kdfThreads := rest[9]
	salt := rest[10 : 10+saltLen]
	nonce := rest[10+saltLen : 10+saltLen+nonceLen]
	ciphertext := rest[10+saltLen+nonceLen:]

	gcm, err := newGCM(passphrase, salt, kdfTime, kdfMemory, kdfThreads)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("decryption failed: wrong passphrase or corrupted data")
	}
	return plain, nil
}

func newGCM(passphrase string, salt []byte, time, memory uint32, threads uint8) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, time, memory, threads, keyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
