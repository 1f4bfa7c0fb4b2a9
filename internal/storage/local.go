package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fym-server/internal/clock"

	"github.com/golang-jwt/jwt/v5"
)

// LocalStore keeps trains on the local filesystem. Download links are served
// by the application itself and carry an HS256 signature over the blob name.
type LocalStore struct {
	root    string
	baseURL string
	secret  []byte
	expiry  time.Duration
	clock   clock.Clock
}

var _ BlobStore = (*LocalStore)(nil)

// NewLocalStore creates the root directory if needed
func NewLocalStore(root, baseURL string, secret []byte, expiry time.Duration, clk clock.Clock) (*LocalStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("local blob store requires a signing secret")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		expiry:  expiry,
		clock:   clk,
	}, nil
}

// Put writes the train file, replacing any existing file with the same name
func (s *LocalStore) Put(_ context.Context, name string, r io.Reader, _ int64) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write train: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write train: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.root, name)); err != nil {
		return fmt.Errorf("failed to store train: %w", err)
	}
	return nil
}

// URL returns a signed link to GET /blobs/{name}
func (s *LocalStore) URL(_ context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   name,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	})
	sig, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign blob URL: %w", err)
	}

	return fmt.Sprintf("%s/blobs/%s?sig=%s", s.baseURL, url.PathEscape(name), url.QueryEscape(sig)), nil
}

// Open verifies sig for name and opens the blob
func (s *LocalStore) Open(name, sig string) (*os.File, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(sig, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || claims.Subject != name {
		return nil, ErrInvalidSignature
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open train: %w", err)
	}
	return f, nil
}
