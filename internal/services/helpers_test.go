package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"fym-server/internal/mail"
	"fym-server/internal/models"
	"fym-server/internal/repository/gormstore"
	"fym-server/internal/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	db, err := gormstore.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, gormstore.AutoMigrate(db))
	t.Cleanup(func() { _ = gormstore.Close(db) })
	return db
}

type fakeSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) messages() []mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Message(nil), f.sent...)
}

// blockingSender holds every Send until release is closed or ctx ends
type blockingSender struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32

	mu  sync.Mutex
	err error
}

func newBlockingSender() *blockingSender {
	return &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingSender) Send(ctx context.Context, _ mail.Message) error {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		b.err = ctx.Err()
		b.mu.Unlock()
		return ctx.Err()
	}
}

func (b *blockingSender) lastErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, name string, r io.Reader, _ int64) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
	return nil
}

func (m *memBlobs) URL(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		return "", errors.New("no such blob")
	}
	return "https://blobs.test/" + name, nil
}

func (m *memBlobs) get(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[name]
	return string(data), ok
}

type recordingNotifier struct {
	mu     sync.Mutex
	trains []*models.Train
}

func (n *recordingNotifier) NotifyTrainAvailable(train *models.Train) {
	n.mu.Lock()
	n.trains = append(n.trains, train)
	n.mu.Unlock()
}
