package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fym-server/internal/clock"
	"fym-server/internal/models"
	"fym-server/internal/repository"
	"fym-server/internal/storage"

	"github.com/rs/zerolog/log"
)

const (
	uploadDateLayout = "2006-01-02"
	ingestPattern    = "Y*.zr*"
)

// Notifier is told about new trains after they are stored
type Notifier interface {
	NotifyTrainAvailable(train *models.Train)
}

// MailboxService handles train upload, listing and download
type MailboxService struct {
	trains   repository.TrainStore
	blobs    storage.BlobStore
	notifier Notifier
	clock    clock.Clock
}

// NewMailboxService creates a new mailbox service. notifier may be nil.
func NewMailboxService(trains repository.TrainStore, blobs storage.BlobStore, notifier Notifier, clk clock.Clock) *MailboxService {
	return &MailboxService{
		trains:   trains,
		blobs:    blobs,
		notifier: notifier,
		clock:    clk,
	}
}

// UploadRequest carries one train file
type UploadRequest struct {
	Filename string
	Payload  io.Reader
	Size     int64
}

// ListRequest holds the optional listing filters as received
type ListRequest struct {
	SearchPlayer string
	Filename     string
	UploadBefore string
}

// Upload stores the payload under its filename and records it as available
// to the player named in the filename
func (s *MailboxService) Upload(ctx context.Context, req UploadRequest) (*models.Train, error) {
	if req.Filename == "" {
		return nil, models.NewBadRequest("filename", "no filename provided")
	}
	if req.Payload == nil {
		return nil, &models.BadRequestError{Field: "file", Reason: models.ErrMissingPayload.Error(), Err: models.ErrMissingPayload}
	}

	routing, err := ParseTrainFilename(req.Filename)
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Put(ctx, req.Filename, req.Payload, req.Size); err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			return nil, &models.BadRequestError{Field: "filename", Reason: err.Error(), Err: err}
		}
		return nil, fmt.Errorf("failed to store train: %w", err)
	}

	train := &models.Train{
		Filename:   req.Filename,
		FromPlayer: routing.From,
		ToPlayer:   routing.To,
		UploadDate: models.Date(s.clock.Now()),
		State:      models.TrainAvailable,
	}
	if err := s.trains.Create(ctx, train); err != nil {
		return nil, fmt.Errorf("failed to record train: %w", err)
	}

	log.Info().
		Int64("train_id", train.ID).
		Str("filename", train.Filename).
		Str("from_player", train.FromPlayer).
		Str("to_player", train.ToPlayer).
		Str("state", train.State.String()).
		Msg("Train uploaded")

	if s.notifier != nil {
		s.notifier.NotifyTrainAvailable(train)
	}
	return train, nil
}

// List returns available trains matching req in ascending ID order
func (s *MailboxService) List(ctx context.Context, req ListRequest) ([]*models.Train, error) {
	filter := models.TrainFilter{
		Player:           req.SearchPlayer,
		FilenameContains: req.Filename,
	}
	if req.UploadBefore != "" {
		before, err := time.Parse(uploadDateLayout, req.UploadBefore)
		if err != nil {
			return nil, &models.BadRequestError{
				Field:  "upload_before",
				Reason: models.ErrMalformedDate.Error(),
				Err:    models.ErrMalformedDate,
			}
		}
		filter.UploadedBefore = &before
	}

	trains, err := s.trains.ListAvailable(ctx, filter)
	if err != nil {
		return nil, err
	}
	if trains == nil {
		trains = []*models.Train{}
	}
	return trains, nil
}

// ClaimDownload marks the train downloaded by player and returns where to
// fetch it. Only one caller can claim a given train.
func (s *MailboxService) ClaimDownload(ctx context.Context, id int64, player string) (string, error) {
	if player == "" {
		return "", models.NewBadRequest("player", "no player specified")
	}

	train, err := s.trains.Claim(ctx, id, player)
	if err != nil {
		return "", err
	}

	url, err := s.blobs.URL(ctx, train.Filename)
	if err != nil {
		log.Error().Err(err).Int64("train_id", id).Msg("Train claimed but no download URL")
		return "", fmt.Errorf("failed to get train URL: %w", err)
	}

	log.Info().
		Int64("train_id", id).
		Str("player", player).
		Str("state", train.State.String()).
		Msg("Train downloaded")
	return url, nil
}

// Ingest uploads every train file in dir and returns how many were stored
func (s *MailboxService) Ingest(ctx context.Context, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, ingestPattern))
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(paths)

	count := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := s.ingestFile(ctx, p); err != nil {
			return count, fmt.Errorf("failed to ingest %s: %w", filepath.Base(p), err)
		}
		count++
	}
	return count, nil
}

func (s *MailboxService) ingestFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	_, err = s.Upload(ctx, UploadRequest{
		Filename: filepath.Base(path),
		Payload:  f,
		Size:     info.Size(),
	})
	return err
}
