package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fym-server/internal/clock"
	"fym-server/internal/models"
	"fym-server/internal/repository/gormstore"

	"github.com/stretchr/testify/suite"
)

const exampleTrain = "Y1234-01E02F034C0-000123-Player1-Player2.zrn"

type MailboxSuite struct {
	suite.Suite
	trains   *gormstore.TrainStore
	blobs    *memBlobs
	notifier *recordingNotifier
	clock    *clock.FixedClock
	svc      *MailboxService
	ctx      context.Context
}

func TestMailboxSuite(t *testing.T) {
	suite.Run(t, new(MailboxSuite))
}

func (s *MailboxSuite) SetupTest() {
	s.trains = gormstore.NewTrainStore(setupDB(s.T()))
	s.blobs = newMemBlobs()
	s.notifier = &recordingNotifier{}
	s.clock = clock.NewFixed(time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC))
	s.svc = NewMailboxService(s.trains, s.blobs, s.notifier, s.clock)
	s.ctx = context.Background()
}

func (s *MailboxSuite) upload(name string) *models.Train {
	t, err := s.svc.Upload(s.ctx, UploadRequest{Filename: name, Payload: strings.NewReader("data:" + name)})
	s.Require().NoError(err)
	return t
}

func (s *MailboxSuite) listIDs(req ListRequest) []int64 {
	trains, err := s.svc.List(s.ctx, req)
	s.Require().NoError(err)
	ids := make([]int64, 0, len(trains))
	for _, t := range trains {
		ids = append(ids, t.ID)
	}
	return ids
}

func (s *MailboxSuite) TestUploadRoutesByFilename() {
	t := s.upload(exampleTrain)

	s.NotZero(t.ID)
	s.Equal("Player1", t.ToPlayer)
	s.Equal("Player2", t.FromPlayer)
	s.Equal(models.TrainAvailable, t.State)
	s.True(t.UploadDate.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	data, ok := s.blobs.get(exampleTrain)
	s.True(ok)
	s.Equal("data:"+exampleTrain, data)

	stored, err := s.trains.GetByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(exampleTrain, stored.Filename)

	s.Require().Len(s.notifier.trains, 1)
	s.Equal(t.ID, s.notifier.trains[0].ID)
}

func (s *MailboxSuite) TestUploadRejectsBadInput() {
	_, err := s.svc.Upload(s.ctx, UploadRequest{Payload: strings.NewReader("x")})
	s.True(models.IsBadRequest(err))

	_, err = s.svc.Upload(s.ctx, UploadRequest{Filename: exampleTrain})
	s.ErrorIs(err, models.ErrMissingPayload)

	_, err = s.svc.Upload(s.ctx, UploadRequest{Filename: "Y1-a-b.zrn", Payload: strings.NewReader("x")})
	s.ErrorIs(err, models.ErrMalformedFilename)

	_, err = s.svc.Upload(s.ctx, UploadRequest{Filename: "../Y1-a-b-P1-P2.zrn", Payload: strings.NewReader("x")})
	s.True(models.IsBadRequest(err))

	s.Empty(s.listIDs(ListRequest{}))
	s.Empty(s.notifier.trains)
}

func (s *MailboxSuite) TestUploadStoreFailure() {
	s.blobs.err = errors.New("bucket gone")

	_, err := s.svc.Upload(s.ctx, UploadRequest{Filename: exampleTrain, Payload: strings.NewReader("x")})
	s.Error(err)
	s.False(models.IsBadRequest(err))
	s.Empty(s.listIDs(ListRequest{}))
}

func (s *MailboxSuite) TestListFilters() {
	t1 := s.upload("Y1-a-b-P2-P1.zrn")
	s.clock.Advance(24 * time.Hour)
	t2 := s.upload("Y2-a-b-P1-P3.zrn")
	s.clock.Advance(24 * time.Hour)
	t3 := s.upload("Y3-a-b-P4-P3.zrn")

	s.Equal([]int64{t1.ID, t2.ID, t3.ID}, s.listIDs(ListRequest{}))
	s.Equal([]int64{t1.ID, t2.ID}, s.listIDs(ListRequest{SearchPlayer: "P1"}))
	s.Equal([]int64{t2.ID, t3.ID}, s.listIDs(ListRequest{SearchPlayer: "P3"}))
	s.Equal([]int64{t3.ID}, s.listIDs(ListRequest{Filename: "P4-"}))
	s.Empty(s.listIDs(ListRequest{Filename: "p4-"}))
	s.Equal([]int64{t1.ID, t2.ID}, s.listIDs(ListRequest{UploadBefore: "2024-05-02"}))
	s.Equal([]int64{t2.ID}, s.listIDs(ListRequest{SearchPlayer: "P3", UploadBefore: "2024-05-02"}))
}

func (s *MailboxSuite) TestListMalformedDate() {
	for _, v := range []string{"2024/05/01", "yesterday", "2024-13-01"} {
		_, err := s.svc.List(s.ctx, ListRequest{UploadBefore: v})
		s.ErrorIs(err, models.ErrMalformedDate, v)
	}
}

func (s *MailboxSuite) TestListEmptyIsNotNil() {
	trains, err := s.svc.List(s.ctx, ListRequest{})
	s.Require().NoError(err)
	s.NotNil(trains)
	s.Empty(trains)
}

func (s *MailboxSuite) TestClaimDownload() {
	t := s.upload(exampleTrain)

	url, err := s.svc.ClaimDownload(s.ctx, t.ID, "Player1")
	s.Require().NoError(err)
	s.Equal("https://blobs.test/"+exampleTrain, url)

	stored, err := s.trains.GetByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(models.TrainDownloaded, stored.State)
	s.Equal("Player1", stored.DownloadedBy)

	_, err = s.svc.ClaimDownload(s.ctx, t.ID, "Player1")
	s.ErrorIs(err, models.ErrTrainUnavailable)

	_, err = s.svc.ClaimDownload(s.ctx, t.ID+100, "Player1")
	s.ErrorIs(err, models.ErrTrainNotFound)

	_, err = s.svc.ClaimDownload(s.ctx, t.ID, "")
	s.True(models.IsBadRequest(err))

	s.Empty(s.listIDs(ListRequest{}))
}

func (s *MailboxSuite) TestConcurrentClaimDownload() {
	t := s.upload(exampleTrain)

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		urls   []string
		losses int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, err := s.svc.ClaimDownload(s.ctx, t.ID, "Player1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				urls = append(urls, url)
			} else if errors.Is(err, models.ErrTrainUnavailable) {
				losses++
			}
		}()
	}
	wg.Wait()

	s.Len(urls, 1)
	s.Equal(workers-1, losses)
}

func (s *MailboxSuite) TestIngest() {
	dir := s.T().TempDir()
	for name, body := range map[string]string{
		"Y1-a-b-P2-P1.zrn": "one",
		"Y2-a-b-P1-P2.zrx": "two",
		"notes.txt":        "skip",
		"X3-a-b-P1-P2.zrn": "skip",
	} {
		s.Require().NoError(os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	n, err := s.svc.Ingest(s.ctx, dir)
	s.Require().NoError(err)
	s.Equal(2, n)

	trains, err := s.svc.List(s.ctx, ListRequest{})
	s.Require().NoError(err)
	s.Require().Len(trains, 2)
	s.Equal("Y1-a-b-P2-P1.zrn", trains[0].Filename)
	s.Equal("Y2-a-b-P1-P2.zrx", trains[1].Filename)

	data, _ := s.blobs.get("Y2-a-b-P1-P2.zrx")
	s.Equal("two", data)
}

func (s *MailboxSuite) TestIngestStopsOnMalformedName() {
	dir := s.T().TempDir()
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "Y1-a-b-P2-P1.zrn"), []byte("ok"), 0o644))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "Y2-bad.zrn"), []byte("bad"), 0o644))

	n, err := s.svc.Ingest(s.ctx, dir)
	s.ErrorIs(err, models.ErrMalformedFilename)
	s.Equal(1, n)
}
