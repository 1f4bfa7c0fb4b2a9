package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"fym-server/internal/clock"
	"fym-server/internal/models"
	"fym-server/internal/otp"
	"fym-server/internal/repository/gormstore"

	"github.com/stretchr/testify/suite"
)

const (
	testStep   = 30
	testDrift  = 3
	testIssued = 1_700_000_010
	// otp of "secretkey" at counter 56666667
	testCode = 632339
)

type CredentialSuite struct {
	suite.Suite
	players *gormstore.PlayerStore
	sender  *fakeSender
	clock   *clock.FixedClock
	svc     *CredentialService
	ctx     context.Context
}

func TestCredentialSuite(t *testing.T) {
	suite.Run(t, new(CredentialSuite))
}

func (s *CredentialSuite) SetupTest() {
	s.players = gormstore.NewPlayerStore(setupDB(s.T()))
	s.sender = &fakeSender{}
	s.clock = clock.NewFixed(time.Unix(testIssued, 0))
	s.svc = NewCredentialService(s.players, s.sender, s.clock, CredentialConfig{
		ServerSecret: "secret",
		StepSeconds:  testStep,
		DriftRange:   testDrift,
		FromAddress:  "noreply@fymanager.com",
	})
	s.ctx = context.Background()
}

// seedPlayer stores a player whose OTP key is "secretkey"
func (s *CredentialSuite) seedPlayer(email string) *models.Player {
	p := &models.Player{ID: "6f1c1d4e-0000-4000-8000-000000000001", Username: "Player1", Email: email, Token: "key"}
	s.Require().NoError(s.players.Create(s.ctx, p))
	return p
}

func (s *CredentialSuite) TestEnsurePlayerCreatesOnce() {
	first, err := s.svc.EnsurePlayer(s.ctx, "Player1")
	s.Require().NoError(err)
	s.Len(first.ID, 36)
	s.Len(first.Token, tokenLength)
	for _, c := range first.Token {
		s.True(strings.ContainsRune(tokenChars, c), "unexpected token char %q", c)
	}

	second, err := s.svc.EnsurePlayer(s.ctx, "Player1")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(first.Token, second.Token)

	other, err := s.svc.EnsurePlayer(s.ctx, "Player2")
	s.Require().NoError(err)
	s.NotEqual(first.ID, other.ID)
	s.NotEqual(first.Token, other.Token)
}

func (s *CredentialSuite) TestEnsurePlayerValidatesUsername() {
	_, err := s.svc.EnsurePlayer(s.ctx, "")
	s.True(models.IsBadRequest(err))

	_, err = s.svc.EnsurePlayer(s.ctx, strings.Repeat("x", maxUsernameLength+1))
	s.True(models.IsBadRequest(err))
}

func (s *CredentialSuite) TestEnsurePlayerConcurrent() {
	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.svc.EnsurePlayer(s.ctx, "Racer")
			errs[i] = err
			if err == nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}
}

func (s *CredentialSuite) TestIssueCodeUsesServerSecretAndToken() {
	p := s.seedPlayer("")

	code, err := s.svc.IssueCode(p)
	s.Require().NoError(err)
	s.Equal(testCode, code)
}

func (s *CredentialSuite) TestRequestCodeDelivers() {
	s.seedPlayer("p1@example.com")

	s.Require().NoError(s.svc.RequestCode(s.ctx, "Player1"))
	s.svc.Wait()

	msgs := s.sender.messages()
	s.Require().Len(msgs, 1)
	s.Equal("[Freight Yard Manager] Authentication Code", msgs[0].Subject)
	s.Equal("noreply@fymanager.com", msgs[0].From)
	s.Equal([]string{"p1@example.com"}, msgs[0].To)
	s.Contains(msgs[0].Body, "\n"+strconv.Itoa(testCode)+"\n")
}

func (s *CredentialSuite) TestRequestCodeWithoutEmail() {
	s.seedPlayer("")

	s.Require().NoError(s.svc.RequestCode(s.ctx, "Player1"))
	s.svc.Wait()
	s.Empty(s.sender.messages())
}

func (s *CredentialSuite) TestRequestCodeUnknownPlayer() {
	s.Require().NoError(s.svc.RequestCode(s.ctx, "nobody"))
	s.svc.Wait()
	s.Empty(s.sender.messages())

	_, err := s.players.GetByUsername(s.ctx, "nobody")
	s.ErrorIs(err, models.ErrPlayerNotFound, "request must not create players")
}

func (s *CredentialSuite) TestRequestCodeMissingPlayer() {
	s.True(models.IsBadRequest(s.svc.RequestCode(s.ctx, "")))
}

func (s *CredentialSuite) TestDeliveryFailureIsSwallowed() {
	s.seedPlayer("p1@example.com")
	s.sender.err = errors.New("smtp down")

	s.NoError(s.svc.RequestCode(s.ctx, "Player1"))
	s.svc.Wait()
}

func (s *CredentialSuite) TestRequestCodeDoesNotWaitForMail() {
	s.seedPlayer("p1@example.com")
	sender := newBlockingSender()
	svc := NewCredentialService(s.players, sender, s.clock, CredentialConfig{
		ServerSecret: "secret",
		StepSeconds:  testStep,
		DriftRange:   testDrift,
	})

	start := time.Now()
	s.Require().NoError(svc.RequestCode(s.ctx, "Player1"))
	s.Less(time.Since(start), 500*time.Millisecond)

	// a known player with email and an unknown one answer alike
	start = time.Now()
	s.Require().NoError(svc.RequestCode(s.ctx, "nobody"))
	s.Less(time.Since(start), 500*time.Millisecond)

	select {
	case <-sender.started:
	case <-time.After(2 * time.Second):
		s.FailNow("delivery never started")
	}
	close(sender.release)
	svc.Wait()
	s.Equal(int32(1), sender.calls.Load())
}

func (s *CredentialSuite) TestDeliveryOutlivesRequestContext() {
	s.seedPlayer("p1@example.com")

	ctx, cancel := context.WithCancel(s.ctx)
	s.Require().NoError(s.svc.RequestCode(ctx, "Player1"))
	cancel()

	s.svc.Wait()
	s.Len(s.sender.messages(), 1)
}

func (s *CredentialSuite) TestDeliveryTimesOut() {
	s.seedPlayer("p1@example.com")
	sender := newBlockingSender()
	svc := NewCredentialService(s.players, sender, s.clock, CredentialConfig{
		ServerSecret:    "secret",
		StepSeconds:     testStep,
		DriftRange:      testDrift,
		DeliveryTimeout: 50 * time.Millisecond,
	})

	s.Require().NoError(svc.RequestCode(s.ctx, "Player1"))

	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.FailNow("delivery was not bounded by its timeout")
	}
	s.ErrorIs(sender.lastErr(), context.DeadlineExceeded)
}

func (s *CredentialSuite) TestDeliveryDropsWhenQueueFull() {
	p := s.seedPlayer("p1@example.com")
	sender := newBlockingSender()
	svc := NewCredentialService(s.players, sender, s.clock, CredentialConfig{
		ServerSecret: "secret",
		StepSeconds:  testStep,
		DriftRange:   testDrift,
	})

	for i := 0; i < maxPendingDeliveries+5; i++ {
		svc.Deliver(s.ctx, p, testCode)
	}
	close(sender.release)
	svc.Wait()
	s.Equal(int32(maxPendingDeliveries), sender.calls.Load())
}

func (s *CredentialSuite) TestValidateCode() {
	p := s.seedPlayer("")

	token, err := s.svc.ValidateCode(s.ctx, "Player1", testCode)
	s.Require().NoError(err)
	s.Equal(p.Token, token)

	_, err = s.svc.ValidateCode(s.ctx, "Player1", testCode+1)
	s.ErrorIs(err, models.ErrInvalidCode)

	_, err = s.svc.ValidateCode(s.ctx, "nobody", testCode)
	s.ErrorIs(err, models.ErrPlayerNotFound)

	_, err = s.svc.ValidateCode(s.ctx, "", testCode)
	s.True(models.IsBadRequest(err))
}

func (s *CredentialSuite) TestValidateCodeWindow() {
	s.seedPlayer("")
	key := []byte("secretkey")

	for d := int64(-testDrift); d <= testDrift; d++ {
		code, err := otp.Generate(key, testStep, testIssued, d)
		s.Require().NoError(err)
		_, err = s.svc.ValidateCode(s.ctx, "Player1", code)
		s.NoError(err, "drift %d should be accepted", d)
	}

	for _, d := range []int64{-testDrift - 1, testDrift + 1} {
		code, err := otp.Generate(key, testStep, testIssued, d)
		s.Require().NoError(err)
		_, err = s.svc.ValidateCode(s.ctx, "Player1", code)
		s.ErrorIs(err, models.ErrInvalidCode, "drift %d should be rejected", d)
	}
}

func (s *CredentialSuite) TestIssuedCodeExpires() {
	s.seedPlayer("")

	s.clock.Advance(testDrift * testStep * time.Second)
	_, err := s.svc.ValidateCode(s.ctx, "Player1", testCode)
	s.NoError(err)

	s.clock.Advance(testStep * time.Second)
	_, err = s.svc.ValidateCode(s.ctx, "Player1", testCode)
	s.ErrorIs(err, models.ErrInvalidCode)
}

func (s *CredentialSuite) TestSetEmail() {
	s.seedPlayer("")

	s.Require().NoError(s.svc.SetEmail(s.ctx, "Player1", "p1@example.com"))
	p, err := s.players.GetByUsername(s.ctx, "Player1")
	s.Require().NoError(err)
	s.Equal("p1@example.com", p.Email)

	s.ErrorIs(s.svc.SetEmail(s.ctx, "nobody", "a@b.c"), models.ErrPlayerNotFound)
	s.True(models.IsBadRequest(s.svc.SetEmail(s.ctx, "Player1", "not-an-email")))
}
