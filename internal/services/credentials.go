package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"fym-server/internal/clock"
	"fym-server/internal/mail"
	"fym-server/internal/models"
	"fym-server/internal/otp"
	"fym-server/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	tokenLength       = 128
	tokenChars        = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxUsernameLength = 40

	defaultDeliveryTimeout = 30 * time.Second
	maxPendingDeliveries   = 64

	authCodeSubject = "[Freight Yard Manager] Authentication Code"
	authCodeBody    = `Hello!

Someone (probably you) has requested an authentication code for your Freight Yard Manager account.

If this was not you, please ignore this message.

The authentication code is:

%d

Enter this code into the prompt in FYM to complete the authentication procedure.`
)

// CredentialConfig holds the code-window settings
type CredentialConfig struct {
	ServerSecret    string
	StepSeconds     int64
	DriftRange      int64
	FromAddress     string
	DeliveryTimeout time.Duration
}

// CredentialService owns player identities and their one-time codes
type CredentialService struct {
	players repository.PlayerStore
	mailer  mail.Sender
	clock   clock.Clock
	cfg     CredentialConfig

	deliveries sync.WaitGroup
	pending    chan struct{}
}

// NewCredentialService creates a new credential service
func NewCredentialService(players repository.PlayerStore, mailer mail.Sender, clk clock.Clock, cfg CredentialConfig) *CredentialService {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	return &CredentialService{
		players: players,
		mailer:  mailer,
		clock:   clk,
		cfg:     cfg,
		pending: make(chan struct{}, maxPendingDeliveries),
	}
}

// EnsurePlayer returns the player named username, creating it with a fresh
// ID and shared secret if it does not exist
func (s *CredentialService) EnsurePlayer(ctx context.Context, username string) (*models.Player, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	player, err := s.players.GetByUsername(ctx, username)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, models.ErrPlayerNotFound) {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	player = &models.Player{
		ID:        uuid.New().String(),
		Username:  username,
		Token:     token,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.players.Create(ctx, player); err != nil {
		if errors.Is(err, models.ErrUsernameTaken) {
			// lost a concurrent create, the winner's record stands
			return s.players.GetByUsername(ctx, username)
		}
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	log.Info().Str("player", username).Str("player_id", player.ID).Msg("Player created")
	return player, nil
}

// IssueCode computes the current code for player
func (s *CredentialService) IssueCode(player *models.Player) (int, error) {
	return otp.Generate(s.key(player), s.cfg.StepSeconds, s.clock.Now().Unix(), 0)
}

// Deliver emails code to the player in the background. Failures are logged,
// not returned. When too many deliveries are in flight the code is dropped.
func (s *CredentialService) Deliver(ctx context.Context, player *models.Player, code int) {
	if player.Email == "" {
		log.Debug().Str("player", player.Username).Msg("No email on file, code not delivered")
		return
	}

	select {
	case s.pending <- struct{}{}:
	default:
		log.Warn().Str("player", player.Username).Msg("Mail queue full, authentication code dropped")
		return
	}

	msg := mail.Message{
		Subject: authCodeSubject,
		Body:    fmt.Sprintf(authCodeBody, code),
		From:    s.cfg.FromAddress,
		To:      []string{player.Email},
	}
	username := player.Username

	// the request may finish before the relay answers
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.DeliveryTimeout)
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		defer func() { <-s.pending }()
		defer cancel()

		if err := s.mailer.Send(sendCtx, msg); err != nil {
			log.Warn().Err(err).Str("player", username).Msg("Failed to deliver authentication code")
		}
	}()
}

// Wait blocks until all background deliveries have finished
func (s *CredentialService) Wait() {
	s.deliveries.Wait()
}

// RequestCode issues and delivers a code for username. Unknown usernames are
// ignored so callers cannot tell which players exist.
func (s *CredentialService) RequestCode(ctx context.Context, username string) error {
	if username == "" {
		return models.NewBadRequest("player", "no player specified")
	}

	player, err := s.players.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrPlayerNotFound) {
			log.Debug().Str("player", username).Msg("Code requested for unknown player")
			return nil
		}
		return err
	}

	code, err := s.IssueCode(player)
	if err != nil {
		return fmt.Errorf("failed to issue code: %w", err)
	}
	s.Deliver(ctx, player, code)
	return nil
}

// ValidateCode checks candidate against the player's code window and returns
// the shared secret on success
func (s *CredentialService) ValidateCode(ctx context.Context, username string, candidate int) (string, error) {
	if username == "" {
		return "", models.NewBadRequest("player", "no player specified")
	}

	player, err := s.players.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	if !otp.Validate(s.key(player), s.cfg.StepSeconds, s.clock.Now().Unix(), s.cfg.DriftRange, candidate) {
		log.Info().Str("player", username).Msg("Invalid authentication code")
		return "", models.ErrInvalidCode
	}
	return player.Token, nil
}

// SetEmail attaches an email address to an existing player
func (s *CredentialService) SetEmail(ctx context.Context, username, email string) error {
	if username == "" {
		return models.NewBadRequest("player", "no player specified")
	}
	if email != "" && !strings.Contains(email, "@") {
		return models.NewBadRequest("email", "not an email address")
	}
	return s.players.UpdateEmail(ctx, username, email)
}

// key is the OTP key for player: server secret followed by the player's token
func (s *CredentialService) key(player *models.Player) []byte {
	return []byte(s.cfg.ServerSecret + player.Token)
}

func validateUsername(username string) error {
	if username == "" {
		return models.NewBadRequest("username", "no username specified")
	}
	if len(username) > maxUsernameLength {
		return models.NewBadRequest("username", fmt.Sprintf("must be at most %d characters", maxUsernameLength))
	}
	return nil
}

// generateToken generates a random shared secret
func generateToken() (string, error) {
	token := make([]byte, tokenLength)
	limit := big.NewInt(int64(len(tokenChars)))
	for i := range token {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		token[i] = tokenChars[n.Int64()]
	}
	return string(token), nil
}
