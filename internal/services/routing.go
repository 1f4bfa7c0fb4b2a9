package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"fym-server/internal/models"
)

// minRoutingTokens covers the layout ParseTrainFilename reads: dash-separated
// tokens where the fourth names the recipient and the fifth the sender
const minRoutingTokens = 5

// Routing is the addressing carried by a train filename
type Routing struct {
	To     string
	From   string
	Tokens []string
}

// ParseTrainFilename extracts sender and recipient from name,
// e.g. "Y1234-01E02F034C0-000123-Player1-Player2.zrn" is routed to Player1
// from Player2.
func ParseTrainFilename(name string) (Routing, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	tokens := strings.Split(stem, "-")
	if len(tokens) < minRoutingTokens {
		return Routing{}, &models.BadRequestError{
			Field:  "filename",
			Reason: fmt.Sprintf("expected at least %d dash-separated tokens, got %d", minRoutingTokens, len(tokens)),
			Err:    models.ErrMalformedFilename,
		}
	}

	r := Routing{To: tokens[3], From: tokens[4], Tokens: tokens}
	if r.To == "" || r.From == "" {
		return Routing{}, &models.BadRequestError{
			Field:  "filename",
			Reason: "empty player token",
			Err:    models.ErrMalformedFilename,
		}
	}
	return r, nil
}
