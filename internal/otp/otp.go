// Package otp derives time-based one-time codes from a shared key.
//
// A code is the RFC 4226 HOTP value (HMAC-SHA1, six digits) of the time
// counter floor(timestamp/step)+drift. Codes are carried as integers, so a
// code such as 049381 travels as 49381.
package otp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strconv"

	pqotp "github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// Digits is the width of a generated code
const Digits = 6

var (
	ErrInvalidStep     = errors.New("otp: step must be positive")
	ErrNegativeCounter = errors.New("otp: time counter is negative")
)

var hotpOpts = hotp.ValidateOpts{
	Digits:    pqotp.DigitsSix,
	Algorithm: pqotp.AlgorithmSHA1,
}

// Counter returns the time-step counter for timestamp shifted by drift steps
func Counter(step, timestamp, drift int64) (int64, error) {
	if step <= 0 {
		return 0, ErrInvalidStep
	}
	c := floorDiv(timestamp, step) + drift
	if c < 0 {
		return 0, ErrNegativeCounter
	}
	return c, nil
}

// Generate returns the code for key at timestamp (unix seconds), shifted by
// drift whole steps
func Generate(key []byte, step, timestamp, drift int64) (int, error) {
	counter, err := Counter(step, timestamp, drift)
	if err != nil {
		return 0, err
	}

	// hotp takes its secret base32-encoded
	secret := base32.StdEncoding.EncodeToString(key)
	code, err := hotp.GenerateCodeCustom(secret, uint64(counter), hotpOpts)
	if err != nil {
		return 0, fmt.Errorf("otp: failed to generate code: %w", err)
	}

	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, fmt.Errorf("otp: unexpected code %q: %w", code, err)
	}
	return n, nil
}

// Validate reports whether candidate matches a code generated for any drift
// in [-driftRange, +driftRange]
func Validate(key []byte, step, timestamp, driftRange int64, candidate int) bool {
	if driftRange < 0 {
		return false
	}
	for d := -driftRange; d <= driftRange; d++ {
		code, err := Generate(key, step, timestamp, d)
		if err != nil {
			// counters before the epoch cannot match
			continue
		}
		if code == candidate {
			return true
		}
	}
	return false
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
