package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the provider signature of a webhook delivery.
const SignatureHeader = "Stripe-Signature"

// DefaultSignatureTolerance bounds the clock skew of a signed timestamp in
// either direction.
const DefaultSignatureTolerance = 5 * time.Minute

// SignatureVerifier checks "t=<unix>,v1=<hex>" signatures computed as
// HMAC-SHA256(secret, "<t>." + payload).
type SignatureVerifier struct {
	Secret string
	// Tolerance <= 0 disables the timestamp check.
	Tolerance time.Duration
	Now       func() time.Time
}

// Verify returns nil only if one of the v1 signatures matches payload.
// payload must be the unmodified request body.
func (v SignatureVerifier) Verify(payload []byte, signatureHeader string) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("%w: webhook secret is not configured", ErrInvalidSignature)
	}

	ts, candidates, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}

	if v.Tolerance > 0 {
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		skew := now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.Tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	expected := computeSignature(ts, payload, secret)
	for _, sig := range candidates {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", ErrInvalidSignature)
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	var (
		ts         int64
		haveTS     bool
		candidates [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
			}
			ts, haveTS = parsed, true
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(value))
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}

	if !haveTS {
		return 0, nil, fmt.Errorf("%w: missing timestamp", ErrInvalidSignature)
	}
	if len(candidates) == 0 {
		return 0, nil, fmt.Errorf("%w: missing v1 signature", ErrInvalidSignature)
	}
	return ts, candidates, nil
}

func computeSignature(ts int64, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignPayload builds a signature header for payload the way the provider does.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(computeSignature(ts, payload, secret)))
}
