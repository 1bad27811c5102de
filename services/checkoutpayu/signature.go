package checkoutpayu

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
)

type signaturePurpose int

const (
	// paymentFormSignature covers the outbound payment form parameters
	paymentFormSignature signaturePurpose = iota + 1
	// confirmationSignature covers inbound server-to-server notifications
	confirmationSignature
)

// signer produces and validates the gateway's keyed digests. The gateway
// mandates md5 over a `~`-joined canonical string; the field order is part
// of the wire protocol and must match its documentation exactly.
type signer struct {
	apiKey     string
	merchantID string
}

func newSigner(apiKey string, merchantID string) signer {
	return signer{
		apiKey:     apiKey,
		merchantID: merchantID,
	}
}

func (s signer) Sign(purpose signaturePurpose, fields url.Values) string {
	sum := md5.Sum([]byte(s.canonicalize(purpose, fields)))

	return hex.EncodeToString(sum[:])
}

// Verify never fails hard: a missing digest or an empty field set is an
// invalid signature, not an error.
func (s signer) Verify(purpose signaturePurpose, fields url.Values, candidate string) bool {
	if candidate == "" || len(fields) == 0 {
		return false
	}

	return s.Sign(purpose, fields) == candidate
}

func (s signer) canonicalize(purpose signaturePurpose, fields url.Values) string {
	switch purpose {
	case paymentFormSignature:
		segments := []string{
			s.apiKey,
			s.merchantID,
			fields.Get("referenceCode"),
			fields.Get("amount"),
			fields.Get("currency"),
		}
		// the allowed-bin segment only exists when the restriction is set:
		// absence changes the canonical string, it never becomes an empty segment
		if allowedBin := fields.Get("allowedBin"); allowedBin != "" {
			segments = append(segments, allowedBin)
		}

		return strings.Join(segments, "~")

	case confirmationSignature:
		return strings.Join([]string{
			s.apiKey,
			s.merchantID,
			fields.Get("reference_sale"),
			normalizeValue(fields.Get("value")),
			fields.Get("currency"),
			fields.Get("state_pol"),
		}, "~")
	}

	return ""
}

// normalizeValue reproduces the gateway's documented amount quirk for
// confirmation signatures: when the last decimal digit of the settled value
// is literally '0', that trailing character is dropped before hashing.
// So "150.00" hashes as "150.0" while "150.26" hashes unchanged.
func normalizeValue(value string) string {
	if strings.HasSuffix(value, "0") {
		return value[:len(value)-1]
	}

	return value
}
