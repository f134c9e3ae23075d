// Package classifier turns a raw scanned string into a normalized code
// and the credential kind it represents.
package classifier

import (
	"fmt"
	"regexp"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
)

var (
	sevenDigitRun = regexp.MustCompile(`[0-9]{7}`)
	sixDigitRun   = regexp.MustCompile(`[0-9]{6}`)
)

// Classify applies the classification rules in order:
//
//  1. any non-digit character: optical payload, accepted as-is
//  2. an embedded run of 7 digits: seven-digit code
//  3. an embedded run of 6 digits: six-digit code
//  4. the whole input is 6 or 7 digits: matching kind
//
// Anything else is rejected with domain.ErrInvalidFormat. A barcode
// channel hint skips the rules and always yields a barcode payload,
// since barcode contents can look exactly like 6/7-digit codes.
func Classify(raw string, hint domain.Channel) (domain.ClassifiedCode, error) {
	if raw == "" {
		return domain.ClassifiedCode{}, fmt.Errorf("empty input: %w", domain.ErrInvalidFormat)
	}

	if hint == domain.ChannelOpticalBarcode {
		return domain.ClassifiedCode{Code: raw, Kind: domain.KindBarcodePayload}, nil
	}

	if !allDigits(raw) {
		return domain.ClassifiedCode{Code: raw, Kind: domain.KindOpticalPayload}, nil
	}

	// Wedge scanners sometimes surround the payload with stray digits;
	// the leftmost fixed-length run wins.
	if run := sevenDigitRun.FindString(raw); run != "" {
		return domain.ClassifiedCode{Code: run, Kind: domain.KindSevenDigit}, nil
	}
	if run := sixDigitRun.FindString(raw); run != "" {
		return domain.ClassifiedCode{Code: run, Kind: domain.KindSixDigit}, nil
	}

	switch len(raw) {
	case 7:
		return domain.ClassifiedCode{Code: raw, Kind: domain.KindSevenDigit}, nil
	case 6:
		return domain.ClassifiedCode{Code: raw, Kind: domain.KindSixDigit}, nil
	}

	return domain.ClassifiedCode{}, fmt.Errorf("%d digits: %w", len(raw), domain.ErrInvalidFormat)
}

// ClassifyAcquisition classifies raw using its own channel as the hint.
func ClassifyAcquisition(raw domain.RawAcquisition) (domain.ClassifiedCode, error) {
	return Classify(raw.Text, raw.Channel)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
