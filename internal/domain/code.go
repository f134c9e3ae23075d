package domain

import "time"

// Channel identifies where a raw acquisition came from.
type Channel string

const (
	ChannelOpticalQR      Channel = "optical-qr"
	ChannelOpticalBarcode Channel = "optical-barcode"
	ChannelHID            Channel = "hid"
	ChannelManual         Channel = "manual"
)

func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelOpticalQR, ChannelOpticalBarcode, ChannelHID, ChannelManual:
		return Channel(s), true
	default:
		return "", false
	}
}

// RawAcquisition is one detection event from any channel. It is consumed
// by the classifier right away and never stored.
type RawAcquisition struct {
	Text       string
	Channel    Channel
	AcquiredAt time.Time
}

// CodeKind is the credential format a normalized code represents.
type CodeKind int

const (
	KindUnknown CodeKind = iota
	KindSixDigit
	KindSevenDigit
	KindOpticalPayload
	KindBarcodePayload
)

func (k CodeKind) String() string {
	switch k {
	case KindSixDigit:
		return "six-digit"
	case KindSevenDigit:
		return "seven-digit"
	case KindOpticalPayload:
		return "optical-payload"
	case KindBarcodePayload:
		return "barcode-payload"
	default:
		return "unknown"
	}
}

// ClassifiedCode is the output of the classifier. Kind is always derived
// from Code (and the channel hint) by the classifier; nothing else sets it.
type ClassifiedCode struct {
	Code string   `json:"code"`
	Kind CodeKind `json:"-"`
}

func (c ClassifiedCode) IsZero() bool { return c.Code == "" }
