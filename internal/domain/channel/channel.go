package channel

import (
	"errors"
	"strings"
)

var ErrUnknownSource = errors.New("channel: unknown booking source")

// Source identifies where a reservation originated: the direct site or a
// named external distribution channel.
type Source string

const (
	SourceDirect     Source = "DIRECT"
	SourceBookingCom Source = "BOOKING_COM"
	SourceAirbnb     Source = "AIRBNB"
	SourceOther      Source = "OTHER"
)

// Parse normalizes a raw source string.
func Parse(raw string) (Source, error) {
	switch Source(strings.ToUpper(strings.TrimSpace(raw))) {
	case SourceDirect:
		return SourceDirect, nil
	case SourceBookingCom:
		return SourceBookingCom, nil
	case SourceAirbnb:
		return SourceAirbnb, nil
	case SourceOther:
		return SourceOther, nil
	default:
		return "", ErrUnknownSource
	}
}

func (s Source) IsExternal() bool {
	return s != SourceDirect && s != ""
}

// DefaultCommissionRate returns the global per-channel commission percentage
// applied when the payload does not carry an explicit rate. Full-service OTAs
// retain a larger cut than host-fee-only channels; manual imports retain none.
func (s Source) DefaultCommissionRate() float64 {
	switch s {
	case SourceBookingCom:
		return 15
	case SourceAirbnb:
		return 3
	default:
		return 0
	}
}
