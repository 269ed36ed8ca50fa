package dispatch

import (
	"strconv"

	"github.com/devblac/chain-sentry/internal/event"
)

// EventHash fingerprints an event for log correlation. It is an
// order-dependent rolling hash (djb2) over the canonical wire encoding:
// fast, stable, and deliberately not collision-resistant.
func EventHash(ev event.Event) string {
	data, err := event.Encode(ev)
	if err != nil {
		return ""
	}
	var h uint64 = 5381
	for _, b := range data {
		h = h*33 + uint64(b)
	}
	return strconv.FormatUint(h, 16)
}
