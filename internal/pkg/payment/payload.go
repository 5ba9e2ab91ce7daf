package payment

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const payloadMarker = "subscription"

// Prices maps subscription duration in months to its Telegram Stars price.
var Prices = map[int]int{
	1:  150,
	3:  405,
	6:  765,
	12: 1440,
}

// ErrInvalidPayload marks a payment payload that does not decode. Funds are
// already captured by the provider at this point, so the caller logs the
// event for manual follow-up and takes no lifecycle action.
var ErrInvalidPayload = errors.New("payment: invalid payload")

// ErrUnknownDuration marks a duration outside the price table.
var ErrUnknownDuration = errors.New("payment: unknown subscription duration")

// ErrPriceMismatch marks a payload or captured amount that disagrees with
// the price table. Granting duration from an unverified payload would let a
// stale or forged payload buy more than was paid.
var ErrPriceMismatch = errors.New("payment: price mismatch")

// Durations returns the purchasable durations in ascending order.
func Durations() []int {
	months := make([]int, 0, len(Prices))
	for m := range Prices {
		months = append(months, m)
	}
	sort.Ints(months)
	return months
}

// PriceFor looks up the Stars price for a duration.
func PriceFor(months int) (int, error) {
	price, ok := Prices[months]
	if !ok {
		return 0, fmt.Errorf("%w: %d months", ErrUnknownDuration, months)
	}
	return price, nil
}

// BuildPayload encodes the invoice payload sent to the payment provider.
func BuildPayload(months int) (string, error) {
	price, err := PriceFor(months)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%d_%d", payloadMarker, months, price), nil
}

// ParsePayload decodes a completed-payment payload of the form
// "subscription_<months>_<price>" and validates it against the price table.
func ParsePayload(payload string) (months, price int, err error) {
	parts := strings.Split(payload, "_")
	if len(parts) != 3 || parts[0] != payloadMarker {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}

	months, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad duration in %q", ErrInvalidPayload, payload)
	}
	price, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad price in %q", ErrInvalidPayload, payload)
	}

	expected, err := PriceFor(months)
	if err != nil {
		return 0, 0, err
	}
	if price != expected {
		return 0, 0, fmt.Errorf("%w: payload says %d stars for %d months, table says %d", ErrPriceMismatch, price, months, expected)
	}
	return months, price, nil
}
