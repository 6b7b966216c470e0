package notification

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidOffsetToken is returned for reminder tokens that are not a
// positive integer followed by m, h or d.
var ErrInvalidOffsetToken = errors.New("notification: invalid offset token")

// MaxOffset is the longest accepted reminder lead time.
const MaxOffset = 365 * 24 * time.Hour

// Unit is the unit of a reminder offset.
type Unit byte

const (
	UnitMinute Unit = 'm'
	UnitHour   Unit = 'h'
	UnitDay    Unit = 'd'
)

func (u Unit) duration() time.Duration {
	switch u {
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	case UnitDay:
		return 24 * time.Hour
	}
	return 0
}

// Offset is a parsed reminder lead time such as "15m" or "24h".
type Offset struct {
	Amount int
	Unit   Unit
}

var offsetPattern = regexp.MustCompile(`^(\d+)([mhd])$`)

// ParseOffset parses token. Surrounding space and letter case are ignored.
func ParseOffset(token string) (Offset, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	match := offsetPattern.FindStringSubmatch(normalized)
	if match == nil {
		return Offset{}, fmt.Errorf("%w: %q", ErrInvalidOffsetToken, token)
	}

	amount, err := strconv.Atoi(match[1])
	if err != nil || amount <= 0 {
		return Offset{}, fmt.Errorf("%w: %q must be positive", ErrInvalidOffsetToken, token)
	}
	offset := Offset{Amount: amount, Unit: Unit(match[2][0])}
	if amount > int(MaxOffset/offset.Unit.duration()) {
		return Offset{}, fmt.Errorf("%w: %q exceeds %s", ErrInvalidOffsetToken, token, MaxOffset)
	}
	return offset, nil
}

// ParseOffsets parses every token, dropping any offset whose lead time was
// already seen ("60m" after "1h") while keeping the order of first appearance.
func ParseOffsets(tokens []string) ([]Offset, error) {
	offsets := make([]Offset, 0, len(tokens))
	seen := make(map[time.Duration]struct{}, len(tokens))
	for _, token := range tokens {
		offset, err := ParseOffset(token)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[offset.Duration()]; dup {
			continue
		}
		seen[offset.Duration()] = struct{}{}
		offsets = append(offsets, offset)
	}
	return offsets, nil
}

// Duration returns the lead time. A day is always 24 hours.
func (o Offset) Duration() time.Duration {
	return time.Duration(o.Amount) * o.Unit.duration()
}

// String renders the offset in token form.
func (o Offset) String() string {
	return strconv.Itoa(o.Amount) + string(rune(o.Unit))
}

// MarshalText implements encoding.TextMarshaler.
func (o Offset) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Offset) UnmarshalText(text []byte) error {
	parsed, err := ParseOffset(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Strings renders offsets in token form.
func Strings(offsets []Offset) []string {
	tokens := make([]string, len(offsets))
	for i, offset := range offsets {
		tokens[i] = offset.String()
	}
	return tokens
}
