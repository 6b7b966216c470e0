// Package timezone maps user supplied zone names onto canonical IANA zone
// identifiers and answers offset questions against the zone database.
package timezone

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.yaml.in/yaml/v3"
)

// DefaultZone is used when no zone was supplied.
const DefaultZone = "UTC"

// DefaultCacheSize bounds the number of loaded locations kept per resolver.
const DefaultCacheSize = 256

// ErrInvalidTimezone is returned when an input cannot be mapped to a zone.
var ErrInvalidTimezone = errors.New("timezone: invalid timezone")

//go:embed aliases.yaml
var aliasTableYAML []byte

type aliasTable struct {
	Abbreviations map[string]string `yaml:"abbreviations"`
	Aliases       map[string]string `yaml:"aliases"`
}

// Validation is the never-failing result of Resolver.Validate.
type Validation struct {
	OK         bool
	Normalized string
	Message    string
}

// Offset describes a zone's UTC offset at an instant.
type Offset struct {
	Hours float64
	IsDST bool
}

// Resolver normalizes zone names and caches loaded locations.
type Resolver struct {
	abbreviations map[string]string
	aliases       map[string]string
	locations     *lru.Cache[string, *time.Location]
}

// NewResolver parses the embedded alias table and prepares a location cache
// holding at most cacheSize entries.
func NewResolver(cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	var table aliasTable
	if err := yaml.Unmarshal(aliasTableYAML, &table); err != nil {
		return nil, fmt.Errorf("timezone: parse alias table: %w", err)
	}

	cache, err := lru.New[string, *time.Location](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("timezone: create location cache: %w", err)
	}

	r := &Resolver{
		abbreviations: make(map[string]string, len(table.Abbreviations)),
		aliases:       make(map[string]string, len(table.Aliases)),
		locations:     cache,
	}
	for key, zone := range table.Abbreviations {
		r.abbreviations[strings.ToUpper(strings.TrimSpace(key))] = zone
	}
	for key, zone := range table.Aliases {
		r.aliases[strings.ToLower(strings.TrimSpace(key))] = zone
	}
	return r, nil
}

// MustNewResolver is NewResolver for callers that cannot recover, such as tests.
func MustNewResolver(cacheSize int) *Resolver {
	r, err := NewResolver(cacheSize)
	if err != nil {
		panic(err)
	}
	return r
}

// Normalize maps input onto a canonical zone identifier. Abbreviations are
// consulted first, then casual aliases, then the zone database itself.
func (r *Resolver) Normalize(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return DefaultZone, nil
	}

	if zone, ok := r.abbreviations[strings.ToUpper(trimmed)]; ok {
		return zone, nil
	}
	if zone, ok := r.aliases[strings.ToLower(trimmed)]; ok {
		return zone, nil
	}

	if _, err := r.Location(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// Validate reports whether input normalizes, carrying a user facing message
// when it does not.
func (r *Resolver) Validate(input string) Validation {
	zone, err := r.Normalize(input)
	if err != nil {
		return Validation{
			OK:      false,
			Message: fmt.Sprintf("%q is not a recognised timezone; use a name such as Europe/London, EST or Tokyo", strings.TrimSpace(input)),
		}
	}
	return Validation{OK: true, Normalized: zone}
}

// Location loads a canonical zone identifier. The process-local zone is
// refused so that results never depend on the host configuration.
func (r *Resolver) Location(zone string) (*time.Location, error) {
	if zone == "" || strings.EqualFold(zone, "Local") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}
	if loc, ok := r.locations.Get(zone); ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}
	r.locations.Add(zone, loc)
	return loc, nil
}

// OffsetAt reports the zone offset in hours at instant and whether daylight
// saving time is in effect there.
func (r *Resolver) OffsetAt(zone string, instant time.Time) (Offset, error) {
	canonical, err := r.Normalize(zone)
	if err != nil {
		return Offset{}, err
	}
	loc, err := r.Location(canonical)
	if err != nil {
		return Offset{}, err
	}

	local := instant.In(loc)
	_, seconds := local.Zone()
	return Offset{
		Hours: float64(seconds) / 3600,
		IsDST: local.IsDST(),
	}, nil
}
