// Package invoice allocates day-scoped sequential invoice numbers of the
// form PREFIX-YYYYMMDD-NNNN.
//
// Allocation reads the highest number already issued for the day from the
// remote store and increments it. The read and the final write are not
// atomic, so two terminals can compute the same number; the write side
// detects the uniqueness conflict (ErrConflict) and asks for a fresh number.
// This is optimistic concurrency with retry, not locking.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPrefix is used when no prefix is configured.
	DefaultPrefix = "FAC"

	// SeqWidth is the fixed width of the sequence suffix.
	SeqWidth = 4

	// MaxSeq is the last sequence that fits in SeqWidth digits.
	MaxSeq = 9999

	// tokenLen is the length of the fallback suffix used past MaxSeq.
	tokenLen = 8

	dayLayout = "20060102"
)

// ErrConflict reports that an invoice number is already held by another
// order. Writers return it (possibly wrapped) so callers can re-allocate.
var ErrConflict = errors.New("invoice number already assigned")

// ErrMalformed is returned when a number does not match the format.
var ErrMalformed = errors.New("malformed invoice number")

// Source reads the highest sequential invoice number issued for a day.
//
// dayPrefix is the literal "PREFIX-YYYYMMDD-" string. Implementations must
// only consider numbers whose suffix is exactly SeqWidth digits and return
// "" when there are none.
type Source interface {
	MaxInvoiceNumber(ctx context.Context, dayPrefix string) (string, error)
}

// Number is a parsed invoice number.
type Number struct {
	Prefix string
	Day    string // YYYYMMDD
	Seq    int    // 0 when the suffix is a fallback token
	Token  string // set only for fallback numbers
}

// String formats the number back to its canonical form.
func (n Number) String() string {
	if n.Token != "" {
		return n.Prefix + "-" + n.Day + "-" + n.Token
	}
	return fmt.Sprintf("%s-%s-%0*d", n.Prefix, n.Day, SeqWidth, n.Seq)
}

// DayPrefix returns "PREFIX-YYYYMMDD-" for day in its own location.
func DayPrefix(prefix string, day time.Time) string {
	return prefix + "-" + day.Format(dayLayout) + "-"
}

// Format returns the sequential invoice number for day and seq.
func Format(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s%0*d", DayPrefix(prefix, day), SeqWidth, seq)
}

// Parse splits an invoice number into its parts.
// Both sequential and fallback-token numbers are accepted.
func Parse(s string) (Number, error) {
	first := strings.Index(s, "-")
	last := strings.LastIndex(s, "-")
	if first <= 0 || last == first || last == len(s)-1 {
		return Number{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	n := Number{Prefix: s[:first], Day: s[first+1 : last]}
	if _, err := time.Parse(dayLayout, n.Day); err != nil {
		return Number{}, fmt.Errorf("%w: bad date in %q", ErrMalformed, s)
	}

	suffix := s[last+1:]
	if len(suffix) == SeqWidth && isDigits(suffix) {
		seq, _ := strconv.Atoi(suffix)
		n.Seq = seq
		return n, nil
	}
	if len(suffix) == tokenLen {
		n.Token = suffix
		return n, nil
	}
	return Number{}, fmt.Errorf("%w: bad suffix in %q", ErrMalformed, s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Allocator computes the next invoice number for a day.
// Safe for concurrent use; it holds no mutable state.
type Allocator struct {
	source Source
	prefix string
	loc    *time.Location
	token  func() string
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithPrefix sets the invoice prefix. Default: DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(a *Allocator) {
		if prefix != "" {
			a.prefix = prefix
		}
	}
}

// WithLocation sets the timezone whose calendar day scopes numbering.
// Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(a *Allocator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithTokenFunc overrides the overflow token generator (tests).
func WithTokenFunc(fn func() string) Option {
	return func(a *Allocator) {
		a.token = fn
	}
}

// NewAllocator creates an allocator reading from src.
func NewAllocator(src Source, opts ...Option) *Allocator {
	a := &Allocator{
		source: src,
		prefix: DefaultPrefix,
		loc:    time.Local,
		token:  randomToken,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Prefix returns the configured prefix.
func (a *Allocator) Prefix() string {
	return a.prefix
}

// Next returns the number following the highest one issued on day.
//
// None issued yet yields 0001. Past MaxSeq the suffix becomes an
// unpredictable token instead of wrapping.
func (a *Allocator) Next(ctx context.Context, day time.Time) (string, error) {
	day = day.In(a.loc)
	dayPrefix := DayPrefix(a.prefix, day)

	current, err := a.source.MaxInvoiceNumber(ctx, dayPrefix)
	if err != nil {
		return "", fmt.Errorf("read max invoice for %s: %w", dayPrefix, err)
	}
	if current == "" {
		return Format(a.prefix, day, 1), nil
	}

	n, err := Parse(current)
	if err != nil {
		return "", fmt.Errorf("read max invoice for %s: %w", dayPrefix, err)
	}
	if n.Token != "" || !strings.HasPrefix(current, dayPrefix) {
		return "", fmt.Errorf("%w: source returned %q for %s", ErrMalformed, current, dayPrefix)
	}
	if n.Seq >= MaxSeq {
		return dayPrefix + a.token(), nil
	}
	return Format(a.prefix, day, n.Seq+1), nil
}

// randomToken returns tokenLen uppercase hex characters from a random UUID.
func randomToken() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:tokenLen])
}
