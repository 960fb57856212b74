// Package rectype implements the recdb typed value domain: parsing a type
// descriptor string into a Type, checking a value against it, and
// ordering two values under it.
package rectype

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind enumerates the thirteen value domains a field can be typed as.
type Kind int

const (
	Int Kind = iota
	Bool
	Range
	Real
	Size
	Line
	Regexp
	Date
	Enum
	Email
	FieldRef
	Rec
	UUID
)

var kindNames = map[Kind]string{
	Int: "int", Bool: "bool", Range: "range", Real: "real", Size: "size",
	Line: "line", Regexp: "regexp", Date: "date", Enum: "enum", Email: "email",
	FieldRef: "field", Rec: "rec", UUID: "uuid",
}

func (k Kind) String() string { return kindNames[k] }

// Type is a parsed type descriptor.
type Type struct {
	Kind Kind

	// range
	Min, Max int

	// size
	SizeN int

	// enum
	EnumValues []string

	// regexp
	Regexp *regexp.Regexp
	Source string // original descriptor text, kept for re-serialization

	// rec
	RecType string
}

// UnknownKindError is returned when New sees a keyword it does not
// recognize as a leading type keyword.
type UnknownKindError struct {
	Keyword string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown type keyword %q", e.Keyword)
}

// New parses a type descriptor string (as found after "%type: Fex " in a
// descriptor, or inside a %typedef) into a Type.
func New(descr string) (*Type, error) {
	descr = strings.TrimSpace(descr)
	fields := strings.SplitN(descr, " ", 2)
	keyword := fields[0]
	rest := ""
	if len(fields) > 1 {
		rest = strings.TrimSpace(fields[1])
	}

	switch keyword {
	case "int":
		return &Type{Kind: Int, Source: descr}, nil
	case "bool":
		return &Type{Kind: Bool, Source: descr}, nil
	case "real":
		return &Type{Kind: Real, Source: descr}, nil
	case "line":
		return &Type{Kind: Line, Source: descr}, nil
	case "field":
		return &Type{Kind: FieldRef, Source: descr}, nil
	case "email":
		return &Type{Kind: Email, Source: descr}, nil
	case "date":
		return &Type{Kind: Date, Source: descr}, nil
	case "uuid":
		return &Type{Kind: UUID, Source: descr}, nil
	case "range":
		return newRange(rest, descr)
	case "size":
		return newSize(rest, descr)
	case "enum":
		return newEnum(rest, descr)
	case "rec":
		if rest == "" {
			return nil, fmt.Errorf("rec type requires a record-type name")
		}
		return &Type{Kind: Rec, RecType: rest, Source: descr}, nil
	default:
		if len(keyword) >= 2 {
			// regexp D<chars>D: any character can serve as delimiter D.
			if t, err, ok := tryRegexp(descr); ok {
				return t, err
			}
		}
		return nil, &UnknownKindError{Keyword: keyword}
	}
}

func parseBound(s string) (int, error) {
	switch s {
	case "MIN":
		return math.MinInt32, nil
	case "MAX":
		return math.MaxInt32, nil
	default:
		return strconv.Atoi(s)
	}
}

func newRange(rest, descr string) (*Type, error) {
	parts := strings.Fields(rest)
	if len(parts) == 0 {
		return nil, fmt.Errorf("range type requires at least one bound")
	}
	if len(parts) == 1 {
		hi, err := parseBound(parts[0])
		if err != nil {
			return nil, fmt.Errorf("bad range bound %q: %w", parts[0], err)
		}
		return &Type{Kind: Range, Min: 0, Max: hi, Source: descr}, nil
	}
	lo, err := parseBound(parts[0])
	if err != nil {
		return nil, fmt.Errorf("bad range bound %q: %w", parts[0], err)
	}
	hi, err := parseBound(parts[1])
	if err != nil {
		return nil, fmt.Errorf("bad range bound %q: %w", parts[1], err)
	}
	return &Type{Kind: Range, Min: lo, Max: hi, Source: descr}, nil
}

func newSize(rest, descr string) (*Type, error) {
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("size type requires a non-negative integer, got %q", rest)
	}
	return &Type{Kind: Size, SizeN: n, Source: descr}, nil
}

var enumIdentRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func newEnum(rest, descr string) (*Type, error) {
	// Strip parenthesized comments attached to individual entries.
	stripped := stripParenComments(rest)
	fields := strings.Fields(stripped)
	if len(fields) == 0 {
		return nil, fmt.Errorf("enum type requires at least one value")
	}
	for _, f := range fields {
		if !enumIdentRe.MatchString(f) {
			return nil, fmt.Errorf("invalid enum identifier %q", f)
		}
	}
	return &Type{Kind: Enum, EnumValues: fields, Source: descr}, nil
}

func stripParenComments(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tryRegexp attempts to parse descr as "regexp D...D" where D is the
// first non-space character after the keyword and doubled occurrences of
// D inside escape to a literal D.
func tryRegexp(descr string) (*Type, error, bool) {
	const kw = "regexp"
	if !strings.HasPrefix(descr, kw) {
		return nil, nil, false
	}
	rest := strings.TrimPrefix(descr, kw)
	rest = strings.TrimLeft(rest, " \t")
	if len(rest) < 2 {
		return nil, fmt.Errorf("regexp type requires a delimited pattern"), true
	}
	delim := rune(rest[0])
	body := rest[1:]
	var b strings.Builder
	runes := []rune(body)
	i := 0
	closed := false
	for i < len(runes) {
		if runes[i] == delim {
			if i+1 < len(runes) && runes[i+1] == delim {
				b.WriteRune(delim)
				i += 2
				continue
			}
			closed = true
			i++
			break
		}
		b.WriteRune(runes[i])
		i++
	}
	if !closed {
		return nil, fmt.Errorf("unterminated regexp literal"), true
	}
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid regexp %q: %w", b.String(), err), true
	}
	return &Type{Kind: Regexp, Regexp: re, Source: descr}, nil, true
}

// RecResolver lets a "rec" type delegate Check to the primary-key type of
// the record set it refers to, without rectype importing core (which
// would create an import cycle).
type RecResolver interface {
	PrimaryKeyType(recTypeName string) (*Type, bool)
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Check validates value against the type, returning (true, "") if valid
// or (false, message) otherwise. resolver may be nil; it is only
// consulted for Kind == Rec.
func (t *Type) Check(value string, resolver RecResolver) (bool, string) {
	switch t.Kind {
	case Int:
		if _, err := strconv.Atoi(strings.TrimSpace(value)); err != nil {
			return false, fmt.Sprintf("value %q is not an int", value)
		}
	case Bool:
		switch strings.TrimSpace(value) {
		case "0", "1", "true", "false", "yes", "no":
		default:
			return false, fmt.Sprintf("value %q is not a bool", value)
		}
	case Range:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return false, fmt.Sprintf("value %q is not an integer", value)
		}
		if n < t.Min || n > t.Max {
			return false, fmt.Sprintf("value %d out of range [%d,%d]", n, t.Min, t.Max)
		}
	case Real:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return false, fmt.Sprintf("value %q is not a real", value)
		}
	case Size:
		if len([]rune(value)) > t.SizeN {
			return false, fmt.Sprintf("value exceeds max size %d", t.SizeN)
		}
	case Line:
		if strings.Contains(value, "\n") {
			return false, "value must fit on a single line"
		}
	case Regexp:
		if t.Regexp == nil || !t.Regexp.MatchString(value) {
			return false, fmt.Sprintf("value %q does not match regexp", value)
		}
	case Date:
		if _, ok := ParseDate(value); !ok {
			return false, fmt.Sprintf("value %q is not a valid date", value)
		}
	case Enum:
		for _, v := range t.EnumValues {
			if v == value {
				return true, ""
			}
		}
		return false, fmt.Sprintf("value %q is not one of %v", value, t.EnumValues)
	case Email:
		if !emailRe.MatchString(value) {
			return false, fmt.Sprintf("value %q is not an email address", value)
		}
	case FieldRef:
		if !fieldNameRe.MatchString(value) {
			return false, fmt.Sprintf("value %q is not a field name", value)
		}
	case Rec:
		if resolver == nil {
			return true, ""
		}
		pk, ok := resolver.PrimaryKeyType(t.RecType)
		if !ok || pk == nil {
			return true, ""
		}
		return pk.Check(value, resolver)
	case UUID:
		if !uuidRe.MatchString(value) {
			return false, fmt.Sprintf("value %q is not a uuid", value)
		}
	}
	return true, ""
}

var fieldNameRe = regexp.MustCompile(`^[A-Za-z%][A-Za-z0-9_]*$`)
var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// dateLayouts mirrors the fixed set of formats the original parse_datetime
// contract accepts for recutils' "date" type and auto-field generation.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	time.RFC3339,
}

// ParseDate parses value against the fixed layout table, returning the
// parsed time and true on success.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Compare orders a and b under this type's comparator: numeric for
// int/range/real, boolean order (false < true) for bool, chronological
// for date, lexicographic otherwise (including on parse failure).
func (t *Type) Compare(a, b string) int {
	switch t.Kind {
	case Int, Range:
		an, aerr := strconv.Atoi(strings.TrimSpace(a))
		bn, berr := strconv.Atoi(strings.TrimSpace(b))
		if aerr == nil && berr == nil {
			return cmpInt(an, bn)
		}
	case Real:
		af, aerr := strconv.ParseFloat(strings.TrimSpace(a), 64)
		bf, berr := strconv.ParseFloat(strings.TrimSpace(b), 64)
		if aerr == nil && berr == nil {
			return cmpFloat(af, bf)
		}
	case Bool:
		av, bv := boolOrder(a), boolOrder(b)
		return cmpInt(av, bv)
	case Date:
		at, aok := ParseDate(a)
		bt, bok := ParseDate(b)
		if aok && bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a, b)
}

func boolOrder(s string) int {
	switch strings.TrimSpace(s) {
	case "0", "false", "no":
		return 0
	default:
		return 1
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
