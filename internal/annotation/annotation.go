package annotation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

var (
	// ErrInvalidLabel is returned when a statement has no comment or the
	// comment does not start with a recognised transaction label.
	ErrInvalidLabel = errors.New("invalid transaction label")

	// ErrInvalidExpectation is returned when an id/value pair does not fit
	// in a 64-bit integer.
	ErrInvalidExpectation = errors.New("invalid expectation")
)

var (
	labelPattern   = regexp.MustCompile(`--\s*(\w+)`)
	pairPattern    = regexp.MustCompile(`(\d+)\s*=>\s*(\d+)`)
	sessionPattern = regexp.MustCompile(`^t([1-9][0-9]*)$`)

	fold = cases.Fold()
)

// nothingPhrase marks a read that must come back empty.
const nothingPhrase = "returns nothing"

// Label identifies the session(s) a statement is sent to.
// The zero value is not a valid label.
type Label struct {
	// Index is the 1-based session ordinal for T<k> labels, 0 for "either".
	Index int

	// Either routes to sessions 1 and 2.
	Either bool
}

// T returns the label for the k-th session (1-based).
func T(k int) Label {
	return Label{Index: k}
}

// EitherLabel addresses sessions 1 and 2.
var EitherLabel = Label{Either: true}

// String renders the label the way scripts spell it.
func (l Label) String() string {
	if l.Either {
		return "either"
	}
	return fmt.Sprintf("T%d", l.Index)
}

// Kind selects how an Expectation is compared against actual rows.
type Kind int

const (
	// ExpectExact compares the unfiltered result against the expected
	// mapping. With no pairs in the comment this means the result must be
	// empty.
	ExpectExact Kind = iota

	// ExpectSubset restricts the result to the expected keys before
	// comparing. Keys absent from the expectation are ignored.
	ExpectSubset

	// ExpectNothing requires an empty, unfiltered result.
	ExpectNothing
)

func (k Kind) String() string {
	switch k {
	case ExpectExact:
		return "exact"
	case ExpectSubset:
		return "subset"
	case ExpectNothing:
		return "nothing"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Expectation is the decoded "what the result should look like" contract.
type Expectation struct {
	Kind   Kind
	Values map[int64]int64
}

// Project returns the part of actual that takes part in the comparison.
// For subset expectations that is actual restricted to the expected keys;
// otherwise actual is returned unchanged.
func (e Expectation) Project(actual map[int64]int64) map[int64]int64 {
	if e.Kind != ExpectSubset {
		return actual
	}
	projected := make(map[int64]int64, len(e.Values))
	for k, v := range actual {
		if _, ok := e.Values[k]; ok {
			projected[k] = v
		}
	}
	return projected
}

// Matches reports whether actual satisfies the expectation.
func (e Expectation) Matches(actual map[int64]int64) bool {
	projected := e.Project(actual)
	if len(projected) != len(e.Values) {
		return false
	}
	for k, want := range e.Values {
		got, ok := projected[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// String renders the expectation as a sorted "{1 => 11, 2 => 21}" list.
func (e Expectation) String() string {
	if e.Kind == ExpectNothing {
		return "nothing"
	}
	return FormatRows(e.Values)
}

// Annotation is the decoded comment of a single statement.
type Annotation struct {
	Label       Label
	Expectation Expectation
}

// Parse extracts the label and expectation from a statement's comment.
func Parse(stmt string) (Annotation, error) {
	label, err := ParseLabel(stmt)
	if err != nil {
		return Annotation{}, err
	}
	exp, err := ParseExpectation(stmt)
	if err != nil {
		return Annotation{}, err
	}
	return Annotation{Label: label, Expectation: exp}, nil
}

// ParseLabel returns the transaction label of stmt.
func ParseLabel(stmt string) (Label, error) {
	m := labelPattern.FindStringSubmatch(stmt)
	if m == nil {
		return Label{}, fmt.Errorf("%w: no comment in %q", ErrInvalidLabel, stmt)
	}

	word := fold.String(m[1])
	if word == "either" {
		return EitherLabel, nil
	}

	sm := sessionPattern.FindStringSubmatch(word)
	if sm == nil {
		return Label{}, fmt.Errorf("%w: %q", ErrInvalidLabel, m[1])
	}
	k, err := strconv.Atoi(sm[1])
	if err != nil {
		return Label{}, fmt.Errorf("%w: %q", ErrInvalidLabel, m[1])
	}
	return T(k), nil
}

// ParseExpectation decodes the expected rows from everything after the
// first "--" of stmt.
func ParseExpectation(stmt string) (Expectation, error) {
	_, comment, found := strings.Cut(stmt, "--")
	if !found {
		return Expectation{Kind: ExpectExact, Values: map[int64]int64{}}, nil
	}

	values := make(map[int64]int64)
	for _, m := range pairPattern.FindAllStringSubmatch(comment, -1) {
		k, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Expectation{}, fmt.Errorf("%w: key %q: %v", ErrInvalidExpectation, m[1], err)
		}
		v, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return Expectation{}, fmt.Errorf("%w: value %q: %v", ErrInvalidExpectation, m[2], err)
		}
		values[k] = v
	}

	switch {
	case len(values) > 0:
		return Expectation{Kind: ExpectSubset, Values: values}, nil
	case strings.Contains(fold.String(comment), nothingPhrase):
		return Expectation{Kind: ExpectNothing, Values: values}, nil
	default:
		return Expectation{Kind: ExpectExact, Values: values}, nil
	}
}
