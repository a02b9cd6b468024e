package proof

import "fmt"

// Kind classifies verification failures. A Kind is itself an error, so
// errors.Is(err, proof.KindHeaderParse) matches any *Error of that kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindSetup
	KindHeaderParse
	KindNumberSpecParse
	KindFactorValidation
	KindTooFewResidues
	KindResidueRead
	KindArithmeticEngine
	KindDivisorCapacityExceeded
	KindCanceled
)

var kindNames = [...]string{
	KindUnknown:                 "unknown",
	KindSetup:                   "setup",
	KindHeaderParse:             "header parse",
	KindNumberSpecParse:         "number spec parse",
	KindFactorValidation:        "factor validation",
	KindTooFewResidues:          "too few residues",
	KindResidueRead:             "residue read",
	KindArithmeticEngine:        "arithmetic engine",
	KindDivisorCapacityExceeded: "divisor capacity exceeded",
	KindCanceled:                "canceled",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) Error() string { return "proof: " + k.String() }

// Error is a fatal verification failure.
type Error struct {
	Kind Kind
	Op   string // stage or field that failed
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("proof: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("proof: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a Kind target against e.Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Sentinels for errors.Is; each matches every *Error of its kind.
var (
	ErrSetup                   error = KindSetup
	ErrHeaderParse             error = KindHeaderParse
	ErrNumberSpecParse         error = KindNumberSpecParse
	ErrFactorValidation        error = KindFactorValidation
	ErrTooFewResidues          error = KindTooFewResidues
	ErrResidueRead             error = KindResidueRead
	ErrArithmeticEngine        error = KindArithmeticEngine
	ErrDivisorCapacityExceeded error = KindDivisorCapacityExceeded
	ErrCanceled                error = KindCanceled
)
