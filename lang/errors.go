package lang

import "errors"

// Sentinel errors for the formatting-language engine, mirroring the
// taxonomy in spec §7 ("Syntax", "Evaluation" kinds).
var (
	ErrSyntax           = errors.New("lang: syntax error")
	ErrArity            = errors.New("lang: wrong argument count")
	ErrUnknownVariable  = errors.New("lang: unknown variable")
	ErrUnknownDatabase  = errors.New("lang: unknown database")
	ErrNonNumeric       = errors.New("lang: non-numeric argument")
	ErrUnknownFunction  = errors.New("lang: unknown function")
)
