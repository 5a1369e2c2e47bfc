// Package linkerr defines the error kinds shared by every stage of the
// linking pipeline, so the driver can classify a failure without caring
// which package raised it.
package linkerr

import "errors"

var (
	// ErrParse indicates an input byte slice is not a valid object or archive.
	ErrParse = errors.New("parse error")
	// ErrUnsupportedArchitecture indicates an object targets something other than x86_64.
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")
	// ErrUndefinedSymbol indicates a non-optional name never acquired a definition.
	ErrUndefinedSymbol = errors.New("undefined symbol")
	// ErrMissingGotEntry indicates a GOT-needing relocation found no slot; a layout/relocation bug.
	ErrMissingGotEntry = errors.New("missing GOT entry")
	// ErrRelocationOverflow indicates a computed value doesn't fit the relocation's size.
	ErrRelocationOverflow = errors.New("relocation overflow")
	// ErrOffsetOutOfBounds indicates a relocation offset falls outside its target buffer.
	ErrOffsetOutOfBounds = errors.New("offset out of bounds")
	// ErrUnsupportedRelocationSize indicates a relocation size other than 32 or 64 bits.
	ErrUnsupportedRelocationSize = errors.New("unsupported relocation size")
	// ErrIO wraps a failure reading an input or writing the output.
	ErrIO = errors.New("io error")
)
