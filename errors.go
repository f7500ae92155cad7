package peview

import "github.com/pkg/errors"

// Classification errors returned by the view engine. They are plain values:
// the engine never logs, panics or retries, it only reports what it found
// and leaves the decision to the caller.
var (
	// ErrNull is returned when a zero RVA or VA is given where a real
	// address is required.
	ErrNull = errors.New("null address")

	// ErrOutOfBounds is returned when an address, or the range it implies,
	// does not fit within the image or any recognized region of it.
	ErrOutOfBounds = errors.New("address outside image boundary")

	// ErrZeroFill is returned when an RVA points into the part of a section
	// that has no raw data on disk. The loader fills this range with zeroes,
	// so the address is valid per the format but there are no file bytes
	// behind it.
	ErrZeroFill = errors.New("rva in zero filled part of section")

	// ErrOverflow is returned when a derived size computation would exceed
	// the representable range, e.g. element size times a corrupt count.
	ErrOverflow = errors.New("size computation overflow")

	// ErrBadMagic is returned when a required signature field does not
	// match its expected constant.
	ErrBadMagic = errors.New("magic signature mismatch")

	// ErrMisaligned is returned when e_lfanew violates the 4 byte alignment
	// rule, or when a typed read's address fails its alignment requirement.
	ErrMisaligned = errors.New("misaligned address")

	// ErrInsane is returned when a header field holds a value so large that
	// later offset arithmetic over it would be unreliable. These ceilings
	// are engineering margins, not format rules.
	ErrInsane = errors.New("header field fails sanity check")

	// ErrBadCStr is returned when a string is not validly terminated within
	// the available view.
	ErrBadCStr = errors.New("string is not nul terminated")
)
