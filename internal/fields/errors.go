package fields

import "errors"

// Error taxonomy. Structural problems propagate to the caller; geometry and
// lookup problems are recovered locally with skip-and-continue.
var (
	// ErrInvalidSignature indicates the document does not start with the
	// standard PDF signature. Terminal for the whole document.
	ErrInvalidSignature = errors.New("invalid PDF signature")

	// ErrDuplicateID indicates an insert with an id already present in the
	// store. Fatal to the operation; the store is left untouched.
	ErrDuplicateID = errors.New("duplicate field id")

	// ErrFieldNotFound indicates a store lookup by id found nothing.
	ErrFieldNotFound = errors.New("field not found")

	// ErrDocumentParse indicates the mutation target could not be parsed;
	// callers fall back to rebuilding a document from scratch.
	ErrDocumentParse = errors.New("document parse failed")
)
