package knowledge

import "errors"

var (
	ErrNotFound      = errors.New("knowledge base document not found")
	ErrMalformedData = errors.New("knowledge base document is malformed")
)
