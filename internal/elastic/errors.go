package elastic

import "fmt"

// ConnError is a connectivity failure against the datastore. It carries the
// attempted endpoint and operation so the UI can show what was unreachable.
type ConnError struct {
	Endpoint string
	Op       string
	Err      error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("elasticsearch %s at %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// SchemaError is a per-field schema mismatch: the document schema does not
// carry an expected field. It does not abort sibling computations.
type SchemaError struct {
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema mismatch on field %q: %s", e.Field, e.Message)
}
