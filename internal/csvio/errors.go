package csvio

import "fmt"

// ColumnMismatchError is returned when the first CSV row does not have the
// expected number of columns. No further rows are parsed in that case.
type ColumnMismatchError struct {
	Expected int
	Got      int
}

func (e *ColumnMismatchError) Error() string {
	return fmt.Sprintf("csv: expected %d columns, got %d", e.Expected, e.Got)
}

// ReadError wraps I/O and parser failures other than a column mismatch.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read csv %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
