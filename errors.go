package obstack

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrCapacityExceeded is returned by an allocation that would exceed the
// arena's remaining capacity. It is an ordinary, expected result: the
// arena's state is left completely unchanged when it is returned.
var ErrCapacityExceeded = errors.New("obstack: allocation exceeds remaining capacity")

// collectTeardownErrors recovers a panic raised by fn (a single destructor
// invocation), folding it into acc via go-multierror so a failing
// destructor during bulk teardown does not prevent the remaining chunks
// from being visited and released.
func collectTeardownErrors(acc *error, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			*acc = multierror.Append(*acc, recoveredError(r))
		}
	}()
	fn()
}

func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("obstack: destructor panicked: %w", err)
	}
	return fmt.Errorf("obstack: destructor panicked: %v", r)
}
