package inventory

import "fmt"

// ConnectivityError aborts a whole inventory pass: the Kubernetes API or
// AWS itself is unreachable, as opposed to one record failing to resolve.
type ConnectivityError struct {
	System string // "kubernetes" or "aws"
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach %s: %v", e.System, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}
