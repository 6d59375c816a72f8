package dispatch

import "errors"

// ErrAssignment is returned when binding a request to a car fails. The
// request stays pending.
var ErrAssignment = errors.New("assignment failed")

// ErrCarFault marks an assignment failure caused by the car itself. Such a
// car gets no further requests in the same cycle.
var ErrCarFault = errors.New("car fault")
