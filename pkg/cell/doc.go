// Package cell provides observable single-value containers.
//
// A Cell holds one value. Write replaces it and synchronously notifies every
// subscriber, in subscription order, with the new value. Subscribe invokes the
// callback once with the current value before returning, so consumers never
// need a separate "read the initial value" step.
//
// Writes issued from inside a subscriber are queued and delivered once the
// subscriber returns. Every subscriber therefore observes values in the order
// they were written, and a subscription removed during dispatch is not called
// again.
package cell
