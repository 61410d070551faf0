// Package average provides a fixed-capacity simple moving average over a
// scalar stream. Each update is O(1): the outgoing value is subtracted
// from a running sum and the incoming one added.
package average
