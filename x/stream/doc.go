/*
Package stream implements a linear vesting stream ledger.

A stream releases a token amount from a sender to a recipient linearly
between a start and an end time. The sender funds the stream up to its
total amount, can pause and resume the vesting clock, and can cancel the
stream to split the remaining deposit between the vested part (paid to
the recipient) and the unvested part (refunded to the sender). The
recipient withdraws vested funds at any time and may delegate the
withdrawal right to another address.

Deposited funds are escrowed on an address derived from the stream id,
so wallet accounting always reflects where the money actually is.

Every mutating operation is atomic. It runs against a cache wrap of the
store and the changes become visible, and events observable, only after
the whole operation succeeded.
*/
package stream
