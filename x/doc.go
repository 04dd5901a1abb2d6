/*
Package x holds the business logic modules of the protocol.

Each subpackage owns its models and exposes a controller with the
operations other code may call. The packages outside of x provide the
shared infrastructure they build on: the store, the orm, the error
registry and the event bus.
*/
package x
