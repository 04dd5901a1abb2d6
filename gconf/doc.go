/*
Package gconf provides a singleton configuration entity for each package.

Configuration is stored in the same key-value store as the rest of the
state, under a `_c:<package>` key, so that configuration updates commit
or roll back together with the operation that made them.
*/
package gconf
