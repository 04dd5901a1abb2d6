/*
Package streampay defines the types shared by every extension of the
streampay ledger: addresses, conditions, POSIX time and the key-value
store interfaces that all state access goes through.

The packages in x/ implement the business logic (vesting streams, fund
distribution, wallets) on top of these primitives. The store package
provides the cache-wrap based store implementations and orm the bucket
layer used to persist entities.
*/
package streampay
