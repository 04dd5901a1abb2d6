/*
Package cash keeps track of token balances.

A wallet holds the balance of one account for any number of tokens. Other
modules move value through the Controller and never touch wallets
directly. The stream ledger uses it to escrow deposits and the
distributor uses it to pay out splits.
*/
package cash
