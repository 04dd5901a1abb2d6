/*
Package distributor implements fee-aware multi-recipient payouts.

A single deposit is split among any number of recipients, either in
equal shares or proportionally to declared weights. The protocol fee is
deducted from the deposit before splitting, so recipients always share
the net amount. Every successful distribution is recorded in an
append-only history and reflected in per-user, per-token and global
statistics.
*/
package distributor
