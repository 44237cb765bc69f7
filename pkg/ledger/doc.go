/*
Package ledger records what each generation run wrote into an SQLite database.

A Run implements codegen.Tracker, so an engine configured with one can leave
outputs with identical content untouched. After a successful run the ledger
can list and forget outputs that the run no longer produced, and report
aggregate statistics over all runs.
*/
package ledger
