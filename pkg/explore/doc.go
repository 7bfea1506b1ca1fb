// Package explore runs many independent executions of one Intcode program.
//
// Every probe gets its own clone of a base machine, so probes share nothing
// and run in parallel without locking. A probe that faults (any error other
// than normal termination) marks its candidate as invalid; it does not abort
// the search.
package explore
