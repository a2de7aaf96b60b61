// Package memory provides process-local stores: Store is a strict mutex-backed
// idempotency store and event log, DegradedStore is the explicit no-database
// mode that accepts every claim.
package memory
