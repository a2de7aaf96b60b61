// Package webhooks turns payment-event deliveries into accounting invoices.
//
// Each delivery moves through a fixed sequence of states:
// claiming -> resolving -> mapping -> submitting -> recording -> done.
// Deliveries that fail verification or lose the claim end in rejected; any
// other failure ends in failed after the processing record has been updated.
// The processor holds no locks; deduplication of concurrent deliveries rests
// entirely on the store's atomic claim.
package webhooks
