// Package xubio talks to the accounting service: Client attaches a cached
// client-credentials token to every call and retries invoice submission on
// transient failures, Mapper turns an inbound payment event into an invoice.
package xubio
