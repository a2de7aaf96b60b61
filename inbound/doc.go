// Package inbound exposes the webhook pipeline over HTTP.
//
// DeliverWebhook is the transport-neutral entry point: it takes a raw body
// and headers and returns the HTTP status the caller should answer with.
// Duplicates answer 200 so the platform stops retrying.
package inbound
