// Package cloudbeds resolves authoritative transaction and reservation detail
// from the property-management platform's accounting API.
package cloudbeds
