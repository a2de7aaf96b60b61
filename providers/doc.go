// Package providers groups the outbound integrations: the property-management
// platform detail resolver (cloudbeds) and the accounting-service client and
// invoice mapper (xubio).
package providers
