// Package core contains the folio domain contracts and entities: inbound
// payment events, processing records, resolved upstream detail, invoice
// payloads and the error taxonomy shared by every adapter. Lower-level
// packages depend on core; core must not depend on provider-specific or
// transport-specific code.
package core
