package constants

// DocumentStatus is the canonical status for an ingested document.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentPending    DocumentStatus = "PENDING"    // ingested, not yet extracted
	DocumentProcessing DocumentStatus = "PROCESSING" // cascade in progress
	DocumentValid      DocumentStatus = "VALID"      // extraction + validation succeeded
	DocumentInvalid    DocumentStatus = "INVALID"    // routed to manual review
)
