package models

import "time"

// VaultEntry is one protected secret keyed by (Owner, SiteName).
//
// Owner and SiteName are immutable once written; SiteName is stored
// lower-cased and is unique per owner. Ciphertext and Nonce together form
// the opaque encrypted record produced by the encryption engine; no other
// component interprets those bytes.
type VaultEntry struct {
	ID         string
	Owner      string
	SiteName   string
	SiteURL    string
	Ciphertext []byte
	Nonce      []byte
	CreatedAt  time.Time
}

// RevealedEntry is the decrypted, caller-facing view of a vault entry.
// Never persisted.
type RevealedEntry struct {
	SiteName  string    `json:"website_name"`
	SiteURL   string    `json:"website_url"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

// EntrySummary describes an entry without its secret.
type EntrySummary struct {
	SiteName  string    `json:"website_name"`
	SiteURL   string    `json:"website_url"`
	CreatedAt time.Time `json:"created_at"`
}
