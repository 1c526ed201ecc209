package types

import "time"

// Product is one row of the mirrored catalog. Code is the unique primary
// identifier. SecondaryCode is an optional alias carried inline on the
// product row; the authoritative alias table is SecondaryCode.
type Product struct {
	Code          string  `json:"code"`
	Description   string  `json:"description"`
	UnitPrice     float64 `json:"unit_price"`
	Category      string  `json:"category,omitempty"`
	SecondaryCode string  `json:"secondary_code,omitempty"`
}

// Validate checks the fields required of every remote product row.
func (p *Product) Validate() error {
	if p.Code == "" {
		return ErrMissingCode
	}
	if p.Description == "" {
		return ErrMissingDescription
	}
	return nil
}

// SecondaryCode maps an alternate identifier (typically a barcode or GTIN)
// to a product's primary code. The reference is soft: a row whose
// PrimaryCode resolves to no product is tolerated and simply unresolvable
// at search time.
type SecondaryCode struct {
	SecondaryCode string `json:"secondary_code"`
	PrimaryCode   string `json:"primary_code"`
	Description   string `json:"description"`
}

// Validate checks the fields required of every remote alias row.
func (c *SecondaryCode) Validate() error {
	if c.SecondaryCode == "" {
		return ErrMissingCode
	}
	if c.PrimaryCode == "" {
		return ErrMissingPrimaryCode
	}
	return nil
}

// VersionInfo is the remote catalog's most recent version record. Hash is an
// opaque content fingerprint; equal hashes mean the catalog content is
// unchanged regardless of timestamps.
type VersionInfo struct {
	Hash      string    `json:"version_hash"`
	UpdatedAt time.Time `json:"updated_at"`
}
