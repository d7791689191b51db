package ids

import "fmt"

// CakeSize is the length in bytes of a Cake: a HashKey tagged with a
// one-byte purpose, the 33-byte form used for inter-cask references
// (spec.md §4.4's "Cake" wire type).
const CakeSize = HashSize + 1

// CakePurpose tags what a Cake's hash component means.
type CakePurpose uint8

const (
	// CakePurposeNull marks an absent reference, used for the bootstrap
	// cask's prev_cask_id.
	CakePurposeNull CakePurpose = 0
	// CakePurposeCaskRef marks a Cake whose Hash is HashKey.Of(CaskId.Bytes())
	// for some other cask, used by prev_cask_id and next_cask_id. LINK's
	// to_id also carries this tag, with the target blob's HashKey as Hash.
	CakePurposeCaskRef CakePurpose = 1
	// CakePurposeCatalog marks a Cake whose Hash is the digest of a cask's
	// serialized catalog, used by CASK_HEADER.catalog_id.
	CakePurposeCatalog CakePurpose = 2
)

// Cake is a HashKey tagged with a one-byte purpose.
type Cake struct {
	Hash    HashKey
	Purpose CakePurpose
}

// NullCake is the sentinel Cake used where no reference exists (e.g. the
// bootstrap cask's prev_cask_id).
var NullCake = Cake{Purpose: CakePurposeNull}

// CakeForCask builds the Cake that references the cask identified by id.
func CakeForCask(id CaskId) Cake {
	return Cake{Hash: Of(id.Bytes()), Purpose: CakePurposeCaskRef}
}

// CakeForCatalog builds the Cake that records a cask's catalog digest.
func CakeForCatalog(catalogBytes []byte) Cake {
	return Cake{Hash: Of(catalogBytes), Purpose: CakePurposeCatalog}
}

// Bytes returns the Cake's 33-byte wire encoding: Hash ‖ Purpose.
func (c Cake) Bytes() []byte {
	out := make([]byte, CakeSize)
	copy(out, c.Hash[:])
	out[HashSize] = byte(c.Purpose)
	return out
}

// IsNull reports whether c is the null sentinel.
func (c Cake) IsNull() bool {
	return c.Purpose == CakePurposeNull
}

// CakeFromBytes decodes a 33-byte Cake.
func CakeFromBytes(b []byte) (Cake, error) {
	var out Cake
	if len(b) != CakeSize {
		return out, fmt.Errorf("ids: cake must be %d bytes, got %d", CakeSize, len(b))
	}
	copy(out.Hash[:], b[:HashSize])
	out.Purpose = CakePurpose(b[HashSize])
	return out, nil
}
