package equipment

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

const referenceCodePrefix = "BRW-"

// ReferenceCodeGenerator produces the human-facing codes that identify
// borrow records on loan slips and in the API.
type ReferenceCodeGenerator interface {
	// New returns a fresh, unique reference code
	New() (string, error)
}

// ULIDReferenceCodeGenerator issues BRW-prefixed ULIDs. ULIDs sort by
// issue time, so loan slips printed in sequence also sort naturally.
type ULIDReferenceCodeGenerator struct{}

// NewULIDReferenceCodeGenerator creates the default generator
func NewULIDReferenceCodeGenerator() *ULIDReferenceCodeGenerator {
	return &ULIDReferenceCodeGenerator{}
}

// New returns a BRW-prefixed ULID reference code
func (ULIDReferenceCodeGenerator) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return referenceCodePrefix + id.String(), nil
}

// Ensure ULIDReferenceCodeGenerator implements ReferenceCodeGenerator
var _ ReferenceCodeGenerator = (*ULIDReferenceCodeGenerator)(nil)
