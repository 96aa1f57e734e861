package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewInvoiceNumber returns INV-YYYYMM-XXXXXXXX. The suffix is random, so
// uniqueness still rests on the invoice_number index.
func NewInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("200601"), shortID())
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
