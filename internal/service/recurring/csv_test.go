package recurring

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	serviceID := uuid.MustParse("7f1c9a52-2f44-4d55-9a0e-3d4f8f2b1c11")
	customerID := uuid.MustParse("0b6a1e8e-5d1f-4c61-8a56-2a1d5e0f9c22")
	invoiceID := uuid.New()

	run := &domain.BillingRun{
		Anchor: domain.BillingAnchor25,
		Results: []domain.ServiceBillingResult{
			{ServiceID: serviceID, CustomerID: customerID, Success: true, InvoiceID: &invoiceID, InvoiceNumber: "INV-2025-000001", Amount: "803.85"},
			{ServiceID: serviceID, CustomerID: customerID, Success: true, Skipped: true, SkipReason: "already invoiced: INV-2025-000001"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, run))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "service_id,customer_id,success,skipped,skip_reason,invoice_number,amount,repaired_invoices,error", lines[0])
	assert.Equal(t, serviceID.String()+","+customerID.String()+",true,false,,INV-2025-000001,803.85,,", lines[1])
	assert.Contains(t, lines[2], "already invoiced: INV-2025-000001")
	assert.NotContains(t, buf.String(), invoiceID.String())
}
