package gateway

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// invoiceNumberPattern matches the billing collaborator's invoice
// numbering (INV-<year>-<sequence>). PayOS only echoes the free-text
// description back, so extraction there depends on this pattern; if the
// numbering format ever changes, PayOS callbacks fall into the
// unresolved-reference path until this is updated.
var invoiceNumberPattern = regexp.MustCompile(`INV-\d{4}-\d{3}`)

// VNPayTxnRef builds {invoiceNumber}-VNPAY-{epochMillis}.
func VNPayTxnRef(invoiceNumber string, now time.Time) string {
	return fmt.Sprintf("%s-VNPAY-%d", invoiceNumber, now.UnixMilli())
}

// MoMoOrderID builds {invoiceNumber}-MOMO-{epochMillis}.
func MoMoOrderID(invoiceNumber string, now time.Time) string {
	return fmt.Sprintf("%s-MOMO-%d", invoiceNumber, now.UnixMilli())
}

// PayOSOrderCode derives a 9-digit numeric order code from the last six
// digits of the epoch-millis timestamp followed by three random digits.
// PayOS rejects non-numeric order identifiers.
func PayOSOrderCode(now time.Time) int64 {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	prefix := millis[len(millis)-6:]
	suffix := fmt.Sprintf("%03d", rand.Intn(1000))
	code, _ := strconv.ParseInt(prefix+suffix, 10, 64)
	return code
}

// ExtractInvoiceNumber recovers the invoice number from a gateway
// reference: the transaction reference for VNPay and MoMo (suffix
// delimited), the free-text description for PayOS (pattern matched).
// Returns "" when the reference does not carry a recognizable number.
func ExtractInvoiceNumber(kind Kind, ref string) string {
	switch kind {
	case KindVNPay:
		if number, _, found := strings.Cut(ref, "-VNPAY-"); found {
			return number
		}
		return ""
	case KindMoMo:
		if number, _, found := strings.Cut(ref, "-MOMO-"); found {
			return number
		}
		return ""
	case KindPayOS:
		return invoiceNumberPattern.FindString(ref)
	default:
		return ""
	}
}
