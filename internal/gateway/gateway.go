package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Kind identifies one of the supported payment gateways. The set is
// closed: adapters are registered once at startup and selected through
// the Registry, never through string switches in request handlers.
type Kind string

const (
	KindVNPay Kind = "vnpay"
	KindMoMo  Kind = "momo"
	KindPayOS Kind = "payos"
)

var ErrUnknownKind = errors.New("unknown payment gateway")

// ErrMethodNotAllowed is returned by VerifyWebhook when a notification
// arrives with the wrong HTTP method for its gateway. No state is
// touched on this path.
var ErrMethodNotAllowed = errors.New("method not allowed for gateway webhook")

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindVNPay, KindMoMo, KindPayOS:
		return Kind(s), nil
	default:
		return "", ErrUnknownKind
	}
}

// Intent is the normalized payment request handed to an adapter.
// AmountVND is in major units; adapters convert to their wire unit.
type Intent struct {
	InvoiceID     string
	InvoiceNumber string
	AmountVND     int64
	Description   string
	ClientID      string
	ClientIP      string
}

// CreateResult is the outcome of building (and, for hosted-checkout
// gateways, creating) a payment request.
type CreateResult struct {
	TransactionID string
	PaymentURL    string
	CheckoutURL   string
	Deeplink      string
}

// Notification is a parsed and signature-checked inbound webhook.
// InvoiceNumber is empty when the reference could not be extracted;
// that is a reporting condition, not an error.
type Notification struct {
	Gateway              Kind
	SignatureValid       bool
	Success              bool
	ResultCode           string
	TransactionID        string
	GatewayTransactionNo string
	AmountVND            int64
	InvoiceNumber        string
	RawPayload           json.RawMessage
}

// Ack is the gateway-specific acknowledgment envelope written back to
// the gateway. Body may be nil for gateways that expect an empty reply.
type Ack struct {
	StatusCode int
	Body       interface{}
}

// PaymentGateway is the capability interface implemented once per
// gateway variant.
type PaymentGateway interface {
	Kind() Kind

	// BuildRequest validates the intent, generates the transaction
	// reference, signs the outbound payload and returns the redirect or
	// checkout URL. No transaction row exists yet when it fails.
	BuildRequest(ctx context.Context, intent Intent) (*CreateResult, error)

	// VerifyWebhook parses the inbound notification and recomputes its
	// signature. It never mutates state; callers decide what to persist
	// based on Notification.SignatureValid.
	VerifyWebhook(r *http.Request) (*Notification, error)

	// AckReceived is the documented "received/confirm" reply.
	AckReceived() Ack

	// AckInvalid is the documented reply for a rejected notification.
	// The reply never reveals which check failed.
	AckInvalid() Ack
}

// Registry holds the closed set of gateway adapters.
type Registry struct {
	gateways map[Kind]PaymentGateway
}

func NewRegistry(adapters ...PaymentGateway) *Registry {
	r := &Registry{gateways: make(map[Kind]PaymentGateway, len(adapters))}
	for _, adapter := range adapters {
		r.gateways[adapter.Kind()] = adapter
	}
	return r
}

func (r *Registry) Lookup(kind Kind) (PaymentGateway, bool) {
	gw, ok := r.gateways[kind]
	return gw, ok
}

func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.gateways))
	for kind := range r.gateways {
		kinds = append(kinds, kind)
	}
	return kinds
}
