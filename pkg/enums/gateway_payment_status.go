package enums

import "fmt"

// GatewayPaymentStatus is the normalized status carried by payment webhooks.
type GatewayPaymentStatus string

const (
	GatewayPaymentValid     GatewayPaymentStatus = "VALID"
	GatewayPaymentFailed    GatewayPaymentStatus = "FAILED"
	GatewayPaymentCancelled GatewayPaymentStatus = "CANCELLED"
)

var validGatewayPaymentStatuses = []GatewayPaymentStatus{
	GatewayPaymentValid,
	GatewayPaymentFailed,
	GatewayPaymentCancelled,
}

func (g GatewayPaymentStatus) String() string {
	return string(g)
}

func (g GatewayPaymentStatus) IsValid() bool {
	for _, candidate := range validGatewayPaymentStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// PaymentStatus maps the gateway outcome onto the order payment axis.
func (g GatewayPaymentStatus) PaymentStatus() PaymentStatus {
	switch g {
	case GatewayPaymentValid:
		return PaymentStatusPaid
	case GatewayPaymentCancelled:
		return PaymentStatusCancelled
	default:
		return PaymentStatusFailed
	}
}

func ParseGatewayPaymentStatus(value string) (GatewayPaymentStatus, error) {
	for _, candidate := range validGatewayPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway payment status %q", value)
}
