package delivery

import (
	"fmt"
	"strings"
	"time"

	"fulfillment/internal/pkg/errs"
)

// ProofMethod is how the hand-over to the customer was evidenced.
type ProofMethod int

const (
	ProofUnknown ProofMethod = iota
	ProofPhoto
	ProofOTP
	ProofSignature
	ProofContactless
)

var proofMethodNames = map[ProofMethod]string{
	ProofPhoto:       "photo",
	ProofOTP:         "otp",
	ProofSignature:   "signature",
	ProofContactless: "contactless",
}

func (m ProofMethod) String() string {
	if name, ok := proofMethodNames[m]; ok {
		return name
	}
	return "unknown"
}

func ParseProofMethod(s string) (ProofMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for m, name := range proofMethodNames {
		if name == normalized {
			return m, nil
		}
	}
	return ProofUnknown, errs.NewValueIsInvalidErrorWithCause("proof method", fmt.Errorf("%q is not a valid method", s))
}

// ProofOfDelivery is attached atomically with the Delivered transition.
type ProofOfDelivery struct {
	Method        ProofMethod
	PhotoRef      string
	OTP           string
	SignatureData string
	Notes         string
	CollectedAt   time.Time
}

// Validate fails with ErrProofRequired when the evidence the method needs is missing.
func (p *ProofOfDelivery) Validate() error {
	if p == nil {
		return errs.ErrProofRequired
	}
	switch p.Method {
	case ProofPhoto:
		if strings.TrimSpace(p.PhotoRef) == "" {
			return fmt.Errorf("%w: photo reference is missing", errs.ErrProofRequired)
		}
	case ProofOTP:
		if strings.TrimSpace(p.OTP) == "" {
			return fmt.Errorf("%w: otp is missing", errs.ErrProofRequired)
		}
	case ProofSignature:
		if strings.TrimSpace(p.SignatureData) == "" {
			return fmt.Errorf("%w: signature is missing", errs.ErrProofRequired)
		}
	case ProofContactless:
	default:
		return fmt.Errorf("%w: unknown proof method", errs.ErrProofRequired)
	}
	return nil
}
