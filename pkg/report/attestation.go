package report

import (
	"crypto/ed25519"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// AttestationClaims is the signed statement that a specific contract passed
// certification. The report content hash binds the attestation to the exact
// combined result it certifies.
type AttestationClaims struct {
	ApplicationName string   `json:"application_name"`
	ContractID      string   `json:"contract_id"`
	PolicyPackage   string   `json:"policy_package"`
	ContentHash     string   `json:"content_hash"`
	Evaluators      []string `json:"evaluators"`
	jwt.RegisteredClaims
}

// Attestor signs conformance attestations with an Ed25519 key.
type Attestor struct {
	key      ed25519.PrivateKey
	issuer   string
	validity time.Duration
}

// NewAttestor creates an attestor. Validity defaults to one year.
func NewAttestor(key ed25519.PrivateKey, issuer string, validity time.Duration) *Attestor {
	if validity == 0 {
		validity = 365 * 24 * time.Hour
	}
	return &Attestor{key: key, issuer: issuer, validity: validity}
}

// Attest signs an attestation for a fully compliant combined result.
// Non-compliant results are refused: an attestation is a positive claim.
func (a *Attestor) Attest(c *Combined) (string, error) {
	const op = "report.Attest"
	if !c.OverallCompliant {
		return "", evaluation.Errorf(evaluation.KindReport, op, "refusing to attest a non-compliant result")
	}
	if c.ContentHash == "" {
		if err := c.SealHash(); err != nil {
			return "", err
		}
	}

	evaluators := make([]string, 0, len(c.EvaluationResults))
	for name := range c.EvaluationResults {
		evaluators = append(evaluators, name)
	}
	sort.Strings(evaluators)

	now := time.Now().UTC()
	claims := AttestationClaims{
		ApplicationName: c.ApplicationName,
		ContractID:      c.ContractID,
		PolicyPackage:   c.PolicyPackage,
		ContentHash:     c.ContentHash,
		Evaluators:      evaluators,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.issuer,
			Subject:   c.ContractID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.validity)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(a.key)
	if err != nil {
		return "", evaluation.NewError(evaluation.KindReport, op, err)
	}
	return signed, nil
}

// Verify checks an attestation token against the attestor's public key and
// returns its claims.
func Verify(token string, pub ed25519.PublicKey) (*AttestationClaims, error) {
	const op = "report.Verify"
	claims := &AttestationClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, evaluation.Errorf(evaluation.KindReport, op, "unexpected signing method %v", t.Header["alg"])
		}
		return pub, nil
	})
	if err != nil {
		return nil, evaluation.NewError(evaluation.KindReport, op, err)
	}
	if !parsed.Valid {
		return nil, evaluation.Errorf(evaluation.KindReport, op, "invalid attestation token")
	}
	return claims, nil
}
