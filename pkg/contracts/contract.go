// Package contracts defines the canonical input record for compliance
// certification: an immutable description of an AI application's model,
// interactions, and domain context.
//
// A Contract is constructed once, validated against the domain invariants,
// and never mutated by the pipeline.
package contracts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// Domain identifiers with extra validation requirements.
const (
	DomainHealthcare = "healthcare"
	DomainFinance    = "finance"
)

// Context keys with conventional meaning.
const (
	ContextKeyDomain            = "domain"
	ContextKeyPatientData       = "patient_data"
	ContextKeyCustomerData      = "customer_data"
	ContextKeyRiskDocumentation = "risk_documentation"
	ContextKeyModelCard         = "model_card"
)

// ModelInfo describes the AI model under evaluation.
type ModelInfo struct {
	ModelName    string         `json:"model_name"`
	ModelVersion string         `json:"model_version,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Interaction is a single input/output exchange with the AI system.
type Interaction struct {
	InteractionID string         `json:"interaction_id"`
	Timestamp     time.Time      `json:"timestamp"`
	InputText     string         `json:"input_text"`
	OutputText    string         `json:"output_text"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Contract is the immutable input record submitted for certification.
type Contract struct {
	ContractID        string         `json:"contract_id"`
	ApplicationName   string         `json:"application_name"`
	ModelInfo         ModelInfo      `json:"model_info"`
	Interactions      []Interaction  `json:"interactions"`
	FinalOutput       string         `json:"final_output,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
	ComplianceContext map[string]any `json:"compliance_context,omitempty"`
}

// New constructs a validated Contract. A fresh UUID is assigned when
// contractID is empty. Construction fails with a validation-kinded error
// when the §3 invariants are violated.
func New(contractID, applicationName string, modelInfo ModelInfo, interactions []Interaction, opts ...Option) (*Contract, error) {
	if contractID == "" {
		contractID = uuid.NewString()
	}
	c := &Contract{
		ContractID:      contractID,
		ApplicationName: applicationName,
		ModelInfo:       modelInfo,
		Interactions:    interactions,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Option customizes contract construction.
type Option func(*Contract)

// WithFinalOutput sets the summarized final decision.
func WithFinalOutput(out string) Option {
	return func(c *Contract) { c.FinalOutput = out }
}

// WithContext sets the free-form domain context map.
func WithContext(ctx map[string]any) Option {
	return func(c *Contract) { c.Context = ctx }
}

// WithComplianceContext sets jurisdictions/frameworks metadata.
func WithComplianceContext(cc map[string]any) Option {
	return func(c *Contract) { c.ComplianceContext = cc }
}

// Validate checks the construction invariants:
//   - application_name non-empty
//   - interactions non-empty
//   - healthcare domain requires risk_documentation and patient_data
//   - finance domain requires risk_documentation and customer_data
func (c *Contract) Validate() error {
	const op = "contracts.Validate"
	if strings.TrimSpace(c.ApplicationName) == "" {
		return evaluation.Errorf(evaluation.KindValidation, op, "application_name must be non-empty")
	}
	if len(c.Interactions) == 0 {
		return evaluation.Errorf(evaluation.KindValidation, op, "interactions must be non-empty")
	}
	domain, _ := c.Context[ContextKeyDomain].(string)
	switch domain {
	case DomainHealthcare:
		if err := c.requireContextKeys(op, ContextKeyRiskDocumentation, ContextKeyPatientData); err != nil {
			return err
		}
	case DomainFinance:
		if err := c.requireContextKeys(op, ContextKeyRiskDocumentation, ContextKeyCustomerData); err != nil {
			return err
		}
	}
	return nil
}

func (c *Contract) requireContextKeys(op string, keys ...string) error {
	domain, _ := c.Context[ContextKeyDomain].(string)
	for _, key := range keys {
		if _, ok := c.Context[key]; !ok {
			return evaluation.Errorf(evaluation.KindValidation, op,
				"domain %q requires context.%s", domain, key)
		}
	}
	return nil
}

// Domain returns the conventional context domain, or "" when absent.
func (c *Contract) Domain() string {
	d, _ := c.Context[ContextKeyDomain].(string)
	return d
}

// RiskDocumentation returns context.risk_documentation as text, falling back
// to a reconstruction from interaction outputs when absent.
func (c *Contract) RiskDocumentation() string {
	if doc, ok := c.Context[ContextKeyRiskDocumentation].(string); ok && doc != "" {
		return doc
	}
	var b strings.Builder
	for _, it := range c.Interactions {
		b.WriteString(it.OutputText)
		b.WriteString("\n")
	}
	return b.String()
}

// ModelCard returns the structured model_card object from context, if any.
func (c *Contract) ModelCard() (map[string]any, bool) {
	mc, ok := c.Context[ContextKeyModelCard].(map[string]any)
	return mc, ok
}

// String implements fmt.Stringer without dumping interaction bodies.
func (c *Contract) String() string {
	return fmt.Sprintf("Contract(%s, app=%s, interactions=%d)", c.ContractID, c.ApplicationName, len(c.Interactions))
}
