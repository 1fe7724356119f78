package contracts

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// contractSchema is the persistence schema for contract JSON. The loader
// accepts any superset of these fields; unknown top-level fields are
// preserved in the contract context.
const contractSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["application_name", "interactions"],
  "properties": {
    "contract_id": {"type": "string"},
    "application_name": {"type": "string", "minLength": 1},
    "model_info": {
      "type": "object",
      "properties": {
        "model_name": {"type": "string"},
        "model_version": {"type": "string"},
        "metadata": {"type": "object"}
      }
    },
    "interactions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["input_text", "output_text"],
        "properties": {
          "interaction_id": {"type": "string"},
          "timestamp": {"type": "string"},
          "input_text": {"type": "string"},
          "output_text": {"type": "string"},
          "metadata": {"type": "object"}
        }
      }
    },
    "final_output": {"type": "string"},
    "context": {"type": "object"},
    "compliance_context": {"type": "object"}
  }
}`

var compiledContractSchema = jsonschema.MustCompileString("contract.schema.json", contractSchema)

// knownTopLevelKeys are the contract fields the codec maps directly;
// everything else is folded into Context.
var knownTopLevelKeys = map[string]bool{
	"contract_id":        true,
	"application_name":   true,
	"model_info":         true,
	"interactions":       true,
	"final_output":       true,
	"context":            true,
	"compliance_context": true,
}

// Decode parses and validates contract JSON. Unknown top-level fields are
// preserved under Context so round-trips do not lose caller data.
func Decode(data []byte) (*Contract, error) {
	const op = "contracts.Decode"

	var generic any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, evaluation.Errorf(evaluation.KindValidation, op, "invalid JSON: %v", err)
	}
	if err := compiledContractSchema.Validate(generic); err != nil {
		return nil, evaluation.Errorf(evaluation.KindValidation, op, "schema validation: %v", err)
	}

	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, evaluation.Errorf(evaluation.KindValidation, op, "decode contract: %v", err)
	}

	if top, ok := generic.(map[string]any); ok {
		for key, val := range top {
			if knownTopLevelKeys[key] {
				continue
			}
			if c.Context == nil {
				c.Context = make(map[string]any)
			}
			if _, exists := c.Context[key]; !exists {
				c.Context[key] = val
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Encode serializes a contract as pretty-printed JSON.
func Encode(c *Contract) ([]byte, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, evaluation.NewError(evaluation.KindInternal, "contracts.Encode", err)
	}
	return b, nil
}

// Load reads and decodes a contract file.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, evaluation.Errorf(evaluation.KindValidation, "contracts.Load", "read %s: %v", path, err)
	}
	return Decode(data)
}

// ToMap serializes the contract into the generic map shape used for policy
// engine input. IDs and timestamps become strings.
func (c *Contract) ToMap() (map[string]any, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, evaluation.NewError(evaluation.KindInternal, "contracts.ToMap", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, evaluation.NewError(evaluation.KindInternal, "contracts.ToMap", err)
	}
	return m, nil
}
