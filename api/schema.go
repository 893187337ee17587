package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/warp/workforce-engine/workforce"
)

// ErrMalformedBody is returned for request bodies that are not valid JSON
// or do not match the intent schema.
var ErrMalformedBody = errors.New("malformed request body")

// intentSchemaJSON describes POST /api/intents. It checks shape and
// per-type required fields; range checks that depend on tuning
// (maxRateIncrease) stay in Intent.Validate.
const intentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["intents"],
  "additionalProperties": false,
  "properties": {
    "intents": {
      "type": "array",
      "maxItems": 1000,
      "items": { "$ref": "#/$defs/intent" }
    }
  },
  "$defs": {
    "id": { "type": "string", "minLength": 1 },
    "count": { "type": "number", "minimum": 0 },
    "context": {
      "type": "object",
      "required": ["scope", "structureId"],
      "additionalProperties": false,
      "properties": {
        "scope": { "enum": ["structure", "room", "zone", "device"] },
        "structureId": { "$ref": "#/$defs/id" },
        "roomId": { "type": "string" },
        "zoneId": { "type": "string" },
        "deviceId": { "type": "string" },
        "plantCount": { "$ref": "#/$defs/count" },
        "areaSquareMeters": { "$ref": "#/$defs/count" }
      }
    },
    "intent": {
      "type": "object",
      "required": ["type"],
      "additionalProperties": false,
      "properties": {
        "type": {
          "enum": [
            "workforce.raise.accept", "workforce.raise.ignore", "workforce.raise.bonus",
            "workforce.employee.terminate",
            "hiring.market.scan", "hiring.market.hire",
            "workforce.task.enqueue", "workforce.task.cancel"
          ]
        },
        "employeeId": { "$ref": "#/$defs/id" },
        "rateIncreaseFactor": { "type": "number", "minimum": 0 },
        "bonusAmount": { "type": "number", "minimum": 0 },
        "moraleBoost": { "type": "number", "minimum": -1, "maximum": 1 },
        "moraleRipple": { "type": "number", "minimum": -1, "maximum": 1 },
        "reasonSlug": { "type": "string" },
        "severanceCc": { "type": "number", "minimum": 0 },
        "structureId": { "$ref": "#/$defs/id" },
        "candidateId": { "$ref": "#/$defs/id" },
        "taskId": { "$ref": "#/$defs/id" },
        "taskCode": { "$ref": "#/$defs/id" },
        "dueTick": { "type": "integer" },
        "context": { "$ref": "#/$defs/context" }
      },
      "allOf": [
        {
          "if": { "properties": { "type": { "enum": [
            "workforce.raise.accept", "workforce.raise.ignore", "workforce.raise.bonus",
            "workforce.employee.terminate"
          ] } } },
          "then": { "required": ["employeeId"] }
        },
        {
          "if": { "properties": { "type": { "const": "hiring.market.scan" } } },
          "then": { "required": ["structureId"] }
        },
        {
          "if": { "properties": { "type": { "const": "hiring.market.hire" } } },
          "then": { "required": ["candidateId"] }
        },
        {
          "if": { "properties": { "type": { "const": "workforce.task.enqueue" } } },
          "then": { "required": ["taskCode", "context"] }
        },
        {
          "if": { "properties": { "type": { "const": "workforce.task.cancel" } } },
          "then": { "required": ["taskId"] }
        }
      ]
    }
  }
}`

var intentSchema = jsonschema.MustCompileString("intents.schema.json", intentSchemaJSON)

// decodeIntents validates raw against intentSchema and decodes it. A bare
// JSON array is accepted as shorthand for {"intents": [...]}.
func decodeIntents(raw []byte) ([]workforce.Intent, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if arr, ok := doc.([]any); ok {
		doc = map[string]any{"intents": arr}
		var err error
		if raw, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
	}
	if err := intentSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	var req SubmitIntentsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return req.Intents, nil
}
