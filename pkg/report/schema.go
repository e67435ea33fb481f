package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaJSON is the prepress_report_v1 contract. additionalProperties stays
// open everywhere to keep evolution additive for readers of older schemas.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "jobId", "mode", "timestamp", "input", "summary", "issues", "analysis", "toolAvailability", "toolVersions"],
  "properties": {
    "version": {"const": "prepress_report_v1"},
    "jobId": {"type": "string", "minLength": 1},
    "mode": {"enum": ["check", "check_and_fix"]},
    "timestamp": {"type": "string"},
    "input": {
      "type": "object",
      "required": ["filename", "sizeBytes", "pageCount"],
      "properties": {
        "filename": {"type": "string"},
        "sizeBytes": {"type": "integer", "minimum": 0},
        "pageCount": {"type": "integer", "minimum": 0}
      }
    },
    "summary": {
      "type": "object",
      "required": ["score", "counts"],
      "properties": {
        "score": {"type": "number", "minimum": 0, "maximum": 100},
        "counts": {
          "type": "object",
          "required": ["blocker", "warning", "info"],
          "properties": {
            "blocker": {"type": "integer", "minimum": 0},
            "warning": {"type": "integer", "minimum": 0},
            "info": {"type": "integer", "minimum": 0}
          }
        }
      }
    },
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["severity", "code", "message"],
        "properties": {
          "severity": {"enum": ["BLOCKER", "WARNING", "INFO"]},
          "code": {"type": "string", "minLength": 1},
          "message": {"type": "string"}
        }
      }
    },
    "analysis": {
      "type": "object",
      "required": ["pageCount", "fontsEmbedded"],
      "properties": {
        "pageCount": {"type": "integer", "minimum": 0},
        "fontsEmbedded": {"type": "boolean"}
      }
    },
    "toolAvailability": {
      "type": "object",
      "additionalProperties": {"type": "boolean"}
    },
    "toolVersions": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "normalization": {
      "type": "object",
      "required": ["originalFormat"],
      "properties": {
        "originalFormat": {"type": "string", "minLength": 1}
      }
    },
    "fix": {
      "type": "object",
      "required": ["before", "after", "applied"],
      "properties": {
        "before": {"$ref": "#/$defs/snapshot"},
        "after": {"$ref": "#/$defs/snapshot"},
        "applied": {"type": "array", "items": {"type": "string"}}
      }
    }
  },
  "$defs": {
    "snapshot": {
      "type": "object",
      "required": ["score", "counts"],
      "properties": {
        "score": {"type": "number", "minimum": 0, "maximum": 100}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("prepress_report_v1.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("prepress_report_v1.json")
	})
	return schema, schemaErr
}

// Validate checks serialized report JSON against the contract schema.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal report: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("report does not match %s: %w", Version, err)
	}
	return nil
}
