// Package monitor checks gateway payloads against JSON-schema contracts
// before they are decoded into typed structures.
package monitor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const rootContext = "(root)"

// Result is the outcome of one contract check.
type Result struct {
	Valid   bool
	Errors  []string // every violation, human readable
	Missing []string // dotted paths of absent required fields
}

// ContractMonitor validates JSON documents against a compiled schema.
type ContractMonitor struct {
	name   string
	schema *gojsonschema.Schema
}

// NewContractMonitor creates a new ContractMonitor with the given schema file path.
// The schemaPath should be an absolute path or relative to the execution directory.
func NewContractMonitor(schemaPath string) (*ContractMonitor, error) {
	return compile(schemaPath, gojsonschema.NewReferenceLoader("file://"+schemaPath))
}

// NewContractMonitorFromString compiles an in-memory schema, typically one
// embedded in the binary.
func NewContractMonitorFromString(name, schema string) (*ContractMonitor, error) {
	return compile(name, gojsonschema.NewStringLoader(schema))
}

// MustContractMonitor is like NewContractMonitorFromString but panics on error.
func MustContractMonitor(name, schema string) *ContractMonitor {
	cm, err := NewContractMonitorFromString(name, schema)
	if err != nil {
		panic(err)
	}
	return cm
}

func compile(name string, loader gojsonschema.JSONLoader) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("error loading or compiling schema %s: %w", name, err)
	}
	return &ContractMonitor{name: name, schema: schema}, nil
}

// Name identifies the contract in logs.
func (cm *ContractMonitor) Name() string {
	return cm.name
}

// Inspect validates body and reports every violation, including the paths of
// missing required fields. A body that is not JSON yields an error.
func (cm *ContractMonitor) Inspect(body []byte) (Result, error) {
	res, err := cm.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return Result{}, fmt.Errorf("error during validation: %w", err)
	}
	if res.Valid() {
		return Result{Valid: true}, nil
	}

	out := Result{}
	for _, desc := range res.Errors() {
		out.Errors = append(out.Errors, desc.String())
		if desc.Type() != "required" {
			continue
		}
		prop, _ := desc.Details()["property"].(string)
		if prop == "" {
			continue
		}
		if parent := desc.Field(); parent != "" && parent != rootContext {
			prop = parent + "." + prop
		}
		out.Missing = append(out.Missing, prop)
	}
	sort.Strings(out.Missing)
	return out, nil
}

// Validate validates the given body against the loaded JSON schema.
// It returns true if valid, or false and a list of validation errors if invalid.
func (cm *ContractMonitor) Validate(body []byte) (bool, []string, error) {
	res, err := cm.Inspect(body)
	if err != nil {
		return false, nil, err
	}
	return res.Valid, res.Errors, nil
}

// FormatErrors formats a slice of validation error strings into a single string.
func FormatErrors(validationErrors []string) string {
	if len(validationErrors) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(validationErrors, "; ")
}
