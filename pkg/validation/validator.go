package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxSchemaFields  = 64
	MaxFieldNameLen  = 64
	MinBatchSize     = 1
	MaxBatchSize     = 10000

	// fieldNamePattern matches the same identifier shape C field names use:
	// letter or underscore, then alphanumerics/underscores.
	fieldNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

func init() {
	validate = validator.New()
}

// SchemaFieldRequest describes one field of a record schema, as accepted
// from a config file or benchmark tool before it is turned into a
// blockfile.FieldDescriptor.
type SchemaFieldRequest struct {
	Name string `json:"name" validate:"required,min=1,max=64"`
	Type string `json:"type" validate:"required,oneof=uint32 string bytes"`
}

// SchemaRequest describes the full record schema of a blocked sequence set,
// as accepted from configuration before Header construction.
type SchemaRequest struct {
	Fields          []SchemaFieldRequest `json:"fields" validate:"required,min=1,max=64,dive"`
	PrimaryKeyField string                `json:"primaryKeyField" validate:"required"`
}

// ValidateSchemaRequest validates a schema request: struct-tag validation
// first, then the cross-field checks a tag alone can't express (duplicate
// field names, primary key field must exist, primary key must be a
// uint32 field since RBN/key arithmetic assumes a fixed-width key).
func ValidateSchemaRequest(req *SchemaRequest) error {
	if req == nil {
		return errors.New("schema request cannot be nil")
	}

	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if len(req.Fields) > MaxSchemaFields {
		return fmt.Errorf("Fields: maximum %d fields allowed, got %d", MaxSchemaFields, len(req.Fields))
	}

	seen := make(map[string]bool, len(req.Fields))
	var primaryFound bool
	var primaryType string
	for _, f := range req.Fields {
		if err := ValidateFieldName(f.Name); err != nil {
			return fmt.Errorf("Fields: %w", err)
		}
		if seen[f.Name] {
			return fmt.Errorf("Fields: duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
		if f.Name == req.PrimaryKeyField {
			primaryFound = true
			primaryType = f.Type
		}
	}

	if !primaryFound {
		return fmt.Errorf("PrimaryKeyField: %q is not among the declared fields", req.PrimaryKeyField)
	}
	if primaryType != "uint32" {
		return fmt.Errorf("PrimaryKeyField: %q must be a uint32 field, got %q", req.PrimaryKeyField, primaryType)
	}

	return nil
}

// ValidateFieldName validates a schema field name.
func ValidateFieldName(name string) error {
	if name == "" {
		return errors.New("field name cannot be empty")
	}
	if len(name) > MaxFieldNameLen {
		return fmt.Errorf("field name %q exceeds maximum length of %d characters", name, MaxFieldNameLen)
	}
	if !fieldNamePattern.MatchString(name) {
		return fmt.Errorf("field name %q is invalid (must start with letter or underscore, followed by alphanumeric or underscore)", name)
	}
	return nil
}

// ValidateBatchSize validates the size of a bulk-load batch.
func ValidateBatchSize(size int) error {
	if size < MinBatchSize {
		return fmt.Errorf("batch size must be at least %d, got %d", MinBatchSize, size)
	}
	if size > MaxBatchSize {
		return fmt.Errorf("batch size must not exceed %d, got %d", MaxBatchSize, size)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		case "dive":
			return fmt.Errorf("%s: invalid element in array", field)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
