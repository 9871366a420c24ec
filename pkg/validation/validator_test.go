package validation

import (
	"testing"
)

// TestValidateSchemaRequest tests schema request validation
func TestValidateSchemaRequest(t *testing.T) {
	tests := []struct {
		name        string
		req         SchemaRequest
		expectError bool
	}{
		{
			name: "Valid schema",
			req: SchemaRequest{
				Fields: []SchemaFieldRequest{
					{Name: "zip_code", Type: "uint32"},
					{Name: "city", Type: "string"},
				},
				PrimaryKeyField: "zip_code",
			},
			expectError: false,
		},
		{
			name: "Valid schema with bytes field",
			req: SchemaRequest{
				Fields: []SchemaFieldRequest{
					{Name: "id", Type: "uint32"},
					{Name: "payload", Type: "bytes"},
				},
				PrimaryKeyField: "id",
			},
			expectError: false,
		},
		{
			name: "Empty fields - invalid",
			req: SchemaRequest{
				Fields:          nil,
				PrimaryKeyField: "id",
			},
			expectError: true,
		},
		{
			name: "Missing primary key field - invalid",
			req: SchemaRequest{
				Fields: []SchemaFieldRequest{
					{Name: "id", Type: "uint32"},
				},
				PrimaryKeyField: "",
			},
			expectError: true,
		},
		{
			name: "Primary key not among fields - invalid",
			req: SchemaRequest{
				Fields: []SchemaFieldRequest{
					{Name: "id", Type: "uint32"},
				},
				PrimaryKeyField: "other",
			},
			expectError: true,
		},
		{
			name: "Primary key not uint32 - invalid",
			req: SchemaRequest{
				Fields: []SchemaFieldRequest{
					{Name: "id", Type: "string"},
				},
				PrimaryKeyField: "id",
			},
			expectError: true,
		},
		{
			name: "Duplicate field names - invalid",
			req: SchemaRequest{
				Fields: []SchemaFieldRequest{
					{Name: "id", Type: "uint32"},
					{Name: "id", Type: "string"},
				},
				PrimaryKeyField: "id",
			},
			expectError: true,
		},
		{
			name: "Unknown field type - invalid",
			req: SchemaRequest{
				Fields: []SchemaFieldRequest{
					{Name: "id", Type: "float"},
				},
				PrimaryKeyField: "id",
			},
			expectError: true,
		},
		{
			name: "Invalid field name - invalid",
			req: SchemaRequest{
				Fields: []SchemaFieldRequest{
					{Name: "1id", Type: "uint32"},
				},
				PrimaryKeyField: "1id",
			},
			expectError: true,
		},
		{
			name: "Too many fields - invalid",
			req: SchemaRequest{
				Fields:          manyFields(MaxSchemaFields + 1),
				PrimaryKeyField: "f0a",
			},
			expectError: true,
		},
		{
			name: "Exactly max fields - valid",
			req: SchemaRequest{
				Fields:          manyFields(MaxSchemaFields),
				PrimaryKeyField: "f0a",
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchemaRequest(&tt.req)

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

// TestValidateFieldName tests field name validation
func TestValidateFieldName(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		expectError bool
	}{
		{name: "Valid simple name", field: "zip", expectError: false},
		{name: "Valid name with underscore", field: "zip_code", expectError: false},
		{name: "Valid name with numbers", field: "field1", expectError: false},
		{name: "Valid name starting with underscore", field: "_private", expectError: false},
		{name: "Invalid name with hyphen", field: "zip-code", expectError: true},
		{name: "Invalid name with space", field: "zip code", expectError: true},
		{name: "Invalid name with special char", field: "zip!", expectError: true},
		{name: "Invalid name starting with number", field: "1zip", expectError: true},
		{name: "Empty name", field: "", expectError: true},
		{name: "Name too long", field: string(makeLetters(MaxFieldNameLen + 1)), expectError: true},
		{name: "Name at max length", field: string(makeLetters(MaxFieldNameLen)), expectError: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldName(tt.field)

			if tt.expectError && err == nil {
				t.Errorf("Expected error for name '%s' but got nil", tt.field)
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error for name '%s' but got: %v", tt.field, err)
			}
		})
	}
}

// TestValidateBatchSize tests batch size validation
func TestValidateBatchSize(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		expectError bool
	}{
		{name: "Single item batch - valid", size: 1, expectError: false},
		{name: "1000 items - valid", size: 1000, expectError: false},
		{name: "10000 items - valid (at limit)", size: 10000, expectError: false},
		{name: "10001 items - invalid (exceeds limit)", size: 10001, expectError: true},
		{name: "Empty batch - invalid", size: 0, expectError: true},
		{name: "Negative size - invalid", size: -1, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchSize(tt.size)

			if tt.expectError && err == nil {
				t.Errorf("Expected error for %d items but got nil", tt.size)
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error for %d items but got: %v", tt.size, err)
			}
		})
	}
}

// Helper functions

func manyFields(n int) []SchemaFieldRequest {
	fields := make([]SchemaFieldRequest, n)
	for i := range fields {
		name := "f" + string(rune('0'+i%10)) + string(rune('a'+i/10%26))
		fields[i] = SchemaFieldRequest{Name: name, Type: "uint32"}
	}
	return fields
}

func makeLetters(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}
