package validator

import (
	"reflect"
	"testing"

	"github.com/pauljones0/wa-catalog-uploader/internal/models"
)

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		item    models.Item
		wantErr bool
		fields  []string
	}{
		{
			name:    "Valid Item",
			item:    models.Item{RetailerID: "X1", Name: "Test", Price: models.NewPrice(100)},
			wantErr: false,
		},
		{
			name:    "Missing Retailer ID",
			item:    models.Item{Name: "Test", Price: models.NewPrice(100)},
			wantErr: true,
			fields:  []string{"retailer_id"},
		},
		{
			name:    "Missing Name And ID",
			item:    models.Item{Price: models.NewPrice(100)},
			wantErr: true,
			fields:  []string{"retailer_id", "name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.item)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !reflect.DeepEqual(FailedFields(err), tt.fields) {
				t.Errorf("FailedFields() = %v, want %v", FailedFields(err), tt.fields)
			}
		})
	}
}

func TestValidator_ValidateVar(t *testing.T) {
	v := New()

	if err := v.ValidateVar("https://myshop.com", "omitempty,url"); err != nil {
		t.Errorf("Expected valid URL, got %v", err)
	}
	if err := v.ValidateVar("", "omitempty,url"); err != nil {
		t.Errorf("Expected empty value to pass omitempty, got %v", err)
	}
	if err := v.ValidateVar("myshop", "omitempty,url"); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestFailedFields_NonValidationError(t *testing.T) {
	if fields := FailedFields(nil); fields != nil {
		t.Errorf("Expected nil, got %v", fields)
	}
}
