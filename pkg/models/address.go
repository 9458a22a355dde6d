package models

import (
	"strings"

	"github.com/example/rugstore/pkg/errs"
)

type Address struct {
	ID       string `json:"id,omitempty" bson:"id"`
	FullName string `json:"fullName" bson:"full_name"`
	Line1    string `json:"line1" bson:"line1"`
	Line2    string `json:"line2,omitempty" bson:"line2,omitempty"`
	City     string `json:"city" bson:"city"`
	State    string `json:"state,omitempty" bson:"state,omitempty"`
	Pincode  string `json:"pincode" bson:"pincode"`
	Phone    string `json:"phone" bson:"phone"`
}

// Validate checks the fields a shipping address cannot go without.
func (a Address) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"fullName", a.FullName},
		{"line1", a.Line1},
		{"city", a.City},
		{"pincode", a.Pincode},
		{"phone", a.Phone},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errs.Validationf("address.Validate", r.field, "%s is required", r.field)
		}
	}
	return nil
}
