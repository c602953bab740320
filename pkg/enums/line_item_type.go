package enums

import "fmt"

// LineItemType distinguishes catalog products from services.
type LineItemType string

const (
	LineItemTypeProduct LineItemType = "PRODUCT"
	LineItemTypeService LineItemType = "SERVICE"
)

var validLineItemTypes = []LineItemType{
	LineItemTypeProduct,
	LineItemTypeService,
}

// String implements fmt.Stringer.
func (l LineItemType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LineItemType.
func (l LineItemType) IsValid() bool {
	for _, candidate := range validLineItemTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLineItemType converts raw input into a LineItemType.
func ParseLineItemType(value string) (LineItemType, error) {
	for _, candidate := range validLineItemTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line item type %q", value)
}
