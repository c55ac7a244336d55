package order

import (
	"errors"
	"fmt"
	"regexp"

	domcart "github.com/stitchmall/ordercore/internal/domain/cart"
	domorder "github.com/stitchmall/ordercore/internal/domain/order"
)

var ErrPermissionDenied = errors.New("order: permission denied")

// ValidationError marks malformed input rejected before any domain logic runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func newValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var phonePattern = regexp.MustCompile(`^01[0-9]-?[0-9]{3,4}-?[0-9]{4}$`)

const maxDeliveryNoteLen = 200

func validateShipping(info domorder.ShippingInfo) error {
	if info.RecipientName == "" {
		return newValidation("recipient_name", "recipient name is required")
	}
	if !phonePattern.MatchString(info.RecipientPhone) {
		return newValidation("recipient_phone", "phone number is not valid")
	}
	if info.Address == "" {
		return newValidation("address", "shipping address is required")
	}
	if len([]rune(info.DeliveryNote)) > maxDeliveryNoteLen {
		return newValidation("delivery_note", "delivery note must be 200 characters or fewer")
	}
	return nil
}

func validateLines(lines []domcart.Line) error {
	for _, line := range lines {
		if line.ProductID == "" {
			return newValidation("product_id", "product id is required")
		}
		if line.Quantity < domcart.MinQuantity || line.Quantity > domcart.MaxQuantity {
			return newValidation("quantity", "quantity must be between 1 and 99")
		}
	}
	return nil
}
