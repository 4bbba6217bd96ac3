package enums

import "fmt"

// CardStatus tracks whether a card secret has been sold.
type CardStatus string

const (
	CardStatusUnsold CardStatus = "unsold"
	CardStatusSold   CardStatus = "sold"
)

var validCardStatuses = []CardStatus{
	CardStatusUnsold,
	CardStatusSold,
}

// String implements fmt.Stringer.
func (c CardStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CardStatus.
func (c CardStatus) IsValid() bool {
	for _, candidate := range validCardStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCardStatus converts raw input into a CardStatus.
func ParseCardStatus(value string) (CardStatus, error) {
	for _, candidate := range validCardStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid card status %q", value)
}
