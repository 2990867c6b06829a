package machine

import (
	"fmt"
	"strings"
)

// Size is the requested cup size of an order.
type Size int

const (
	Small Size = iota
	Medium
	Large
)

// Sizes lists every size in ascending order.
var Sizes = []Size{Small, Medium, Large}

func (s Size) String() string {
	switch s {
	case Small:
		return "Small"
	case Medium:
		return "Medium"
	case Large:
		return "Large"
	default:
		return fmt.Sprintf("Size(%d)", int(s))
	}
}

// Ounces returns the display volume of the size.
func (s Size) Ounces() string {
	switch s {
	case Small:
		return "8 oz."
	case Medium:
		return "12 oz."
	case Large:
		return "16 oz."
	default:
		return "?"
	}
}

// Ptr returns a pointer to a copy of s, for pipeline messages that carry an optional size.
func (s Size) Ptr() *Size {
	return &s
}

// ParseSize parses "small", "medium" or "large" (case-insensitive).
func ParseSize(v string) (Size, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "small", "s":
		return Small, nil
	case "medium", "m":
		return Medium, nil
	case "large", "l":
		return Large, nil
	default:
		return Small, fmt.Errorf("unknown size: %q", v)
	}
}

// Ingredient is what a terminal stage adds to the cup.
type Ingredient string

const (
	Espresso Ingredient = "Espresso"
	Milk     Ingredient = "Milk"
)
