package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Category distinguishes numeral nodes from symbol (letter) nodes.
type Category int

const (
	Numeral Category = iota
	Symbol
)

func (c Category) String() string {
	switch c {
	case Numeral:
		return "num"
	case Symbol:
		return "char"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Label is the semantic identity of a node. Two labels are the same node
// identity iff they compare equal with ==.
type Label struct {
	Category Category `json:"type"`
	Text     string   `json:"label"`
}

// Num returns a numeral label.
func Num(n int) Label {
	return Label{Category: Numeral, Text: strconv.Itoa(n)}
}

// Sym returns a symbol label.
func Sym(s string) Label {
	return Label{Category: Symbol, Text: s}
}

// ParseLabel treats anything that parses as an integer as a numeral.
func ParseLabel(s string) (Label, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Label{}, fmt.Errorf("empty label")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Num(n), nil
	}
	return Sym(s), nil
}

func (l Label) String() string {
	return l.Text
}

// Ordinal returns the integer value of a numeral label.
func (l Label) Ordinal() (int, bool) {
	if l.Category != Numeral {
		return 0, false
	}
	n, err := strconv.Atoi(l.Text)
	return n, err == nil
}
