package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type CartKeyKind string

const (
	CartKeyItem  CartKeyKind = "item"
	CartKeyCombo CartKeyKind = "combo"
)

// CartKey identifies a delivery cart entry: a menu item with selected
// optionals, or a combo with the chosen slot items. The string form
// ("item_3_10_12", "combo_5_7") is used only at the storage and HTTP
// boundary; it is stored on order items so a past order can be replayed.
type CartKey struct {
	Kind   CartKeyKind
	ID     int64
	Extras []int64 // optional ids for items, choice ids for combos
}

func (k CartKey) String() string {
	var b strings.Builder
	b.WriteString(string(k.Kind))
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(k.ID, 10))
	for _, e := range k.Extras {
		b.WriteByte('_')
		b.WriteString(strconv.FormatInt(e, 10))
	}
	return b.String()
}

// ParseCartKey decodes the wire form of a cart key. The grammar is
// <kind>_<id>[_<extra>...] with kind "item" or "combo" and numeric parts.
func ParseCartKey(s string) (CartKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 2 {
		return CartKey{}, fmt.Errorf("malformed cart key %q", s)
	}

	var kind CartKeyKind
	switch parts[0] {
	case string(CartKeyItem):
		kind = CartKeyItem
	case string(CartKeyCombo):
		kind = CartKeyCombo
	default:
		return CartKey{}, fmt.Errorf("unknown cart key kind %q", parts[0])
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return CartKey{}, fmt.Errorf("invalid cart key id %q", parts[1])
	}

	var extras []int64
	for _, p := range parts[2:] {
		e, err := strconv.ParseInt(p, 10, 64)
		if err != nil || e <= 0 {
			return CartKey{}, fmt.Errorf("invalid cart key part %q", p)
		}
		extras = append(extras, e)
	}
	return CartKey{Kind: kind, ID: id, Extras: extras}, nil
}
