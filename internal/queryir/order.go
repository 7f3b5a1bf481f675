package queryir

import (
	"fmt"
	"strings"
)

// ValidOrders defines the accepted sort directions.
var ValidOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

// ParseOrderItems converts one tag's wire-form ordering list into
// items. Accepted item shapes:
//
//   - "ctime"                                       ascending column
//   - {"ctime": "desc"}                             direction shorthand
//   - {"attributes.energy": {"order": "desc", "cast": "f"}}
//
// Paths that reach into semi-structured storage carry no native type,
// so they require a cast.
func ParseOrderItems(wire any) ([]OrderItem, error) {
	list, ok := asSlice(wire)
	if !ok {
		list = []any{wire}
	}
	items := make([]OrderItem, 0, len(list))
	for i, elem := range list {
		parsed, err := parseOrderItem(elem)
		if err != nil {
			return nil, fmt.Errorf("order item [%d]: %w", i, err)
		}
		items = append(items, parsed...)
	}
	return items, nil
}

func parseOrderItem(item any) ([]OrderItem, error) {
	switch v := item.(type) {
	case string:
		out := OrderItem{Path: v, Order: "asc"}
		return []OrderItem{out}, validateOrderItem(out)
	case map[string]any, map[any]any:
		m, err := toStringMap(v)
		if err != nil {
			return nil, err
		}
		items := make([]OrderItem, 0, len(m))
		for _, path := range sortedKeys(m) {
			parsed, err := parseOrderSpec(path, m[path])
			if err != nil {
				return nil, err
			}
			items = append(items, parsed)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected a path or a mapping, got %T", item)
	}
}

func parseOrderSpec(path string, spec any) (OrderItem, error) {
	item := OrderItem{Path: path, Order: "asc"}
	switch v := spec.(type) {
	case string:
		item.Order = v
	case map[string]any, map[any]any:
		m, err := toStringMap(v)
		if err != nil {
			return OrderItem{}, err
		}
		for key, value := range m {
			s, ok := value.(string)
			if !ok {
				return OrderItem{}, fmt.Errorf("path %q: option %q expects a string, got %T", path, key, value)
			}
			switch key {
			case "order":
				item.Order = s
			case "cast":
				item.Cast = s
			default:
				return OrderItem{}, fmt.Errorf("path %q: unknown ordering option %q", path, key)
			}
		}
	default:
		return OrderItem{}, fmt.Errorf("path %q: expected a direction or a mapping, got %T", path, spec)
	}
	return item, validateOrderItem(item)
}

func validateOrderItem(item OrderItem) error {
	if item.Path == "" {
		return fmt.Errorf("ordering path must not be empty")
	}
	if !ValidOrders[item.Order] {
		return fmt.Errorf("path %q: unknown ordering %q, expected asc or desc", item.Path, item.Order)
	}
	if item.Cast != "" && !ValidProjectionCasts[item.Cast] {
		return fmt.Errorf("path %q: unknown cast %q", item.Path, item.Cast)
	}
	if strings.Contains(item.Path, ".") && item.Cast == "" {
		return fmt.Errorf("ordering by %q requires a cast", item.Path)
	}
	return nil
}

// OrderItemsToWire serializes items. Plain ascending columns stay bare
// strings; everything else uses the explicit mapping form.
func OrderItemsToWire(items []OrderItem) []any {
	out := make([]any, len(items))
	for i, item := range items {
		if item.Order == "asc" && item.Cast == "" {
			out[i] = item.Path
			continue
		}
		spec := map[string]any{"order": item.Order}
		if item.Cast != "" {
			spec["cast"] = item.Cast
		}
		out[i] = map[string]any{item.Path: spec}
	}
	return out
}
