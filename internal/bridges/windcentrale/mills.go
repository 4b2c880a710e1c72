package windcentrale

import (
	"fmt"
	"strconv"
	"strings"
)

// Mill is a cooperatively owned wind turbine.
type Mill struct {
	ID   int
	Name string
}

// Mills lists the turbines the hub knows by name.
var Mills = []Mill{
	{ID: 31, Name: "Het Rode Hert"},
	{ID: 141, Name: "De Vier Winden"},
}

// MillByName looks up a turbine by its display name.
func MillByName(name string) (Mill, bool) {
	for _, m := range Mills {
		if m.Name == name {
			return m, true
		}
	}
	return Mill{}, false
}

// MillByID looks up a turbine by id.
func MillByID(id int) (Mill, bool) {
	for _, m := range Mills {
		if m.ID == id {
			return m, true
		}
	}
	return Mill{}, false
}

// Holding is a number of shares in one turbine.
type Holding struct {
	Mill   Mill
	Shares int
}

// ParseHoldings parses a comma separated list of mill:shares pairs. A mill
// is a catalogue name ("Het Rode Hert:4") or a numeric id ("31:4"); ids
// missing from the catalogue are accepted and named after their id.
func ParseHoldings(list string) ([]Holding, error) {
	if strings.TrimSpace(list) == "" {
		return nil, ErrNoMills
	}

	var out []Holding
	for _, item := range strings.Split(list, ",") {
		key, shares, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not mill:shares", ErrBadHolding, item)
		}
		mill, err := lookupMill(strings.TrimSpace(key))
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(shares))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: shares %q", ErrBadHolding, shares)
		}
		out = append(out, Holding{Mill: mill, Shares: n})
	}
	return out, nil
}

func lookupMill(key string) (Mill, error) {
	if id, err := strconv.Atoi(key); err == nil {
		if id <= 0 {
			return Mill{}, fmt.Errorf("%w: id %d", ErrUnknownMill, id)
		}
		if m, ok := MillByID(id); ok {
			return m, nil
		}
		return Mill{ID: id, Name: fmt.Sprintf("mill %d", id)}, nil
	}
	if m, ok := MillByName(key); ok {
		return m, nil
	}
	return Mill{}, fmt.Errorf("%w: %q", ErrUnknownMill, key)
}
