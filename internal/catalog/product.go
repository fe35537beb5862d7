// Package catalog holds the product data model shared by the cache, the aggregator and the remote client.
package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Product is a catalog record as returned by the remote catalog service.
// The remote service names the identifier "_id"; "id" is accepted as well.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rating      Number    `json:"rating"`
	Price       Number    `json:"price"`
	Mrp         Number    `json:"mrp"`
	Stock       Number    `json:"stock"`
	Sales       Number    `json:"sales"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Metadata is the optional attribute bag attached to a product.
type Metadata struct {
	Ram     string `json:"ram,omitempty"`
	Storage string `json:"storage,omitempty"`
	Color   string `json:"color,omitempty"`
	Screen  string `json:"screen,omitempty"`
}

// UnmarshalJSON decodes a product from either wire form of the identifier.
// A malformed field degrades to its zero value so one bad record cannot fail a whole search.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var wire struct {
		plain
		ID          json.RawMessage `json:"id"`
		MongoID     json.RawMessage `json:"_id"`
		Title       json.RawMessage `json:"title"`
		Description json.RawMessage `json:"description"`
		Metadata    json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = Product(wire.plain)
	p.ID = looseString(wire.ID)
	if p.ID == "" {
		p.ID = looseString(wire.MongoID)
	}
	p.Title = looseString(wire.Title)
	p.Description = looseString(wire.Description)
	p.Metadata = looseMetadata(wire.Metadata)
	return nil
}

// looseString returns JSON strings as is and numbers or booleans as their literal text.
// Objects, arrays, null and invalid input yield "".
func looseString(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(data)
	}
}

// looseMetadata decodes an attribute object. Anything but an object means no metadata.
func looseMetadata(data json.RawMessage) *Metadata {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	return &Metadata{
		Ram:     looseString(fields["ram"]),
		Storage: looseString(fields["storage"]),
		Color:   looseString(fields["color"]),
		Screen:  looseString(fields["screen"]),
	}
}

// Number is a numeric product field that never fails to decode.
// JSON numbers and numeric strings keep their value; null, garbage and non-finite values become 0.
type Number float64

// Float64 returns the value as a float64.
func (n Number) Float64() float64 {
	return float64(n)
}

// UnmarshalJSON implements lenient decoding.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
	} else {
		raw = string(data)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*n = Number(v)
	return nil
}
