package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Option is one entry of an enumerated remote list, e.g. a class of the
// roster. Fields other than the id and name are kept in Attributes.
type Option struct {
	ID         string
	Name       string
	Attributes map[string]any
}

// UnmarshalJSON accepts objects carrying "id" and either "name" or the
// roster's "nama". Numeric ids are rendered in decimal.
func (o *Option) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, ok := raw["id"]
	if !ok {
		return fmt.Errorf("option without id: %s", data)
	}
	o.ID = scalarString(id)

	switch {
	case raw["name"] != nil:
		o.Name = scalarString(raw["name"])
	case raw["nama"] != nil:
		o.Name = scalarString(raw["nama"])
	default:
		o.Name = o.ID
	}

	o.Attributes = make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "id" || k == "name" || k == "nama" {
			continue
		}
		o.Attributes[k] = v
	}
	return nil
}

// Attr returns an attribute rendered as a string, or "" when absent.
func (o Option) Attr(key string) string {
	v, ok := o.Attributes[key]
	if !ok || v == nil {
		return ""
	}
	return scalarString(v)
}

// Label is the display text of the option. Roster classes render as
// "X IPA 1 (IPA - Tingkat 10)".
func (o Option) Label() string {
	jurusan, tingkat := o.Attr("jurusan"), o.Attr("tingkat")
	switch {
	case jurusan != "" && tingkat != "":
		return fmt.Sprintf("%s (%s - Tingkat %s)", o.Name, jurusan, tingkat)
	case jurusan != "":
		return fmt.Sprintf("%s (%s)", o.Name, jurusan)
	case tingkat != "":
		return fmt.Sprintf("%s (Tingkat %s)", o.Name, tingkat)
	}
	return o.Name
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
