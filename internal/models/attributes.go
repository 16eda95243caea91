// internal/models/attributes.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AttributeValue is one questionnaire answer: a single string or a list.
type AttributeValue struct {
	Scalar string
	List   []string
	IsList bool
}

func Scalar(v string) AttributeValue {
	return AttributeValue{Scalar: v}
}

func List(vs ...string) AttributeValue {
	return AttributeValue{List: vs, IsList: true}
}

// Values returns the non-blank values in answer order.
func (v AttributeValue) Values() []string {
	if !v.IsList {
		if strings.TrimSpace(v.Scalar) == "" {
			return nil
		}
		return []string{v.Scalar}
	}
	out := make([]string, 0, len(v.List))
	for _, s := range v.List {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func (v AttributeValue) IsEmpty() bool {
	return len(v.Values()) == 0
}

// First returns the first value or "".
func (v AttributeValue) First() string {
	vals := v.Values()
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Scalar)
}

// UnmarshalJSON accepts a string, a number or bool (stored as its text), an
// array of those, or null.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = AttributeValue{}
		return nil
	}

	if data[0] == '[' {
		var raw []interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		list := make([]string, 0, len(raw))
		for _, item := range raw {
			if item == nil {
				continue
			}
			s, err := scalarText(item)
			if err != nil {
				return err
			}
			list = append(list, s)
		}
		*v = AttributeValue{List: list, IsList: true}
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s, err := scalarText(raw)
	if err != nil {
		return err
	}
	*v = AttributeValue{Scalar: s}
	return nil
}

func scalarText(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64, bool:
		return fmt.Sprint(t), nil
	default:
		return "", fmt.Errorf("unsupported attribute value type %T", v)
	}
}

// AttributeRecord is a user's questionnaire answers keyed by attribute.
type AttributeRecord map[string]AttributeValue

// Get returns the value for key, or an empty value.
func (r AttributeRecord) Get(key string) AttributeValue {
	if r == nil {
		return AttributeValue{}
	}
	return r[key]
}
