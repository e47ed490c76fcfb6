package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DataType is the declared semantic type of a dynamic attribute.
type DataType string

const (
	DataTypeString    DataType = "string"
	DataTypeInt       DataType = "int"
	DataTypeDecimal   DataType = "decimal"
	DataTypeDate      DataType = "date"
	DataTypeDateTime  DataType = "datetime"
	DataTypeBool      DataType = "bool"
	DataTypeChoice    DataType = "choice"
	DataTypeEntityRef DataType = "entity"
)

func (t DataType) Valid() bool {
	switch t {
	case DataTypeString, DataTypeInt, DataTypeDecimal, DataTypeDate, DataTypeDateTime,
		DataTypeBool, DataTypeChoice, DataTypeEntityRef:
		return true
	default:
		return false
	}
}

// AttributeDefinition declares a dynamic field for a document type.
type AttributeDefinition struct {
	ID            int64    `json:"id"`
	TypeCode      string   `json:"type_code"`
	Code          string   `json:"code"`
	Label         string   `json:"label"`
	DataType      DataType `json:"data_type"`
	Choices       []string `json:"choices,omitempty"`
	EntityKind    string   `json:"entity_kind,omitempty"`
	EntitySubtype string   `json:"entity_subtype,omitempty"`
	Required      bool     `json:"required"`
}

// AttributeValue is a definition paired with the raw stored string. Raw is
// empty when the document has no value for the attribute.
type AttributeValue struct {
	Definition AttributeDefinition `json:"definition"`
	Raw        string              `json:"raw"`
}

func (v AttributeValue) Code() string { return v.Definition.Code }

func (v AttributeValue) HasValue() bool { return strings.TrimSpace(v.Raw) != "" }

// Ref returns the tagged entity reference stored in an entity-typed attribute.
func (v AttributeValue) Ref() (EntityRef, bool) {
	if v.Definition.DataType != DataTypeEntityRef || !v.HasValue() {
		return EntityRef{}, false
	}
	return EntityRef{
		Kind:    v.Definition.EntityKind,
		Subtype: v.Definition.EntitySubtype,
		ID:      strings.TrimSpace(v.Raw),
	}, true
}

// AttributeSet holds a document's attributes keyed by code. Definitions
// without a stored value are present with an empty Raw.
type AttributeSet map[string]AttributeValue

// ValidateRaw checks that raw parses as the definition's data type. Empty
// values are accepted unless the attribute is required.
func (d AttributeDefinition) ValidateRaw(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if d.Required {
			return WrapError(ErrInvalidInput, "attribute "+d.Code, errors.New("value is required"))
		}
		return nil
	}

	var err error
	switch d.DataType {
	case DataTypeString, DataTypeEntityRef:
	case DataTypeInt:
		_, err = strconv.ParseInt(raw, 10, 64)
	case DataTypeDecimal:
		_, err = strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	case DataTypeDate:
		_, err = time.Parse("2006-01-02", raw)
	case DataTypeDateTime:
		if _, err = time.Parse(time.RFC3339, raw); err != nil {
			_, err = time.Parse("2006-01-02T15:04:05", raw)
		}
	case DataTypeBool:
		_, err = strconv.ParseBool(raw)
	case DataTypeChoice:
		err = fmt.Errorf("%q is not one of %v", raw, d.Choices)
		for _, choice := range d.Choices {
			if choice == raw {
				err = nil
				break
			}
		}
	default:
		err = fmt.Errorf("unknown data type %q", d.DataType)
	}
	if err != nil {
		return WrapError(ErrInvalidInput, "attribute "+d.Code, err)
	}
	return nil
}
