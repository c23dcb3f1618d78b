package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

type typeModelHeader struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type componentModelHeader struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Variations []struct {
		ID string `json:"id"`
	} `json:"variations"`
}

// DecodeTypeModel parses the identifying fields of a type definition.
func DecodeTypeModel(raw []byte) (TypeModel, error) {
	var header typeModelHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return TypeModel{}, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	id := strings.TrimSpace(header.ID)
	if id == "" {
		return TypeModel{}, fmt.Errorf("%w: type model without id", ErrInvalidModel)
	}
	return TypeModel{
		ID:    id,
		Label: header.Label,
		Raw:   json.RawMessage(append([]byte(nil), raw...)),
	}, nil
}

// DecodeComponentModel parses the identifying fields of a component definition.
func DecodeComponentModel(raw []byte, library LibraryID) (ComponentModel, error) {
	var header componentModelHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return ComponentModel{}, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	id := strings.TrimSpace(header.ID)
	if id == "" {
		return ComponentModel{}, fmt.Errorf("%w: component model without id", ErrInvalidModel)
	}
	name := strings.TrimSpace(header.Name)
	if name == "" {
		name = PascalCase(id)
	}
	variations := make([]string, 0, len(header.Variations))
	for _, v := range header.Variations {
		if v.ID != "" {
			variations = append(variations, v.ID)
		}
	}
	return ComponentModel{
		ID:         id,
		Name:       name,
		Library:    library,
		Variations: variations,
		Raw:        json.RawMessage(append([]byte(nil), raw...)),
	}, nil
}

// DecodeTypeModels splits a JSON array of type definitions.
func DecodeTypeModels(raw []byte) ([]TypeModel, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	out := make([]TypeModel, 0, len(items))
	for _, item := range items {
		model, err := DecodeTypeModel(item)
		if err != nil {
			return nil, err
		}
		out = append(out, model)
	}
	return out, nil
}

// DecodeComponentModels splits a JSON array of component definitions.
func DecodeComponentModels(raw []byte) ([]ComponentModel, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	out := make([]ComponentModel, 0, len(items))
	for _, item := range items {
		model, err := DecodeComponentModel(item, "")
		if err != nil {
			return nil, err
		}
		out = append(out, model)
	}
	return out, nil
}

// PascalCase converts a snake/kebab identifier into PascalCase ("call_to_action" -> "CallToAction").
func PascalCase(id string) string {
	var b strings.Builder
	upper := true
	for _, r := range id {
		if r == '_' || r == '-' || r == ' ' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
