// Package catalog supplies the field definitions available to a flow.
package catalog

import (
	"context"
	"fmt"
)

// Attribute describes one structural sub-field of a compound field type.
type Attribute struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Type string `json:"Type"`
}

// Field is a single entry of a flow's field catalog. JSON tags follow the
// board API wire format so tool results stay readable by the model.
type Field struct {
	ID              string      `json:"Id"`
	Name            string      `json:"Name"`
	Type            string      `json:"Type"`
	Required        bool        `json:"Required"`
	Model           string      `json:"Model,omitempty"`
	IsSystemField   bool        `json:"IsSystemField,omitempty"`
	IsInternal      bool        `json:"IsInternal,omitempty"`
	IsComputedField bool        `json:"IsComputedField,omitempty"`
	IsSubitemField  bool        `json:"IsSubitemField,omitempty"`
	SourceFlowID    string      `json:"SourceFlowId,omitempty"`
	Attributes      []Attribute `json:"Attributes,omitempty"`
}

// Provider resolves the field catalog for a flow identifier.
type Provider interface {
	Fields(ctx context.Context, flowID string) ([]Field, error)
}

// StaticProvider serves catalogs registered in memory.
type StaticProvider struct {
	flows map[string][]Field
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{flows: map[string][]Field{}}
}

// Register associates a catalog with a flow identifier, replacing any
// previous registration.
func (p *StaticProvider) Register(flowID string, fields []Field) {
	p.flows[flowID] = fields
}

func (p *StaticProvider) Fields(_ context.Context, flowID string) ([]Field, error) {
	fields, ok := p.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("unknown flow %q", flowID)
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out, nil
}

var _ Provider = (*StaticProvider)(nil)

// RequiredIDs returns the ids of all required fields in catalog order.
func RequiredIDs(fields []Field) []string {
	var ids []string
	for _, f := range fields {
		if f.Required {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// FieldByID finds a field by its id. The second return reports presence.
func FieldByID(fields []Field, id string) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}
