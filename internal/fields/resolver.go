// Package fields enriches catalog entries with lookup metadata and resolves
// candidate values for selectable fields.
package fields

import (
	"fmt"

	"github.com/boardpilot/itemagent/internal/catalog"
)

// widgetToDBType maps widget types to the normalized database field type.
var widgetToDBType = map[string]string{
	"Text":        "String",
	"Textarea":    "String",
	"Number":      "Number",
	"StarRating":  "Number",
	"Slider":      "Number",
	"Date":        "Date",
	"DateTime":    "DateTime",
	"Currency":    "Currency",
	"User":        "User",
	"Reference":   "Reference",
	"Select":      "String",
	"GeoLocation": "Geolocation",
	"Boolean":     "Boolean",
	"Attachment":  "JSONList",
	"Image":       "JSON",
	"Signature":   "JSON",
	"RLookup":     "JSON",
	"Multiselect": "StringList",
	"MultiUser":   "UserGroupList",
	"Checklist":   "CheckList",
	"Checkbox":    "StringList",
}

// listValueWidgets are widget types whose values come from an enumerated list.
var listValueWidgets = map[string]bool{
	"Select":      true,
	"Multiselect": true,
	"User":        true,
	"MultiUser":   true,
	"Reference":   true,
}

// listValueFieldIDs are system fields that always draw from a value list
// regardless of widget type.
var listValueFieldIDs = map[string]bool{
	"_status_name":   true,
	"_priority_name": true,
	"_state_name":    true,
	"_category":      true,
}

// Detail is the enriched metadata record for one field, or an error record
// when the field could not be resolved.
type Detail struct {
	ID             string              `json:"Id,omitempty"`
	Name           string              `json:"Name,omitempty"`
	Type           string              `json:"Type,omitempty"`
	Required       bool                `json:"Required,omitempty"`
	WidgetType     string              `json:"widget_type,omitempty"`
	DBType         string              `json:"db_type,omitempty"`
	UsesListValues bool                `json:"is_use_list_values,omitempty"`
	Attributes     []catalog.Attribute `json:"attributes,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// DBType normalizes a widget type to its database field type. Unknown widget
// types fall back to String.
func DBType(widgetType string) string {
	if t, ok := widgetToDBType[widgetType]; ok {
		return t
	}
	return "String"
}

// UsesValueList reports whether a field draws its values from an enumerated
// list and should be queried through the value lookup.
func UsesValueList(fieldID, widgetType string) bool {
	return listValueWidgets[widgetType] || listValueFieldIDs[fieldID]
}

// FieldAttributes returns the structural attributes of a field. Currency and
// User widgets have fixed attribute sets, other fields keep whatever the
// catalog declares.
func FieldAttributes(f catalog.Field, widgetType string) []catalog.Attribute {
	switch widgetType {
	case "Currency":
		return []catalog.Attribute{
			{ID: "Unit", Name: "Unit", Type: "CurrencyUnit"},
			{ID: "Value", Name: "Value", Type: "Number"},
		}
	case "User":
		return []catalog.Attribute{
			{ID: "Name", Name: "Name", Type: "Text"},
			{ID: "Email", Name: "Email address", Type: "Text"},
			{ID: "Manager", Name: "Manager", Type: "User"},
			{ID: "Status", Name: "Status", Type: "Text"},
			{ID: "Designation", Name: "Job Title", Type: "Text"},
		}
	default:
		return f.Attributes
	}
}

// Resolve enriches a single catalog field identified by id. Missing ids
// produce an error record rather than a Go error so tool output keeps one
// entry per requested id.
func Resolve(fields []catalog.Field, id string) Detail {
	f, ok := catalog.FieldByID(fields, id)
	if !ok {
		return Detail{Error: fmt.Sprintf("Field ID %q not found in the provided field list.", id)}
	}

	// The catalog Type column carries the widget type, the Type of the
	// detail record carries the normalized database type.
	widget := f.Type
	return Detail{
		ID:             f.ID,
		Name:           f.Name,
		Type:           DBType(widget),
		Required:       f.Required,
		WidgetType:     widget,
		DBType:         DBType(widget),
		UsesListValues: UsesValueList(f.ID, widget),
		Attributes:     FieldAttributes(f, widget),
	}
}

// Details resolves a batch of field ids, preserving input order. The result
// always has the same length as ids.
func Details(fields []catalog.Field, ids []string) []Detail {
	if len(ids) == 0 {
		return []Detail{{Error: "No field processed"}}
	}
	out := make([]Detail, 0, len(ids))
	for _, id := range ids {
		out = append(out, Resolve(fields, id))
	}
	return out
}
