package model

// FieldDetailsArgs is the argument payload for the field detail tool.
type FieldDetailsArgs struct {
	FieldIDs []string `json:"field_ids"`
}

// FieldValuesArgs is the argument payload for the field value lookup tool.
type FieldValuesArgs struct {
	FieldID      string `json:"field_id"`
	SearchString string `json:"search_string,omitempty"`
}
