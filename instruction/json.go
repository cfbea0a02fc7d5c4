package instruction

import "encoding/json"

// wireInstruction mirrors the external instruction object of spec.md §6:
// { "name": <enum string>, "value": <optional string> }.
type wireInstruction struct {
	Name  Name    `json:"name"`
	Value *string `json:"value,omitempty"`
}

// MarshalJSON implements the wire format of spec.md §6.
func (i Instruction) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireInstruction{Name: i.Name, Value: i.Value})
}

// UnmarshalJSON implements the wire format of spec.md §6. It does not
// enforce the value-presence contract (that is the job of New /
// MustValue) so that malformed input can be reported with file/position
// context by the caller instead of a bare decode error.
func (i *Instruction) UnmarshalJSON(data []byte) error {
	var w wireInstruction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	i.Name = w.Name
	i.Value = w.Value
	return nil
}
