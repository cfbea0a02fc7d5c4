package instruction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstructionJSONRoundTrip(t *testing.T) {
	val := "0a"
	in := Instruction{Name: PUSH1, Value: &val}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"PUSH1","value":"0a"}`, string(raw))

	var out Instruction
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, in.Name, out.Name)
	require.Equal(t, *in.Value, *out.Value)
}

func TestInstructionJSONNoValue(t *testing.T) {
	in := Instruction{Name: ADD}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"ADD"}`, string(raw))
}
