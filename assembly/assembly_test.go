package assembly

import (
	"encoding/json"
	"testing"

	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalDataThreeWay(t *testing.T) {
	raw := `{
		".code": [],
		".data": {
			"0": {".code": [], ".data": {}},
			"1": "a1b2c3",
			"2": "file.sol:Other"
		}
	}`
	var a Assembly
	require.NoError(t, json.Unmarshal([]byte(raw), &a))

	require.Equal(t, DataAssembly, a.Data["0"].Kind)
	require.Equal(t, DataHash, a.Data["1"].Kind)
	require.Equal(t, "a1b2c3", a.Data["1"].Hash)
	require.Equal(t, DataPath, a.Data["2"].Kind)
	require.Equal(t, "file.sol:Other", a.Data["2"].Path)
}

func TestKeccak256Stable(t *testing.T) {
	a := Assembly{
		FactoryDependencies: map[string]struct{}{"b.sol:B": {}, "a.sol:A": {}},
	}
	h1, err := a.Keccak256()
	require.NoError(t, err)

	b := Assembly{
		FactoryDependencies: map[string]struct{}{"a.sol:A": {}, "b.sol:B": {}},
	}
	h2, err := b.Keccak256()
	require.NoError(t, err)

	require.Equal(t, h1, h2, "hash must not depend on map iteration order")
}

func TestRuntimeCodeMissing(t *testing.T) {
	a := Assembly{Data: map[string]Data{}}
	_, err := a.RuntimeCode()
	require.Error(t, err)

	a.Data["0"] = HashData("deadbeef")
	_, err = a.RuntimeCode()
	require.Error(t, err)

	runtime := &Assembly{}
	a.Data["0"] = AssemblyData(runtime)
	got, err := a.RuntimeCode()
	require.NoError(t, err)
	require.Same(t, runtime, got)
}

func TestRuntimePathHelpers(t *testing.T) {
	require.Equal(t, "file.sol:A.runtime", RuntimePath("file.sol:A"))
	require.True(t, IsRuntimePath("file.sol:A.runtime"))
	require.Equal(t, "file.sol:A", StripRuntimeSuffix("file.sol:A.runtime"))
}

func TestCodeFieldRoundTrips(t *testing.T) {
	value := "01"
	a := Assembly{Code: []instruction.Instruction{{Name: instruction.PUSH1, Value: &value}}}
	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var out Assembly
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Code, 1)
	require.Equal(t, instruction.PUSH1, out.Code[0].Name)
}
