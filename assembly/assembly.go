package assembly

import (
	"encoding/json"
	"strings"

	"github.com/ethereal-ir/evmla-compiler/instruction"
	"github.com/ethereum/go-ethereum/crypto"
)

// RuntimeSuffix is the reserved marker the wire format uses to denote
// runtime-code contract identifiers (spec.md §6: "file:Contract.runtime").
const RuntimeSuffix = ".runtime"

// Assembly is the parsed JSON form of one code region (spec.md §3).
//
// Invariant: after the dependency resolver (C4) has run, for every live
// deploy assembly, Data["0"] is present and is DataAssembly — the
// corresponding runtime assembly.
//
// Ownership: an Assembly owns its Code slice and its inline Data
// assemblies (spec.md §9 "Stack as ownership root" applies the same way
// here: no aliasing between sibling contracts' trees).
type Assembly struct {
	AuxData             *string
	Code                []instruction.Instruction
	Data                map[string]Data
	FullPath             string // empty until the resolver sets it
	FactoryDependencies map[string]struct{}
	ExtraMetadata       json.RawMessage
}

// wireAssembly mirrors the JSON field names of spec.md §6.
type wireAssembly struct {
	AuxData             *string         `json:".auxdata,omitempty"`
	Code                []instruction.Instruction `json:".code,omitempty"`
	Data                map[string]Data `json:".data,omitempty"`
	FullPath            *string         `json:"full_path,omitempty"`
	FactoryDependencies []string        `json:"factory_dependencies,omitempty"`
	ExtraMetadata       json.RawMessage `json:"extra_metadata,omitempty"`
}

// UnmarshalJSON implements the wire format of spec.md §6.
func (a *Assembly) UnmarshalJSON(raw []byte) error {
	var w wireAssembly
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	a.AuxData = w.AuxData
	a.Code = w.Code
	a.Data = w.Data
	if w.FullPath != nil {
		a.FullPath = *w.FullPath
	}
	a.FactoryDependencies = make(map[string]struct{}, len(w.FactoryDependencies))
	for _, dep := range w.FactoryDependencies {
		a.FactoryDependencies[dep] = struct{}{}
	}
	a.ExtraMetadata = w.ExtraMetadata
	return nil
}

// MarshalJSON implements the wire format of spec.md §6. Sets are
// serialized as sorted slices of strings, which both matches the wire
// contract ("omitted when empty") and keeps MarshalJSON deterministic —
// required by §8 property 2 (hash stability): two assemblies with the
// same factory-dependency set must serialize identically regardless of Go
// map iteration order.
func (a Assembly) MarshalJSON() ([]byte, error) {
	w := wireAssembly{
		AuxData:       a.AuxData,
		Code:          a.Code,
		Data:          a.Data,
		ExtraMetadata: a.ExtraMetadata,
	}
	if a.FullPath != "" {
		w.FullPath = &a.FullPath
	}
	if len(a.FactoryDependencies) > 0 {
		deps := make([]string, 0, len(a.FactoryDependencies))
		for dep := range a.FactoryDependencies {
			deps = append(deps, dep)
		}
		sortStrings(deps)
		w.FactoryDependencies = deps
	}
	return json.Marshal(w)
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// SetFullPath records the contract identifier this assembly belongs to.
func (a *Assembly) SetFullPath(path string) { a.FullPath = path }

// Keccak256 returns the content-addressed hash of this assembly: Keccak-256
// over its canonical JSON serialization (spec.md §3 "Content-addressed
// assembly hash", §8 property 2). Two assemblies hash equal iff their JSON
// forms are byte-identical.
func (a Assembly) Keccak256() (string, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	hash := crypto.Keccak256Hash(raw)
	return hash.Hex(), nil
}

// RuntimeCode returns the runtime-code assembly embedded at data index
// "0". Fails with "Runtime code data not found" per spec.md §3/§4.1 when
// the slot is missing or is not an inline assembly.
func (a *Assembly) RuntimeCode() (*Assembly, error) {
	d, ok := a.Data["0"]
	if !ok || d.Kind != DataAssembly {
		return nil, errRuntimeCodeDataNotFound
	}
	return d.Assembly, nil
}

var errRuntimeCodeDataNotFound = dataNotFoundError("Runtime code data not found")

type dataNotFoundError string

func (e dataNotFoundError) Error() string { return string(e) }

// IsRuntimePath reports whether a full contract path denotes runtime code
// (spec.md §6: the ".runtime" suffix is a reserved marker).
func IsRuntimePath(path string) bool {
	return strings.HasSuffix(path, RuntimeSuffix)
}

// StripRuntimeSuffix removes the ".runtime" marker from a full path,
// returning the deploy-code identifier it was derived from.
func StripRuntimeSuffix(path string) string {
	return strings.TrimSuffix(path, RuntimeSuffix)
}

// RuntimePath appends the ".runtime" marker to a deploy-code full path.
func RuntimePath(deployPath string) string {
	return deployPath + RuntimeSuffix
}
