// Package assembly models the parsed JSON form of one EVM legacy-assembly
// code region (spec.md §3 "Assembly", §6 external interfaces): auxdata,
// instruction list, `.data` map, factory-dependency set and full path.
package assembly

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DataKind discriminates the Data sum (spec.md §3 "Data entry":
// Assembly(inline assembly) | Hash(hex literal) | Path(full contract
// path)).
type DataKind uint8

const (
	DataAssembly DataKind = iota
	DataHash
	DataPath
)

// Data is one entry of an Assembly's `.data` map.
//
// Lifecycle (spec.md §3): on parse, entries are Assembly or Hash; the
// dependency resolver (C4) replaces each Assembly whose content-hash is
// known with Path.
type Data struct {
	Kind     DataKind
	Assembly *Assembly // non-nil iff Kind == DataAssembly
	Hash     string    // non-empty iff Kind == DataHash
	Path     string    // non-empty iff Kind == DataPath
}

// AssemblyData wraps an inline Assembly as a Data entry.
func AssemblyData(a *Assembly) Data { return Data{Kind: DataAssembly, Assembly: a} }

// HashData wraps a preserved hex literal as a Data entry.
func HashData(hash string) Data { return Data{Kind: DataHash, Hash: hash} }

// PathData wraps a resolved contract path as a Data entry.
func PathData(path string) Data { return Data{Kind: DataPath, Path: path} }

// looksLikeHash reports whether s is plausibly a hex literal rather than a
// contract path: the wire format (spec.md §6 "Data entry") disambiguates
// a bare string between Hash and Path by checking whether it parses as
// hex, since contract paths always contain a `:` separator
// ("file:Contract") while hex literals never do.
func looksLikeHash(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// UnmarshalJSON implements the three-way wire disambiguation of spec.md
// §6: a nested Assembly object, a hex string (Hash), or an already
// resolved path (Path).
func (d *Data) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty data entry")
	}
	if trimmed[0] == '{' {
		var a Assembly
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Errorf("parsing inline assembly data entry: %w", err)
		}
		*d = AssemblyData(&a)
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("parsing string data entry: %w", err)
	}
	if looksLikeHash(s) {
		*d = HashData(s)
	} else {
		*d = PathData(s)
	}
	return nil
}

// MarshalJSON implements the wire format of spec.md §6.
func (d Data) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DataAssembly:
		return json.Marshal(d.Assembly)
	case DataHash:
		return json.Marshal(d.Hash)
	case DataPath:
		return json.Marshal(d.Path)
	default:
		return nil, fmt.Errorf("unknown data kind %d", d.Kind)
	}
}
