package isisgo

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// configOverride is the optional <db>.json sidecar shape (spec §6,
// "Environment"): a structured alternative to the flat <db>.ini for
// settings that don't fit key=value lines. Unknown keys are ignored, as
// required by spec.
type configOverride struct {
	SubfieldDelimiter  string `json:"subfield_delimiter,omitempty"`
	BlockSize          int32  `json:"block_size,omitempty"`
	MaxLineWidth       int    `json:"max_line_width,omitempty"`
	InputEncoding      string `json:"input_encoding,omitempty"`
	OutputEncoding     string `json:"output_encoding,omitempty"`
	LeaderXL           *bool  `json:"leader_xl,omitempty"`
	CacheHashAlgorithm int    `json:"cache_hash_algorithm,omitempty"`
}

// LoadConfigOverride merges a <db>.json sidecar onto base, using
// goccy/go-json for decode (the domain-stack JSON library, matching the
// teacher's go.mod). A missing file is not an error; base is returned
// unchanged.
func LoadConfigOverride(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, fmt.Errorf("config: read %s: %w", path, err)
	}
	var ov configOverride
	if err := json.Unmarshal(data, &ov); err != nil {
		return base, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if ov.SubfieldDelimiter != "" {
		base.SubfieldDelimiter = ov.SubfieldDelimiter[0]
	}
	if ov.BlockSize != 0 {
		base.BlockSize = ov.BlockSize
	}
	if ov.MaxLineWidth != 0 {
		base.MaxLineWidth = ov.MaxLineWidth
	}
	if ov.InputEncoding != "" {
		base.InputEncoding = ov.InputEncoding
	}
	if ov.OutputEncoding != "" {
		base.OutputEncoding = ov.OutputEncoding
	}
	if ov.LeaderXL != nil {
		base.LeaderXL = *ov.LeaderXL
	}
	if ov.CacheHashAlgorithm != 0 {
		base.CacheHashAlgorithm = ov.CacheHashAlgorithm
	}
	return base, nil
}

// ExportedRecord is the wire shape produced for the out-of-scope CLI
// JSON exporter (spec §6, "CLI surface"): mfn + active meta fields, and
// per-field arrays of subfield maps, first subfield under key "_".
type ExportedRecord struct {
	MFN    int                 `json:"mfn"`
	Active bool                `json:"active"`
	Fields map[string][]map[string]any `json:"fields"`
}

// ToExported builds the exporter wire shape for rec. This implements
// only the producer side of the documented CLI contract (spec §6); no
// CLI binary ships in this package.
func ToExported(rec *Record) ExportedRecord {
	out := ExportedRecord{MFN: rec.MFN, Active: rec.Status == StatusActive, Fields: map[string][]map[string]any{}}
	for _, tag := range rec.Tags() {
		rf, _ := rec.Repeatable(tag)
		tagKey := fmt.Sprintf("%d", tag)
		occs := make([]map[string]any, 0, len(rf.Elements))
		for _, f := range rf.Elements {
			sf := ParseSubfields(f.Data, f.delimiterOrDefault())
			occ := map[string]any{}
			for _, key := range sf.Order {
				values := sf.Values[key]
				if len(values) == 1 {
					occ[string(key)] = values[0]
				} else {
					occ[string(key)] = values
				}
			}
			if first, ok := sf.Values['*']; ok && len(first) > 0 {
				occ["_"] = first[0]
			}
			occs = append(occs, occ)
		}
		out.Fields[tagKey] = occs
	}
	return out
}

// MarshalExported encodes rec using the domain-stack JSON library.
func MarshalExported(rec *Record) ([]byte, error) {
	return json.Marshal(ToExported(rec))
}
