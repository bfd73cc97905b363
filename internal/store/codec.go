package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"owncheck/internal/model"
)

// DecodeDeclaration parses the JSON form of an ownership declaration as
// stored by backends. The textual OWNERS-style syntax is out of scope; any
// backend that stores declarations in another syntax converts before
// handing bytes to this codec.
func DecodeDeclaration(raw []byte, dir string) (model.Declaration, error) {
	var d model.Declaration
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return model.Declaration{}, fmt.Errorf("decode declaration: %w", err)
	}
	if d.Path == "" {
		d.Path = dir
	}
	for _, imp := range append(append([]model.ImportReference{}, d.Imports...), ownerSetImports(d)...) {
		if imp.Mode != model.ImportAll && imp.Mode != model.ImportOwnerSetPatternsOnly {
			return model.Declaration{}, fmt.Errorf("decode declaration: unknown import mode %q", imp.Mode)
		}
		if imp.Directory == "" {
			return model.Declaration{}, fmt.Errorf("decode declaration: import without directory")
		}
	}
	return d.Normalize(), nil
}

func ownerSetImports(d model.Declaration) []model.ImportReference {
	var out []model.ImportReference
	for _, os := range d.OwnerSets {
		out = append(out, os.Imports...)
	}
	return out
}
