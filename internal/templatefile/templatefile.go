// Package templatefile loads a base format string and its initial global
// slot values from a YAML file.
package templatefile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the decoded shape of a template definition file:
//
//	base_format: "[<TIME>][<LEVEL>] <MSG>"
//	globals:
//	  service: billing-api
//	  region: ap-southeast-1
type Definition struct {
	BaseFormat string            `yaml:"base_format"`
	Globals    map[string]string `yaml:"globals"`
}

// Load reads and decodes path. A missing file is not an error — callers fall
// back to a built-in default format — but a present, malformed file is.
func Load(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("templatefile: open %q: %w", path, err)
	}
	defer f.Close()

	var def Definition
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("templatefile: decode %q: %w", path, err)
	}
	return &def, nil
}
