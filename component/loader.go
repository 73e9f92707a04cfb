package component

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// definitionsFile is the YAML document shape accepted by LoadDefinitions:
//
//	components:
//	  - name: Driver
//	    doc: A loaded kernel extension.
//	    fields:
//	      - name: path
//	        type: string
//	      - name: state
//	        type: enum
//	        values: [loaded, unloading]
type definitionsFile struct {
	Components []definitionYAML `yaml:"components"`
}

type definitionYAML struct {
	Name   string      `yaml:"name"`
	Doc    string      `yaml:"doc,omitempty"`
	Fields []fieldYAML `yaml:"fields"`
}

type fieldYAML struct {
	Name   string   `yaml:"name"`
	Type   string   `yaml:"type"`
	Values []string `yaml:"values,omitempty"`
	Doc    string   `yaml:"doc,omitempty"`
}

// LoadDefinitions reads component definitions from a YAML file. Every
// definition is validated; the first invalid one fails the whole load.
func LoadDefinitions(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("component: open definitions file: %w", err)
	}
	defer f.Close()

	defs, err := ParseDefinitions(f)
	if err != nil {
		return nil, fmt.Errorf("component: %s: %w", path, err)
	}
	return defs, nil
}

// ParseDefinitions reads component definitions from YAML.
func ParseDefinitions(r io.Reader) ([]Definition, error) {
	var file definitionsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}

	defs := make([]Definition, 0, len(file.Components))
	for _, c := range file.Components {
		def := Definition{Name: c.Name, Doc: c.Doc}
		for _, f := range c.Fields {
			def.Fields = append(def.Fields, Field{
				Name:   f.Name,
				Type:   FieldType(f.Type),
				Values: f.Values,
				Doc:    f.Doc,
			})
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
