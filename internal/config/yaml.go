package config

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

// parseYAML reads the YAML form:
//
//	defaults: {backend: workspace, url: ..., workers: 4}
//	split_patterns: {scene: '(?m)^SCENE \d+$'}
//	stages:
//	  - name: paragraph
//	    source: sentence
//	    ...
func parseYAML(data []byte) (File, error) {
	var parsed File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&parsed); err != nil && !errors.Is(err, io.EOF) {
		return File{}, err
	}
	return parsed, nil
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c.File)
}
