/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// PatternSpec is one named, uncompiled pattern from the config.
type PatternSpec struct {
	Key     string `json:"key" yaml:"key"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

// PatternSpecs keeps patterns in declaration order. It decodes either from an
// object ({"rssi": "RSSI:(-?\\d+)"}) or from a list of {key, pattern}.
type PatternSpecs []PatternSpec

func (p *PatternSpecs) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)

	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*p = nil
		return nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		var list []PatternSpec
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}

		*p = list

		return p.checkKeys()
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected object or list", errInvalidPatterns)
	}

	specs := PatternSpecs{}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}

		key, _ := keyTok.(string)

		var pattern string
		if err := dec.Decode(&pattern); err != nil {
			return fmt.Errorf("%w: pattern %q: %w", errInvalidPatterns, key, err)
		}

		specs = append(specs, PatternSpec{Key: key, Pattern: pattern})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = specs

	return p.checkKeys()
}

func (p *PatternSpecs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []PatternSpec
		if err := node.Decode(&list); err != nil {
			return err
		}

		*p = list
	case yaml.MappingNode:
		specs := make(PatternSpecs, 0, len(node.Content)/2)

		for i := 0; i+1 < len(node.Content); i += 2 {
			specs = append(specs, PatternSpec{
				Key:     node.Content[i].Value,
				Pattern: node.Content[i+1].Value,
			})
		}

		*p = specs
	default:
		return fmt.Errorf("%w: expected mapping or sequence", errInvalidPatterns)
	}

	return p.checkKeys()
}

func (p PatternSpecs) checkKeys() error {
	seen := make(map[string]struct{}, len(p))

	for _, spec := range p {
		if spec.Key == "" {
			return fmt.Errorf("%w: empty pattern key", errInvalidPatterns)
		}

		if _, dup := seen[spec.Key]; dup {
			return fmt.Errorf("%w: duplicate pattern key %q", errInvalidPatterns, spec.Key)
		}

		seen[spec.Key] = struct{}{}
	}

	return nil
}
