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

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// commentsKey is a documentation key allowed anywhere in a config document.
const commentsKey = "__comments__"

var errTrailingData = errors.New("unexpected data after top-level value")

// stripJSONComments re-encodes a JSON document without __comments__ keys.
// It walks tokens so object key order survives, which matters for
// regex_patterns.
func stripJSONComments(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out bytes.Buffer

	if err := copyValue(dec, &out); err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}

	return out.Bytes(), nil
}

func copyValue(dec *json.Decoder, out *bytes.Buffer) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	return copyToken(dec, out, tok)
}

func copyToken(dec *json.Decoder, out *bytes.Buffer, tok json.Token) error {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return copyObject(dec, out)
		case '[':
			return copyArray(dec, out)
		default:
			return fmt.Errorf("unexpected delimiter %q", t)
		}
	case json.Number:
		out.WriteString(t.String())

		return nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}

		out.Write(b)

		return nil
	}
}

func copyObject(dec *json.Decoder, out *bytes.Buffer) error {
	out.WriteByte('{')

	first := true

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}

		key, _ := keyTok.(string)

		if key == commentsKey {
			if err := skipValue(dec); err != nil {
				return err
			}

			continue
		}

		if !first {
			out.WriteByte(',')
		}

		first = false

		b, _ := json.Marshal(key)
		out.Write(b)
		out.WriteByte(':')

		if err := copyValue(dec, out); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	out.WriteByte('}')

	return nil
}

func copyArray(dec *json.Decoder, out *bytes.Buffer) error {
	out.WriteByte('[')

	for i := 0; dec.More(); i++ {
		if i > 0 {
			out.WriteByte(',')
		}

		if err := copyValue(dec, out); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	out.WriteByte(']')

	return nil
}

func skipValue(dec *json.Decoder) error {
	var discard json.RawMessage

	return dec.Decode(&discard)
}

// stripYAMLComments removes __comments__ pairs from every mapping in the tree.
func stripYAMLComments(node *yaml.Node) {
	if node.Kind == yaml.MappingNode {
		kept := node.Content[:0]

		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == commentsKey {
				continue
			}

			kept = append(kept, node.Content[i], node.Content[i+1])
		}

		node.Content = kept
	}

	for _, child := range node.Content {
		stripYAMLComments(child)
	}
}
