// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeOrderedObject walks a JSON object member by member, in document order,
// handing each key and its raw value to fn. A JSON null decodes to nothing.
func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object of groups, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected group key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("group %q: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return fmt.Errorf("group %q: %w", key, err)
		}
	}
	_, err = dec.Token()
	return err
}

// encodeOrderedObject writes name/value pairs as a JSON object, keeping order.
func encodeOrderedObject(n int, pair func(i int) (string, any)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, value := pair(i)
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes `{"group": ["url", ...], ...}` preserving group order.
// A repeated key keeps the position of its first occurrence and the value of
// its last.
func (g *LocatorGroups) UnmarshalJSON(data []byte) error {
	out := LocatorGroups{}
	index := make(map[string]int)
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var locators []string
		if err := json.Unmarshal(raw, &locators); err != nil {
			return err
		}
		if i, seen := index[key]; seen {
			out[i].Locators = locators
			return nil
		}
		index[key] = len(out)
		out = append(out, LocatorGroup{Name: key, Locators: locators})
		return nil
	})
	if err != nil {
		return err
	}
	*g = out
	return nil
}

// MarshalJSON encodes the groups back into a JSON object in declared order.
func (g LocatorGroups) MarshalJSON() ([]byte, error) {
	return encodeOrderedObject(len(g), func(i int) (string, any) {
		locators := g[i].Locators
		if locators == nil {
			locators = []string{}
		}
		return g[i].Name, locators
	})
}

// UnmarshalJSON decodes `{"group": [{"text": [...], "voice": "..."}], ...}`
// preserving group order.
func (g *VoiceGroups) UnmarshalJSON(data []byte) error {
	out := VoiceGroups{}
	index := make(map[string]int)
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var voices []VoiceSelection
		if err := json.Unmarshal(raw, &voices); err != nil {
			return err
		}
		if i, seen := index[key]; seen {
			out[i].Voices = voices
			return nil
		}
		index[key] = len(out)
		out = append(out, VoiceGroup{Name: key, Voices: voices})
		return nil
	})
	if err != nil {
		return err
	}
	*g = out
	return nil
}

// MarshalJSON encodes the groups back into a JSON object in declared order.
func (g VoiceGroups) MarshalJSON() ([]byte, error) {
	return encodeOrderedObject(len(g), func(i int) (string, any) {
		voices := g[i].Voices
		if voices == nil {
			voices = []VoiceSelection{}
		}
		return g[i].Name, voices
	})
}
