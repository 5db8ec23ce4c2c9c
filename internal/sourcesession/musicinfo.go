/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sourcesession

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// MusicInfo is the now-playing tag a broadcasting client sends over
// the command channel. Values are plain strings; callers that need
// numeric or structured fields encode them as strings themselves, the
// same way the original form-urlencoded wire format required.
type MusicInfo map[string]string

// encode renders the tag, with offset injected, the way the protocol
// version requires: JSON for v2, form-urlencoded for v1.
func (m MusicInfo) encode(major int, offset int64) []byte {
	if major >= 2 {
		return m.encodeV2(offset)
	}
	return m.encodeV1(offset)
}

func (m MusicInfo) encodeV1(offset int64) []byte {
	values := make(url.Values, len(m)+1)
	for k, v := range m {
		values.Set(k, v)
	}
	values.Set("offset", strconv.FormatInt(offset, 10))
	return []byte(values.Encode())
}

// decodeMusicInfo is the server-side inverse of encode: it parses the
// Music-Info command body the negotiated protocol version produced and
// splits out the injected offset field.
func decodeMusicInfo(major int, body string) (tag map[string]string, offset int64, err error) {
	if major >= 2 {
		var raw map[string]any
		if err := json.Unmarshal([]byte(body), &raw); err != nil {
			return nil, 0, fmt.Errorf("sourcesession: decode music info json: %w", err)
		}
		tag = make(map[string]string, len(raw))
		for k, v := range raw {
			if k == "offset" {
				if f, ok := v.(float64); ok {
					offset = int64(f)
				}
				continue
			}
			if s, ok := v.(string); ok {
				tag[k] = s
			}
		}
		return tag, offset, nil
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, 0, fmt.Errorf("sourcesession: decode music info form: %w", err)
	}
	tag = make(map[string]string, len(values))
	for k := range values {
		if k == "offset" {
			offset, _ = strconv.ParseInt(values.Get(k), 10, 64)
			continue
		}
		tag[k] = values.Get(k)
	}
	return tag, offset, nil
}

func (m MusicInfo) encodeV2(offset int64) []byte {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out["offset"] = offset
	// A tag built from plain strings can't fail to marshal.
	data, _ := json.Marshal(out)
	return data
}
