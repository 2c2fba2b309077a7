package util

import (
	"encoding/json"
	"strings"
)

// DecodeLLMJSON strips markdown fences and surrounding chatter from a model
// reply and decodes the first JSON object it finds into v.
func DecodeLLMJSON(raw string, v any) error {
	s := StripCodeFences(raw)
	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexByte(s, '}'); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return json.Unmarshal([]byte(s), v)
}
