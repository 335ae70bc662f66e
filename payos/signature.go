package payos

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Sign computes the PayOS checksum over data: fields are sorted by key,
// rendered as key=value pairs joined with '&', and HMAC-SHA256'd with
// the checksum key.
func Sign(checksumKey string, data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+canonical(data[k]))
	}

	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the checksum of data.
func Verify(checksumKey string, data map[string]any, signature string) bool {
	want := Sign(checksumKey, data)
	return hmac.Equal([]byte(want), []byte(signature))
}

// canonical renders a field value the way it appears in the signed
// string. Nulls render empty; scalars keep their JSON text; anything
// composite falls back to its JSON encoding.
func canonical(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64, int, int64:
		return fmt.Sprintf("%v", val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
