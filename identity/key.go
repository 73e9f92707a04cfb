package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Key is a canonical key: a mapping from attribute paths
// ("Component/field") to the concrete values that uniquely name an entity.
// A key with several entries is a composite key; all entries participate in
// identity resolution.
type Key map[string]any

// digest reduces the key to a fixed-size canonical token used for
// memoization. The construction mirrors deterministic content addressing:
// entries are sorted by path, values normalized to a canonical string form,
// and the joined representation hashed.
//
// Format of the canonical string: path1=val1|path2=val2|... (paths sorted).
func (k Key) digest() (string, error) {
	if len(k) == 0 {
		return "", ErrEmptyKey
	}

	paths := make([]string, 0, len(k))
	for p := range k {
		if strings.TrimSpace(p) == "" {
			return "", fmt.Errorf("%w: blank attribute path", ErrBadKey)
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	pairs := make([]string, 0, len(paths))
	for _, p := range paths {
		norm, err := normalizeValue(k[p])
		if err != nil {
			return "", fmt.Errorf("%w: attribute %q: %v", ErrBadKey, p, err)
		}
		pairs = append(pairs, p+"="+norm)
	}

	sum := sha256.Sum256([]byte(strings.Join(pairs, "|")))
	return base64.RawURLEncoding.EncodeToString(sum[:12]), nil
}

// normalizeValue converts a key value to its canonical string representation.
// Identities normalize to their token so that keys may reference other
// entities. Values keep their case: forensic keys such as file paths are
// case-sensitive.
func normalizeValue(val any) (string, error) {
	switch v := val.(type) {
	case nil:
		return "null", nil
	case *Identity:
		if v == nil {
			return "null", nil
		}
		return "id:" + v.Token(), nil
	case string:
		return "s:" + v, nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case int:
		return fmt.Sprintf("%d", v), nil
	case int8:
		return fmt.Sprintf("%d", v), nil
	case int16:
		return fmt.Sprintf("%d", v), nil
	case int32:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	case uint:
		return fmt.Sprintf("%d", v), nil
	case uint8:
		return fmt.Sprintf("%d", v), nil
	case uint16:
		return fmt.Sprintf("%d", v), nil
	case uint32:
		return fmt.Sprintf("%d", v), nil
	case uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return fmt.Sprintf("%.6f", v), nil
	case float64:
		return fmt.Sprintf("%.6f", v), nil
	case time.Time:
		return "t:" + v.UTC().Format(time.RFC3339Nano), nil
	case interface{ Address() uint64 }:
		// Raw kernel objects are identified by the address they were read
		// from, matching keys like {"MemoryObject/base_object": obj}.
		return fmt.Sprintf("obj:0x%x", v.Address()), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("value not canonicalizable: %w", err)
		}
		return "j:" + string(data), nil
	}
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	paths := make([]string, 0, len(k))
	for p := range k {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteByte('{')
	for i, p := range paths {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", p, k[p])
	}
	b.WriteByte('}')
	return b.String()
}
