package params

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
)

const dateLayout = "2006-01-02"

// CacheKey canonicalizes a (provider, route, parameters) triple into a
// deterministic cache key. The provider and route form a mandatory prefix so
// keys can never collide across routes; the remainder is the canonical JSON
// of the cache-relevant fields with sorted keys, normalized scalars and
// sorted order-insensitive lists. The canonical form is never truncated or
// hashed: a collision here would silently return data for the wrong query.
func CacheKey(route string, p QueryParams) (string, error) {
	fields := p.Fields()

	cacheable := append([]string(nil), p.CacheFields()...)
	sort.Strings(cacheable)

	sortable := make(map[string]bool, len(p.OrderInsensitiveFields()))
	for _, name := range p.OrderInsensitiveFields() {
		sortable[name] = true
	}

	var b strings.Builder

	b.WriteString(p.Provider())
	b.WriteByte(':')
	b.WriteString(route)
	b.WriteString(":{")

	first := true

	for _, name := range cacheable {
		value, ok := fields[name]
		if !ok || value == nil {
			continue
		}

		canonical, err := canonicalValue(value, sortable[name])
		if err != nil {
			return "", errors.Wrapf(errors.ErrCodeInvalidParameter, err, "canonicalizing field %q", name)
		}

		if !first {
			b.WriteByte(',')
		}

		first = false

		nameJSON, err := json.Marshal(name)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidParameter, "marshaling field name", err)
		}

		b.Write(nameJSON)
		b.WriteByte(':')
		b.WriteString(canonical)
	}

	b.WriteByte('}')

	return b.String(), nil
}

// canonicalValue renders a single field value in its one canonical textual
// form: dates as YYYY-MM-DD, booleans lowercase, numbers as JSON numbers,
// lists element-wise (sorted first when the field is order-insensitive).
func canonicalValue(value any, orderInsensitive bool) (string, error) {
	switch v := value.(type) {
	case time.Time:
		return fmt.Sprintf("%q", v.Format(dateLayout)), nil
	case []string:
		items := append([]string(nil), v...)
		if orderInsensitive {
			sort.Strings(items)
		}

		parts := make([]string, len(items))

		for i, item := range items {
			enc, err := json.Marshal(item)
			if err != nil {
				return "", err
			}

			parts[i] = string(enc)
		}

		return "[" + strings.Join(parts, ",") + "]", nil
	case []any:
		parts := make([]string, len(v))

		for i, item := range v {
			enc, err := canonicalValue(item, false)
			if err != nil {
				return "", err
			}

			parts[i] = enc
		}

		if orderInsensitive {
			sort.Strings(parts)
		}

		return "[" + strings.Join(parts, ",") + "]", nil
	case string, bool, int, int64, float64:
		enc, err := json.Marshal(v)
		if err != nil {
			return "", err
		}

		return string(enc), nil
	default:
		return "", fmt.Errorf("unsupported field type %T", value)
	}
}
