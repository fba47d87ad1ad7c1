package fetch

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
	"github.com/humbldata/humbldata-go/pkg/params"
)

var routePattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

// translateRoute converts a dotted route like "equity.price.historical" into
// the URL path "/equity/price/historical".
func translateRoute(route string) (string, error) {
	if !routePattern.MatchString(route) {
		return "", errors.Newf(errors.ErrCodeInvalidRoute, "invalid route %q", route)
	}

	return "/" + strings.ReplaceAll(route, ".", "/"), nil
}

// queryString builds the request querystring from the parameter fields. Keys
// are sorted, list values are comma-joined, booleans are lower-cased and
// dates use the ISO form, so the same parameters always produce the same URL.
func queryString(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}

		keys = append(keys, key)
	}

	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}

		sb.WriteString(url.QueryEscape(key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(queryValue(fields[key])))
	}

	return sb.String()
}

func queryValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format("2006-01-02")
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = queryValue(item)
		}

		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// buildURL assembles the full request URL for a route and parameter set.
func (c *Client) buildURL(endpoint string, p params.QueryParams) string {
	qs := queryString(p.Fields())
	if qs == "" {
		return c.baseURL + endpoint
	}

	return c.baseURL + endpoint + "?" + qs
}
