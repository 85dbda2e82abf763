package authorize

import (
	"net/url"
	"sort"
	"strings"
)

// Response modes soportados.
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
)

// Redirect es la respuesta wire-level del engine: un 302 a Location.
type Redirect struct {
	Location string
	Mode     string // query | fragment
}

// buildRedirect arma la Location final: params en query string o en fragment
// según el response_mode. Ordena las keys para que sea determinístico.
func buildRedirect(redirectURI, mode string, params map[string]string) Redirect {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	encoded := b.String()

	loc := redirectURI
	if encoded != "" {
		switch mode {
		case ResponseModeFragment:
			loc += "#" + encoded
		default:
			sep := "?"
			if strings.Contains(redirectURI, "?") {
				sep = "&"
			}
			loc += sep + encoded
		}
	}
	return Redirect{Location: loc, Mode: mode}
}

// responseModeFor deriva el modo por defecto: solo "code" va por query,
// cualquier response_type con tokens va por fragment.
func responseModeFor(explicit string, hasToken, hasIDToken bool) string {
	if explicit == ResponseModeQuery || explicit == ResponseModeFragment {
		return explicit
	}
	if hasToken || hasIDToken {
		return ResponseModeFragment
	}
	return ResponseModeQuery
}
