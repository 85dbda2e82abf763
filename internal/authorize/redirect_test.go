package authorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildRedirect_QueryMode(t *testing.T) {
	red := buildRedirect("http://localhost:3000/callback", ResponseModeQuery, map[string]string{
		"code":  "abc",
		"state": "xyz",
	})
	assert.Equal(t, "http://localhost:3000/callback?code=abc&state=xyz", red.Location)
	assert.Equal(t, ResponseModeQuery, red.Mode)
}

func TestBuildRedirect_AppendsToExistingQuery(t *testing.T) {
	red := buildRedirect("http://localhost:3000/callback?foo=1", ResponseModeQuery, map[string]string{
		"code": "abc",
	})
	assert.Equal(t, "http://localhost:3000/callback?foo=1&code=abc", red.Location)
}

func TestBuildRedirect_FragmentMode(t *testing.T) {
	red := buildRedirect("http://localhost:3000/callback", ResponseModeFragment, map[string]string{
		"access_token": "tok",
		"token_type":   "Bearer",
		"state":        "xyz",
	})
	assert.Equal(t, "http://localhost:3000/callback#access_token=tok&state=xyz&token_type=Bearer", red.Location)
}

func TestBuildRedirect_SkipsEmptyValuesAndEscapes(t *testing.T) {
	red := buildRedirect("http://localhost:3000/callback", ResponseModeQuery, map[string]string{
		"code":  "a b/c",
		"state": "",
	})
	assert.Equal(t, "http://localhost:3000/callback?code=a+b%2Fc", red.Location)
}

func TestResponseModeFor(t *testing.T) {
	// Derivado: solo code va por query, tokens por fragment.
	assert.Equal(t, ResponseModeQuery, responseModeFor("", false, false))
	assert.Equal(t, ResponseModeFragment, responseModeFor("", true, false))
	assert.Equal(t, ResponseModeFragment, responseModeFor("", false, true))

	// Explícito gana siempre.
	assert.Equal(t, ResponseModeFragment, responseModeFor(ResponseModeFragment, false, false))
	assert.Equal(t, ResponseModeQuery, responseModeFor(ResponseModeQuery, true, false))

	// Valores desconocidos caen al derivado.
	assert.Equal(t, ResponseModeQuery, responseModeFor("form_post", false, false))
}
