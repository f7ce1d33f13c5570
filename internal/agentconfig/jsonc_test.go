package agentconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardizeKeepsCommentMarkersInStrings(t *testing.T) {
	src := []byte(`{
  // leading note
  "$schema": "https://opencode.ai/config.json", /* inline */
  "path": "a /* not a comment */ b",
  "quote": "say \"//hi\"",
}`)
	var got map[string]string
	require.NoError(t, json.Unmarshal(Standardize(src), &got))
	assert.Equal(t, "https://opencode.ai/config.json", got["$schema"])
	assert.Equal(t, "a /* not a comment */ b", got["path"])
	assert.Equal(t, `say "//hi"`, got["quote"])
}

func TestStandardizeTrailingCommas(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a": [1, 2,], }`, `{"a": [1, 2] }`},
		{"{\"a\": 1, // tail\n}", "{\"a\": 1 \n}"},
		{`{"a": [1, /* x */ ]}`, `{"a": [1   ]}`},
		{`{"s": ",]"}`, `{"s": ",]"}`},
		{"{\"t\": {\"x\": true,\n\t},\n}", "{\"t\": {\"x\": true\n\t}\n}"},
	}
	for _, tc := range cases {
		got := Standardize([]byte(tc.in))
		assert.JSONEq(t, tc.want, string(got), "input %q", tc.in)
	}
}

func TestStandardizeUnterminatedBlockComment(t *testing.T) {
	got := Standardize([]byte(`{"a": 1} /* open`))
	assert.JSONEq(t, `{"a": 1}`, string(got))
}
