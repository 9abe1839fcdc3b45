package pty

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ls -la", "'ls -la'"},
		{"echo 'hi'", `'echo '\''hi'\'''`},
		{"", "''"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, shellQuote(tc.in))
	}
}

func TestSudoWrapperScript(t *testing.T) {
	script := sudoWrapper(`apt install 'weird pkg'`)

	// Authentication priming with the sentinel prompt.
	assert.Contains(t, script, `sudo -S -k -p "FLOWX_SUDO_PROMPT:" -v`)

	// Background refresher with trap-guaranteed teardown.
	assert.Contains(t, script, "while true; do sudo -n -v 2>/dev/null; sleep 50; done")
	assert.Contains(t, script, "REFRESHER_PID=$!")
	assert.Contains(t, script, `trap "kill $REFRESHER_PID 2>/dev/null" EXIT`)

	// The user command runs quoted under eval and its exit code wins.
	assert.Contains(t, script, `eval 'apt install '\''weird pkg'\'''`)
	assert.Contains(t, script, "exit $CMD_EXIT")
}

func TestFilterSentinel(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"clean chunk untouched", "hello\nworld\n", "hello\nworld\n"},
		{"sentinel line dropped", "FLOWX_SUDO_PROMPT:\nreal output\n", "real output\n"},
		{"mid-line sentinel dropped", "before\nxxFLOWX_SUDO_PROMPT:yy\nafter", "before\nafter"},
		{"only sentinel", "FLOWX_SUDO_PROMPT:", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, filterSentinel(tc.in))
		})
	}
}

func TestSudoWrapperNeverEchoesRawCommandUnquoted(t *testing.T) {
	cmd := `echo "$(dangerous)"`
	script := sudoWrapper(cmd)
	// The raw command text appears only inside the single-quoted eval
	// argument, never bare.
	assert.Equal(t, 1, strings.Count(script, cmd))
	assert.Contains(t, script, shellQuote(cmd))
}
