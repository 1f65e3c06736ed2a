package keys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/pkg/keys"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		code     string
		opts     []keys.KeyOpt
		expected keys.Key
	}{
		"basic key creation": {
			code:     "ctrl+c",
			expected: keys.Key{Code: "ctrl+c"},
		},
		"key with alias": {
			code:     "ctrl+c",
			opts:     []keys.KeyOpt{keys.WithAlias("⌃c")},
			expected: keys.Key{Code: "ctrl+c", Alias: "⌃c"},
		},
		"hidden key": {
			code:     "esc",
			opts:     []keys.KeyOpt{keys.Hidden()},
			expected: keys.Key{Code: "esc", Hidden: true},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, keys.New(tc.code, tc.opts...))
		})
	}
}

func TestKeyBind_String(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		kb   keys.KeyBind
		want string
	}{
		"single key": {
			kb:   keys.NewBind("quit", keys.New("q")),
			want: "q",
		},
		"alias and hidden": {
			kb: keys.NewBind("quit",
				keys.New("q"),
				keys.New("ctrl+c", keys.WithAlias("⌃c")),
				keys.New("esc", keys.Hidden()),
			),
			want: "q/⌃c",
		},
		"all hidden": {
			kb:   keys.NewBind("quit", keys.New("esc", keys.Hidden())),
			want: "",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.kb.String())
		})
	}
}

func TestKeyBind_Match(t *testing.T) {
	t.Parallel()

	kb := keys.NewBind("quit", keys.New("q"), keys.New("esc", keys.Hidden()))

	assert.True(t, kb.Match("q"))
	assert.True(t, kb.Match("esc"))
	assert.False(t, kb.Match("r"))
}

func TestHelp(t *testing.T) {
	t.Parallel()

	quit := keys.NewBind("quit", keys.New("q"), keys.New("ctrl+c", keys.Hidden()))
	refresh := keys.NewBind("refresh", keys.New("r"))
	hidden := keys.NewBind("secret", keys.New("x", keys.Hidden()))

	tcs := map[string]struct {
		want  string
		width int
	}{
		"no limit": {
			width: 0,
			want:  "q quit • r refresh",
		},
		"fits": {
			width: 40,
			want:  "q quit • r refresh",
		},
		"truncated": {
			width: 8,
			want:  "q quit …",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, keys.Help(tc.width, quit, hidden, refresh))
		})
	}
}

func TestValidateBinds(t *testing.T) {
	t.Parallel()

	quit := keys.NewBind("quit", keys.New("q"))
	refresh := keys.NewBind("refresh", keys.New("r"))

	require.NoError(t, keys.ValidateBinds(quit, refresh))

	err := keys.ValidateBinds(quit, refresh, keys.NewBind("query", keys.New("q")))
	require.ErrorIs(t, err, keys.ErrDuplicateKey)
	assert.ErrorContains(t, err, `"q" is bound to "quit" and "query"`)
}
