// Package keys describes keyboard bindings and renders them as help text.
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

// ErrDuplicateKey is returned when one key triggers more than one binding.
var ErrDuplicateKey = errors.New("duplicate key binding")

const (
	ellipsis  = "…"
	separator = " • "
)

// Key represents a keyboard key with optional alias and visibility settings.
type Key struct {
	// Code is the key code identifier, as reported by the terminal.
	Code string `json:"code" jsonschema:"title=Code"`
	// Alias is an alternative display name for the key.
	Alias string `json:"alias,omitempty" jsonschema:"title=Alias"`
	// Hidden determines if the key should be hidden from help text.
	Hidden bool `json:"hidden,omitempty" jsonschema:"title=Hidden"`
}

type KeyOpt func(k *Key)

func New(code string, opts ...KeyOpt) Key {
	k := &Key{
		Code: code,
	}
	for _, opt := range opts {
		opt(k)
	}

	return *k
}

func WithAlias(alias string) KeyOpt {
	return func(k *Key) {
		k.Alias = alias
	}
}

func Hidden() KeyOpt {
	return func(k *Key) {
		k.Hidden = true
	}
}

func (k Key) String() string {
	if k.Alias != "" {
		return k.Alias
	}

	return k.Code
}

// KeyBind represents a key binding with its description and associated keys.
type KeyBind struct {
	// Description provides a description of what the key binding does.
	Description string `json:"description" jsonschema:"title=Description"`
	// Keys contains the list of keys that trigger this binding.
	Keys []Key `json:"keys" jsonschema:"title=Keys"`
}

func NewBind(description string, keys ...Key) KeyBind {
	return KeyBind{
		Description: description,
		Keys:        keys,
	}
}

// String joins the visible keys of the binding with slashes.
func (kb KeyBind) String() string {
	keys := []string{}
	for _, k := range kb.Keys {
		if k.Hidden {
			continue
		}

		keys = append(keys, k.String())
	}

	return strings.Join(keys, "/")
}

// Match checks if the key matches any of the keys in the binding.
func (kb KeyBind) Match(key string) bool {
	for _, k := range kb.Keys {
		if k.Code == key {
			return true
		}
	}

	return false
}

// Help renders the bindings on one line, truncated to width printable
// columns. Bindings without visible keys are skipped. A width of zero or
// less disables truncation.
func Help(width int, kbs ...KeyBind) string {
	parts := []string{}
	for _, kb := range kbs {
		keys := kb.String()
		if keys == "" {
			continue
		}

		parts = append(parts, keys+" "+kb.Description)
	}

	line := strings.Join(parts, separator)
	if width <= 0 || ansi.PrintableRuneWidth(line) <= width {
		return line
	}

	return truncate.StringWithTail(line, uint(width), ellipsis) //nolint:gosec // Width is positive.
}

// ValidateBinds returns an error for every key code used by more than one
// binding.
func ValidateBinds(kbs ...KeyBind) error {
	var errs []error

	seen := make(map[string]string)
	for _, kb := range kbs {
		for _, key := range kb.Keys {
			if other, ok := seen[key.Code]; ok {
				errs = append(errs, fmt.Errorf("%w: %q is bound to %q and %q", ErrDuplicateKey, key.Code, other, kb.Description))
				continue
			}

			seen[key.Code] = kb.Description
		}
	}

	return errors.Join(errs...)
}
