// Package host maps language names to evaluator implementations.
package host

import (
	"fmt"
	"io"
	"strings"

	"github.com/itsmostafa/goprobe/internal/evaluator"
	"github.com/itsmostafa/goprobe/internal/evaluator/jseval"
	"github.com/itsmostafa/goprobe/internal/evaluator/stareval"
	"github.com/itsmostafa/goprobe/internal/evaluator/tengoeval"
)

// Language represents a supported host language
type Language string

const (
	// LanguageJavaScript runs sessions on the goja runtime
	LanguageJavaScript Language = "javascript"
	// LanguageStarlark runs sessions on go.starlark.net
	LanguageStarlark Language = "starlark"
	// LanguageTengo runs sessions on the Tengo VM
	LanguageTengo Language = "tengo"
)

// Options configures evaluator construction.
type Options struct {
	// Stdout receives output printed by user code
	Stdout io.Writer
}

// ValidateLanguage checks if the given language name is valid and returns
// its canonical form. Names are case-insensitive and accept short aliases.
func ValidateLanguage(name string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "js", "javascript":
		return LanguageJavaScript, nil
	case "star", "starlark":
		return LanguageStarlark, nil
	case "tengo":
		return LanguageTengo, nil
	default:
		return "", fmt.Errorf("unknown language: %q (valid options: javascript, starlark, tengo)", name)
	}
}

// New creates an Evaluator for the named language.
func New(name string, opts Options) (evaluator.Evaluator, error) {
	lang, err := ValidateLanguage(name)
	if err != nil {
		return nil, err
	}

	switch lang {
	case LanguageStarlark:
		return stareval.New(opts.Stdout), nil
	case LanguageTengo:
		return tengoeval.New(opts.Stdout), nil
	default:
		config := jseval.DefaultConfig()
		if opts.Stdout != nil {
			config.Stdout = opts.Stdout
		}
		ev, err := jseval.New(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create javascript evaluator: %w", err)
		}
		return ev, nil
	}
}
