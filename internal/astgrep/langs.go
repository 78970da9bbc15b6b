package astgrep

import (
	"fmt"
	"sort"
	"strings"
)

// supportedLanguages is the fixed set of languages a rule document may declare.
// It mirrors the languages the bundled ast-grep release is built with; anything
// else would fail inside the binary with a far less helpful message.
var supportedLanguages = map[string]bool{
	"javascript": true,
	"typescript": true,
	"rust":       true,
	"python":     true,
	"java":       true,
	"go":         true,
	"cpp":        true,
	"c++":        true,
	"c":          true,
}

// languageExtensions maps a language to the scratch-file extension used when
// find_scope materializes inline code for the binary.
var languageExtensions = map[string]string{
	"javascript": "js",
	"typescript": "ts",
	"rust":       "rs",
	"python":     "py",
	"java":       "java",
	"go":         "go",
	"cpp":        "cpp",
	"c++":        "cpp",
	"c":          "c",
}

// SupportedLanguages returns the allow-list in stable sorted order, for error
// messages and documentation.
func SupportedLanguages() []string {
	langs := make([]string, 0, len(supportedLanguages))
	for lang := range supportedLanguages {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// IsSupportedLanguage reports whether lang is in the fixed allow-list.
func IsSupportedLanguage(lang string) bool {
	return supportedLanguages[strings.ToLower(lang)]
}

// ExtensionForLanguage returns the scratch-file extension for lang, or an
// error naming the unsupported value and the allowed set.
func ExtensionForLanguage(lang string) (string, error) {
	ext, ok := languageExtensions[strings.ToLower(lang)]
	if !ok {
		return "", fmt.Errorf("unsupported language %q: supported languages are %s",
			lang, strings.Join(SupportedLanguages(), ", "))
	}
	return ext, nil
}
