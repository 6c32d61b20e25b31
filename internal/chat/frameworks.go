package chat

import "slices"

// Languages are the target language codes offered for generation, in
// display order.
var Languages = []string{"csh", "cpp", "java", "python", "js", "ts"}

var frameworks = map[string][]string{
	"python": {"PyTest", "Unittest"},
	"cpp":    {"GTest", "Boost.Test"},
	"java":   {"JBehave", "JUnit"},
	"csh":    {"NUnit", "xUnit", "MSTest"},
	"js":     {"Jest", "Mocha", "Jasmine"},
	"ts":     {"Jest", "AVA"},
}

// Frameworks returns the test frameworks offered for lang, default first.
// Unknown languages return nil.
func Frameworks(lang string) []string {
	return slices.Clone(frameworks[lang])
}

// DefaultFramework returns the first framework for lang, or "".
func DefaultFramework(lang string) string {
	if fw := frameworks[lang]; len(fw) > 0 {
		return fw[0]
	}
	return ""
}

// SupportsFramework reports whether framework is offered for lang.
func SupportsFramework(lang, framework string) bool {
	return slices.Contains(frameworks[lang], framework)
}
