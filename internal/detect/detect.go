// Package detect classifies source snippets into one of the supported language labels.
package detect

import "strings"

// Supported language labels.
const (
	Python = "python"
	C      = "c"
	CPP    = "c++"
)

var (
	pythonIndicators = []string{
		"def ", "self", "import ", "from ", "None", "async def",
		"print(", "lambda ", "if __name__", "elif ", "else:",
	}

	cppIndicators = []string{
		"std::", "cout", "cin", "namespace", "template<",
		"using namespace", "class ", "public:", "private:", "::",
	}

	cIndicators = []string{
		"printf", "scanf", "#include <stdio.h>", "#include <stdlib.h>",
		"malloc", "free", "calloc", "realloc",
	}
)

// rule is one step of the detection cascade. A rule that does not apply
// returns an empty label and the next rule is tried.
type rule struct {
	name  string
	apply func(code, lowered string) string
}

// rules is evaluated in order; the first non-empty label wins.
// Indicator lists overlap ("class " is in two of them), so the order matters.
var rules = []rule{
	{"python-indicators", func(code, lowered string) string {
		if !containsAny(lowered, pythonIndicators) {
			return ""
		}
		if looksLikeCPPClass(code) || strings.Contains(code, "std::") || strings.Contains(code, "namespace") {
			return CPP
		}
		return Python
	}},
	{"cpp-indicators", func(_, lowered string) string {
		if containsAny(lowered, cppIndicators) {
			return CPP
		}
		return ""
	}},
	{"c-indicators", func(_, lowered string) string {
		if containsAny(lowered, cIndicators) {
			return C
		}
		return ""
	}},
	{"include-directive", func(code, _ string) string {
		if !strings.Contains(code, "#include") {
			return ""
		}
		if (strings.Contains(code, "class ") && strings.Contains(code, "{")) ||
			strings.Contains(code, "namespace") || strings.Contains(code, "template") {
			return CPP
		}
		return C
	}},
	{"braceless-class", func(code, _ string) string {
		if strings.Contains(code, "class ") && strings.Contains(code, ":") && !strings.Contains(code, "{") {
			return Python
		}
		return ""
	}},
}

// Detect returns the language label for code. It never fails; snippets that
// match no rule are reported as C.
func Detect(code string) string {
	lowered := strings.ToLower(code)
	for _, r := range rules {
		if label := r.apply(code, lowered); label != "" {
			return label
		}
	}
	return C
}

// Normalize maps common aliases (fence info strings, file extensions) onto
// the supported labels. Unknown values are returned lower-cased and trimmed.
func Normalize(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	switch l {
	case "py", "python", "python3", "py3":
		return Python
	case "c", "h":
		return C
	case "c++", "cpp", "cc", "cxx", "hpp", "cplusplus":
		return CPP
	}
	return l
}

// looksLikeCPPClass reports a brace-delimited class that uses scope resolution.
func looksLikeCPPClass(code string) bool {
	return strings.Contains(code, "class ") && strings.Contains(code, "{") && strings.Contains(code, "::")
}

// containsAny expects lowered to be lower-cased already; indicators are
// lowered before comparison.
func containsAny(lowered string, indicators []string) bool {
	for _, ind := range indicators {
		if strings.Contains(lowered, strings.ToLower(ind)) {
			return true
		}
	}
	return false
}
