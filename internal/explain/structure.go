package explain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	definitionPattern  = regexp.MustCompile(`\b(def|function|int|void)\s+\w+\s*\(`)
	namedFuncPattern   = regexp.MustCompile(`(def|int|void|function)\s+(\w+)\s*\(`)
	keywordNamePattern = regexp.MustCompile(`\b(def|function|int|void|class)\s+(\w+)`)
)

var algorithmKeywords = []string{"sort", "search", "fibonacci", "graph", "tree", "hash", "stack", "queue"}

// feature is one entry of the structural feature checklist.
type feature struct {
	name    string
	present func(code string) bool
}

var features = []feature{
	{"function definition", func(c string) bool { return definitionPattern.MatchString(c) }},
	{"conditional logic", func(c string) bool { return has(c, "if ") || has(c, "if(") }},
	{"loop construct", func(c string) bool { return has(c, "for ") || has(c, "while ") }},
	{"return statement", func(c string) bool { return has(c, "return ") }},
	{"class definition", func(c string) bool { return has(c, "class ") }},
	{"pointer usage", func(c string) bool { return has(c, "*") && (has(c, "int") || has(c, "char")) }},
	{"array/indexing", func(c string) bool { return has(c, "[") && has(c, "]") }},
}

// analyzeStructure lists the structural features present in code.
func analyzeStructure(code string) string {
	var found []string
	for _, f := range features {
		if f.present(code) {
			found = append(found, f.name)
		}
	}
	if len(found) == 0 {
		return "basic structure"
	}
	return strings.Join(found, ", ")
}

// describeStructure summarizes the first defined function, recursion, loops
// and the number of conditional branches. Empty when nothing is found.
func describeStructure(code string) string {
	var desc []string

	if m := namedFuncPattern.FindStringSubmatch(code); m != nil {
		name := m[2]
		desc = append(desc, fmt.Sprintf("defines function '%s'", name))
		if strings.Contains(strings.Replace(code, m[0], "", 1), name) {
			desc = append(desc, "uses recursive calls")
		}
	}
	if has(code, "for ") || has(code, "while ") {
		desc = append(desc, "contains iterative loops")
	}
	if n := strings.Count(code, "if "); n > 0 {
		suffix := ""
		if n > 1 {
			suffix = "es"
		}
		desc = append(desc, fmt.Sprintf("has %d conditional branch%s", n, suffix))
	}

	if len(desc) == 0 {
		return ""
	}
	return "The code " + strings.Join(desc, ", ") + "."
}

// patternRule contributes a pattern name when its predicate holds.
type patternRule struct {
	name    string
	present func(code, lowered, language string) bool
}

var patternRules = []patternRule{
	// algorithms
	{"Fibonacci sequence calculation", func(_, l, _ string) bool { return has(l, "fibonacci") || has(l, "fib") }},
	{"sorting algorithm", func(_, l, _ string) bool { return has(l, "sort") }},
	{"search algorithm", func(_, l, _ string) bool { return has(l, "search") || has(l, "find") }},
	{"graph data structure", func(_, l, _ string) bool { return has(l, "graph") || has(l, "node") }},
	// design
	{"object-oriented design", func(c, _, lang string) bool { return has(c, "class ") && (lang == "python" || lang == "c++") }},
	{"generic programming", func(c, _, _ string) bool { return has(c, "template") }},
	{"pointer manipulation", func(c, _, lang string) bool { return has(c, "*") && (lang == "c" || lang == "c++") }},
	// control flow
	{"early return pattern", func(c, _, _ string) bool { return has(c, "return ") && strings.Count(c, "return") > 1 }},
	{"conditional branching", func(c, _, _ string) bool { return has(c, "if ") && has(c, "else") }},
}

// identifyPatterns names the algorithm, design and control-flow patterns in code.
func identifyPatterns(code, language string) string {
	lowered := strings.ToLower(code)
	var found []string
	for _, p := range patternRules {
		if p.present(code, lowered, language) {
			found = append(found, p.name)
		}
	}
	if len(found) == 0 {
		return "Standard implementation pattern"
	}
	return "Identified patterns: " + strings.Join(found, ", ")
}

// extractKeywords returns defined names followed by the algorithm keywords
// that occur in code, space separated.
func extractKeywords(code string) string {
	var keywords []string
	for _, m := range keywordNamePattern.FindAllStringSubmatch(code, -1) {
		keywords = append(keywords, m[2])
	}
	lowered := strings.ToLower(code)
	for _, kw := range algorithmKeywords {
		if strings.Contains(lowered, kw) {
			keywords = append(keywords, kw)
		}
	}
	return strings.Join(keywords, " ")
}
