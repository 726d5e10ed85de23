package explain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bull/code-explainer/internal/detect"
)

// LineAnnotation explains one physical line of the input.
type LineAnnotation struct {
	LineNumber  int    `json:"line_number"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

var (
	definedNamePattern = regexp.MustCompile(`^\s*(def|int|void)\s+(\w+)`)
	funcDefLine        = regexp.MustCompile(`^\s*(def|int|void|float|double|char|bool)\s+\w+\s*\(`)
	funcDefParts       = regexp.MustCompile(`(def|int|void|float|double|char|bool)\s+(\w+)\s*\(`)
	paramList          = regexp.MustCompile(`\(([^)]*)\)`)
	varDeclLine        = regexp.MustCompile(`^\s*(int|float|double|char|bool|var|let|const)\s+\w+`)
	varDeclParts       = regexp.MustCompile(`(int|float|double|char|bool|var|let|const)?\s*(\w+)\s*[=:]\s*(.+)`)
	callPattern        = regexp.MustCompile(`\w+\s*\([^)]*\)`)
	calleePattern      = regexp.MustCompile(`(\w+)\s*\(`)
)

// line is what a classification rule sees of one non-blank, non-comment line.
type line struct {
	text     string // trimmed
	language string
	defined  map[string]bool
	previous string // trimmed text of the previous non-blank line
}

// lineRule owns a line when match holds. A rule that owns a line but yields
// no fragments hands the line to the generic classification.
type lineRule struct {
	name    string
	match   func(l line) bool
	explain func(l line) []string
}

var lineRules = []lineRule{
	{"include", func(l line) bool { return strings.HasPrefix(l.text, "#include") }, explainInclude},
	{"function-definition", func(l line) bool { return funcDefLine.MatchString(l.text) }, explainFunctionDefinition},
	{"return", isReturn, explainReturn},
	{"if", isIf, explainIf},
	{"variable-declaration", func(l line) bool { return varDeclLine.MatchString(l.text) }, explainDeclaration},
	{"loop", isLoop, explainLoop},
	{"output", func(l line) bool {
		return has(l.text, "printf") || has(l.text, "cout") || has(l.text, "print(")
	}, explainOutput},
	{"recursive-call", func(l line) bool {
		return callPattern.MatchString(l.text) && !has(l.text, "=")
	}, explainCall},
	{"arithmetic", func(l line) bool { return strings.ContainsAny(l.text, "+-*/%") }, explainArithmetic},
}

// annotateLines explains every physical line of code, blank lines included.
func annotateLines(code, language string) []LineAnnotation {
	lines := strings.Split(code, "\n")
	defined := definedNames(lines)

	annotations := make([]LineAnnotation, 0, len(lines))
	previous := ""
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		var explanation string
		switch {
		case trimmed == "":
			explanation = "Empty line (whitespace for readability)"
		case isCommentOnly(trimmed, language):
			explanation = explainComment(trimmed)
		default:
			explanation = classify(line{text: trimmed, language: language, defined: defined, previous: previous})
		}
		if trimmed != "" {
			previous = trimmed
		}
		annotations = append(annotations, LineAnnotation{
			LineNumber:  i + 1,
			Code:        raw,
			Explanation: explanation,
		})
	}
	return annotations
}

// definedNames collects identifiers introduced by def/int/void anywhere in the snippet.
func definedNames(lines []string) map[string]bool {
	names := make(map[string]bool)
	for _, l := range lines {
		if m := definedNamePattern.FindStringSubmatch(l); m != nil {
			names[m[2]] = true
		}
	}
	return names
}

func classify(l line) string {
	var fragments []string
	for _, r := range lineRules {
		if r.match(l) {
			fragments = r.explain(l)
			break
		}
	}
	if len(fragments) == 0 {
		fragments = []string{genericExplanation(l)}
	}
	return strings.Join(fragments, ". ") + "."
}

func genericExplanation(l line) string {
	switch {
	case has(l.text, "{"):
		return "Opens a code block"
	case has(l.text, "}"):
		return "Closes a code block"
	case has(l.text, ";") && isCFamily(l.language):
		return "Statement terminator (semicolon ends the statement)"
	case has(l.text, ":") && l.language == detect.Python:
		return "Python block indicator (colon starts a new block)"
	}
	return "Executes: " + truncateRunes(l.text, 50)
}

func isCFamily(language string) bool {
	return language == detect.C || language == detect.CPP
}

func isCommentOnly(trimmed, language string) bool {
	switch {
	case isCFamily(language):
		return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*")
	case language == detect.Python:
		return strings.HasPrefix(trimmed, "#")
	}
	return false
}

func explainComment(trimmed string) string {
	body := strings.TrimSpace(strings.TrimLeft(trimmed, "#/"))
	body = strings.TrimSpace(strings.TrimSuffix(body, "*/"))
	body = strings.TrimSpace(strings.TrimLeft(body, "*"))
	if body == "" {
		return "Comment line for code documentation"
	}
	return "Comment: " + body
}

func explainInclude(l line) []string {
	lib := strings.Trim(strings.TrimSpace(strings.TrimPrefix(l.text, "#include")), `<>"`)
	fragments := []string{fmt.Sprintf("Includes the %s library, providing standard I/O functions", lib)}
	switch {
	case has(lib, "stdio.h"):
		fragments = append(fragments, "for input/output operations like printf and scanf")
	case has(lib, "stdlib.h"):
		fragments = append(fragments, "for memory management and utility functions")
	}
	return fragments
}

func explainFunctionDefinition(l line) []string {
	m := funcDefParts.FindStringSubmatch(l.text)
	if m == nil {
		return nil
	}
	kind, name := m[1], m[2]

	var fragments []string
	if kind == "def" {
		fragments = append(fragments, fmt.Sprintf("Defines a Python function named '%s'", name))
	} else {
		fragments = append(fragments, fmt.Sprintf("Defines a %s function named '%s'", kind, name))
	}

	if p := paramList.FindStringSubmatch(l.text); p != nil && strings.TrimSpace(p[1]) != "" {
		fragments = append(fragments, "that takes parameters: "+strings.TrimSpace(p[1]))
	} else {
		fragments = append(fragments, "that takes no parameters")
	}
	return fragments
}

func isReturn(l line) bool {
	return strings.HasPrefix(l.text, "return ") || l.text == "return" || l.text == "return;"
}

func explainReturn(l line) []string {
	expr := strings.TrimSpace(strings.TrimPrefix(l.text, "return"))
	expr = strings.TrimSpace(strings.TrimSuffix(expr, ";"))
	lowered := strings.ToLower(expr)

	switch {
	case expr == "":
		return []string{"Returns control to the caller without a value"}
	case expr == "0":
		return []string{"Returns 0 to indicate successful program termination"}
	case expr == "n" || expr == "1" || expr == "-1":
		fragments := []string{fmt.Sprintf("Returns the value %s, typically used as a base case or result", expr)}
		if expr == "n" && isIf(line{text: l.previous}) && isBaseCaseCondition(ifCondition(l.previous)) {
			fragments = append(fragments, "For n equal to 0 or 1 the answer is n itself")
		}
		return fragments
	case has(lowered, "fibonacci") || has(lowered, "fib"):
		return []string{"Recursively returns the sum of two previous Fibonacci numbers"}
	}
	return []string{"Returns the result: " + expr}
}

func isIf(l line) bool {
	return strings.HasPrefix(l.text, "if ") || strings.HasPrefix(l.text, "if(")
}

// ifCondition strips the keyword, an opening brace and the surrounding
// parentheses or colon from an if statement.
func ifCondition(text string) string {
	cond := strings.TrimSpace(strings.TrimPrefix(text, "if"))
	cond = strings.TrimSpace(strings.TrimSuffix(cond, "{"))
	return strings.TrimSpace(strings.Trim(cond, "():"))
}

func isBaseCaseCondition(cond string) bool {
	compact := strings.ReplaceAll(cond, " ", "")
	return has(compact, "n<=1") || has(compact, "n<2")
}

func explainIf(l line) []string {
	cond := ifCondition(l.text)
	switch {
	case isBaseCaseCondition(cond):
		return []string{
			"Base case check: if n is 0 or 1, return n directly",
			"This base case prevents infinite recursion in the Fibonacci calculation",
		}
	case l.language == detect.Python && has(" "+cond, " in "):
		return []string{"Checks if an element exists in a collection: " + cond}
	}
	return []string{
		"Conditional check: " + cond,
		"If true, executes the following block",
	}
}

func explainDeclaration(l line) []string {
	m := varDeclParts.FindStringSubmatch(l.text)
	if m == nil {
		return nil
	}
	kind := m[1]
	if kind == "" {
		kind = "variable"
	}
	value := strings.TrimRight(strings.TrimSpace(m[3]), ";")
	return []string{fmt.Sprintf("Declares %s '%s' and initializes it to %s", kind, m[2], value)}
}

func isLoop(l line) bool {
	for _, prefix := range []string{"for ", "for(", "while ", "while("} {
		if strings.HasPrefix(l.text, prefix) {
			return true
		}
	}
	return false
}

func explainLoop(l line) []string {
	if !strings.HasPrefix(l.text, "for") {
		return []string{"While loop: continues executing while condition is true"}
	}
	switch {
	case has(l.text, "in range"):
		return []string{"Iterates over a range of numbers"}
	case l.language == detect.Python && has(l.text, " in "):
		return []string{"Iterates over elements in a collection"}
	}
	return []string{"Traditional for loop with initialization, condition, and increment"}
}

func explainOutput(l line) []string {
	switch {
	case has(l.text, "printf"):
		return []string{"Prints formatted output to the console"}
	case has(l.text, "cout"):
		return []string{"C++ output stream: sends data to standard output"}
	}
	return []string{"Python print function: displays output to console"}
}

func explainCall(l line) []string {
	m := calleePattern.FindStringSubmatch(l.text)
	if m == nil || !l.defined[m[1]] {
		return nil
	}
	return []string{
		fmt.Sprintf("Recursive call to '%s' function", m[1]),
		"This function calls itself with modified parameters",
	}
}

func explainArithmetic(l line) []string {
	lowered := strings.ToLower(l.text)
	if !has(lowered, "fibonacci") && !has(lowered, "fib") {
		return nil
	}
	return []string{
		"Calculates Fibonacci by summing two recursive calls",
		"F(n) = F(n-1) + F(n-2)",
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
