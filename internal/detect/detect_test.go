package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_Python(t *testing.T) {
	snippets := []string{
		"def fibonacci(n):\n    if n <= 1:\n        return n\n    return fibonacci(n-1) + fibonacci(n-2)",
		"import os\nprint(os.getcwd())",
		"from collections import deque",
		"square = lambda x: x * x",
		"if __name__ == '__main__':\n    main()",
		"result = None",
		"if x > 0:\n    y = 1\nelif x < 0:\n    y = -1\nelse:\n    y = 0",
		"async def fetch(session):\n    return await session.get(url)",
	}
	for _, s := range snippets {
		assert.Equal(t, Python, Detect(s), "snippet: %q", s)
	}
}

func TestDetect_PythonIndicatorWithCPPClassOverride(t *testing.T) {
	code := "class Shape {\npublic:\n    virtual double area() const = 0;\n};\n" +
		"double Circle::area() const {\n    // computed from the radius\n    return 3.14 * r * r;\n}"

	assert.Equal(t, CPP, Detect(code))
}

func TestDetect_ScopeTokensWinOverPythonIndicators(t *testing.T) {
	// "import " and "from " are python indicators, std:: and namespace are not python.
	assert.Equal(t, CPP, Detect("// import helpers\nstd::vector<int> v;"))
	assert.Equal(t, CPP, Detect("#include <iostream>\nusing namespace std;\n// read from input\nint main() { int x; cin >> x; }"))
}

func TestDetect_CPP(t *testing.T) {
	snippets := []string{
		"#include <iostream>\nusing namespace std;\nint main() {\n    cout << \"hi\";\n}",
		"std::vector<int> v;",
		"template<typename T>\nT maxOf(T a, T b) { return a > b ? a : b; }",
		"class Stack {\npublic:\n    void push(int v);\nprivate:\n    int top;\n};",
	}
	for _, s := range snippets {
		assert.Equal(t, CPP, Detect(s), "snippet: %q", s)
	}
}

func TestDetect_C(t *testing.T) {
	snippets := []string{
		"#include <stdio.h>\nint main() {\n    printf(\"hi\\n\");\n    return 0;\n}",
		"int *p = malloc(4 * sizeof(int));",
		"void swap(int *a, int *b) {\n    int t = *a;\n    *a = *b;\n    *b = t;\n}",
		"#include \"list.h\"\nint add(int a, int b) { return a + b; }",
	}
	for _, s := range snippets {
		assert.Equal(t, C, Detect(s), "snippet: %q", s)
	}
}

func TestDetect_IncludeWithTemplateIsCPP(t *testing.T) {
	assert.Equal(t, CPP, Detect("#include <vector>\ntemplate <typename T> struct Box { T v; };"))
}

func TestDetect_DefaultsToC(t *testing.T) {
	assert.Equal(t, C, Detect("x = 1"))
	assert.Equal(t, C, Detect(""))
}

func TestDetect_Deterministic(t *testing.T) {
	code := "int main() { return 0; }"
	first := Detect(code)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Detect(code))
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"cpp":     CPP,
		" C++ ":   CPP,
		"cc":      CPP,
		"py":      Python,
		"Python3": Python,
		"c":       C,
		"h":       C,
		"Rust":    "rust",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}
