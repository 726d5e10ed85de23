package explain

import "strings"

// intentRule maps a predicate over the snippet to a description of what the
// snippet implements. lowered is the lower-cased snippet.
type intentRule struct {
	name        string
	match       func(code, lowered string) bool
	description string
}

const defaultIntent = "core algorithmic logic with specific computational steps"

// intentRules is evaluated top to bottom and the first match wins. Many
// snippets satisfy several rules, so the order is significant.
var intentRules = []intentRule{
	{"fibonacci", func(_, l string) bool { return has(l, "fibonacci") || has(l, "fib") },
		"a recursive Fibonacci sequence generator that calculates the nth Fibonacci number using the mathematical relationship F(n) = F(n-1) + F(n-2) with base cases for n <= 1"},
	{"quicksort", func(_, l string) bool { return has(l, "quicksort") || (has(l, "sort") && has(l, "pivot")) },
		"the Quicksort algorithm, a divide-and-conquer sorting method that partitions arrays around a pivot element"},
	{"mergesort", func(_, l string) bool { return has(l, "mergesort") || (has(l, "sort") && has(l, "merge")) },
		"the Mergesort algorithm, which divides arrays into halves and merges sorted subarrays"},
	{"binary-search", func(_, l string) bool { return has(l, "binary") && has(l, "search") },
		"binary search, an efficient O(log n) search algorithm for sorted arrays"},
	{"graph", func(_, l string) bool { return has(l, "graph") || (has(l, "node") && has(l, "neighbor")) },
		"graph traversal, likely using depth-first or breadth-first search to visit all nodes"},
	{"tree", func(_, l string) bool { return has(l, "tree") && (has(l, "node") || has(l, "leaf")) },
		"tree data structure operations, such as traversal or node manipulation"},
	{"stack", func(_, l string) bool { return has(l, "stack") || (has(l, "push") && has(l, "pop")) },
		"stack data structure with LIFO (Last In First Out) operations"},
	{"queue", func(_, l string) bool { return has(l, "queue") || (has(l, "enqueue") && has(l, "dequeue")) },
		"queue data structure with FIFO (First In First Out) operations"},
	{"swap", func(_, l string) bool { return has(l, "swap") },
		"a value swapping utility that exchanges two variables, often using temporary storage or pointer manipulation"},
	{"reverse", func(_, l string) bool { return has(l, "reverse") },
		"string or array reversal algorithm"},
	{"factorial", func(_, l string) bool { return has(l, "factorial") || has(l, "fact") },
		"factorial calculation, typically using recursion"},
	{"allocation", func(_, l string) bool { return has(l, "malloc") || has(l, "new ") },
		"dynamic memory allocation"},
	{"deallocation", func(_, l string) bool { return has(l, "free") || has(l, "delete ") },
		"memory deallocation and resource cleanup"},
	{"class", func(c, l string) bool { return has(c, "class ") && (has(l, "__init__") || has(l, "constructor")) },
		"an object-oriented class definition with initialization logic"},
	{"template", func(c, _ string) bool { return has(c, "template") },
		"generic programming using templates for type-independent code"},
	{"entry-point", func(c, _ string) bool { return has(c, "main()") || has(c, "int main") },
		"a main program entry point that orchestrates function calls and program execution"},
}

// inferIntent describes the primary purpose of code. It always returns a description.
func inferIntent(code string) string {
	lowered := strings.ToLower(code)
	for _, r := range intentRules {
		if r.match(code, lowered) {
			return r.description
		}
	}
	return defaultIntent
}

func has(s, substr string) bool {
	return strings.Contains(s, substr)
}
