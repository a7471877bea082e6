package complexity

import (
	"path/filepath"
	"regexp"
	"strings"
)

// languages with brace-delimited function bodies.
var languages = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true, ".cjs": true,
	".java": true, ".go": true, ".c": true, ".h": true, ".cpp": true, ".cc": true,
	".hpp": true, ".cs": true, ".rs": true, ".php": true, ".kt": true,
	".swift": true, ".scala": true, ".dart": true,
}

// Supported reports whether path has a brace-language extension.
func Supported(path string) bool {
	return languages[strings.ToLower(filepath.Ext(path))]
}

var (
	namedFunc = []*regexp.Regexp{
		regexp.MustCompile(`\bfunction\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`),
		regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)\s*[\[(]`),
	}
	assignedFunc = regexp.MustCompile(
		`([A-Za-z_$][\w$]*)\s*(?::|=)\s*(?:async\s+)?(?:function\b|\([^()]*\)\s*(?::\s*[^=;{}()]+)?=>|[A-Za-z_$][\w$]*\s*=>)`)
	callHead = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*\([^()]*\)[^;{}()=]*\{`)
	// controlHead marks a line whose call-like head belongs to a statement
	// such as `for _, v := range values(xs) {`.
	controlHead = regexp.MustCompile(`\b(?:if|for|range|switch|else|while|catch|return|case)\b`)
)

// controlWords never name a function in a call-like head.
var controlWords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"with": true, "return": true, "function": true, "else": true, "do": true,
	"try": true, "new": true, "typeof": true, "sizeof": true, "foreach": true,
	"using": true, "lock": true, "synchronized": true, "when": true,
	"match": true, "guard": true, "elseif": true, "func": true, "fn": true,
}

var decisionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bif\b`),
	regexp.MustCompile(`\belse\s+if\b`),
	regexp.MustCompile(`\bfor\b`),
	regexp.MustCompile(`\bwhile\b`),
	regexp.MustCompile(`\bcase\b`),
	regexp.MustCompile(`\bcatch\b`),
}

var decisionTokens = []string{"&&", "||", "?"}

// Cyclomatic estimates the cyclomatic complexity of body.
// Each pattern scans independently, so `else if` counts for both the
// `if` and the `else if` pattern.
func Cyclomatic(body string) int {
	cc := 1
	for _, re := range decisionPatterns {
		cc += len(re.FindAllStringIndex(body, -1))
	}
	for _, tok := range decisionTokens {
		cc += strings.Count(body, tok)
	}
	return cc
}

// declaration returns the function name declared on line and the byte
// offset within line where the declaration match ends.
func declaration(line string) (string, int, bool) {
	for _, re := range namedFunc {
		if m := re.FindStringSubmatchIndex(line); m != nil {
			return line[m[2]:m[3]], m[1], true
		}
	}
	if m := assignedFunc.FindStringSubmatchIndex(line); m != nil {
		return line[m[2]:m[3]], m[1], true
	}
	for _, m := range callHead.FindAllStringSubmatchIndex(line, -1) {
		name := line[m[2]:m[3]]
		if controlWords[name] || controlHead.MatchString(line[:m[2]]) {
			continue
		}
		// Report the end of the name so the body search starts at the head.
		return name, m[3], true
	}
	return "", 0, false
}

// Extract finds function-like blocks in content. Each line declares at most
// one function; nested functions are reported on their own lines as well.
func Extract(content string) []Function {
	lines := strings.Split(content, "\n")
	starts := make([]int, len(lines))
	off := 0
	for i, l := range lines {
		starts[i] = off
		off += len(l) + 1
	}

	var funcs []Function
	for i, line := range lines {
		name, end, ok := declaration(line)
		if !ok {
			continue
		}
		open, ok := bodyStart(content, starts[i]+end)
		if !ok {
			continue
		}
		stop := bodyEnd(content, open)
		body := content[open:stop]
		funcs = append(funcs, Function{
			Name:       name,
			Line:       i + 1,
			EndLine:    lineOf(starts, stop-1),
			Body:       body,
			Cyclomatic: Cyclomatic(body),
		})
	}
	return funcs
}

// bodyStart finds the first '{' at or after from. A ';' or '}' first means
// the declaration has no body, as with a type-only member.
func bodyStart(content string, from int) (int, bool) {
	for i := from; i < len(content); i++ {
		switch content[i] {
		case '{':
			return i, true
		case ';', '}':
			return 0, false
		}
	}
	return 0, false
}

// bodyEnd returns the offset just past the brace that balances the one at
// open, or len(content) when it never balances.
func bodyEnd(content string, open int) int {
	depth := 0
	for i := open; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(content)
}

func lineOf(starts []int, offset int) int {
	lo, hi := 0, len(starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}
