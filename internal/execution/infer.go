package execution

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kazz187/sprintguild/internal/task"
)

var completionKeywords = []string{"completed", "finished", "done", "implemented", "delivered"}

// isSeparator reports whether r may sit between a title and a completion
// keyword without breaking adjacency. Line breaks end a mention.
func isSeparator(r rune) bool {
	if r == '\n' || r == '\r' {
		return false
	}
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '\'', '"', '`', '*', '_', ':', '-', '[', ']', '(', ')', '{', '}', '<', '>',
		'\u2018', '\u2019', '\u201c', '\u201d', '\u2013', '\u2014':
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// InferCompletions returns the tasks the response reports as completed: the
// title occurs in the response (case-insensitive) with a completion keyword
// directly before or after it. The keyword must stand as a whole word, so
// "Fix login bug doneness" does not count. It is a heuristic; tasks
// mentioned without a keyword are never returned.
func InferCompletions(tasks []*task.Task, response string) []*task.Task {
	text := strings.ToLower(response)
	var out []*task.Task
	for _, t := range tasks {
		title := strings.ToLower(strings.TrimSpace(t.Title))
		if title == "" {
			continue
		}
		if mentionsCompleted(text, title) {
			out = append(out, t)
		}
	}
	return out
}

func mentionsCompleted(text, title string) bool {
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], title)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(title)
		if keywordAfter(text, end) || keywordBefore(text, start) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}

func keywordAfter(text string, pos int) bool {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !isSeparator(r) {
			break
		}
		pos += size
	}
	rest := text[pos:]
	for _, kw := range completionKeywords {
		if !strings.HasPrefix(rest, kw) {
			continue
		}
		if next, _ := utf8.DecodeRuneInString(rest[len(kw):]); !isWordRune(next) {
			return true
		}
	}
	return false
}

func keywordBefore(text string, pos int) bool {
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:pos])
		if !isSeparator(r) {
			break
		}
		pos -= size
	}
	head := text[:pos]
	for _, kw := range completionKeywords {
		if !strings.HasSuffix(head, kw) {
			continue
		}
		if prev, _ := utf8.DecodeLastRuneInString(head[:len(head)-len(kw)]); !isWordRune(prev) {
			return true
		}
	}
	return false
}
