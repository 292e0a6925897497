package channel

import (
	"strings"
	"unicode/utf8"
)

// ParseCommand maps a slash command to an Action. Bot-style suffixes such as
// "/help@my_bot" are accepted.
func ParseCommand(text string) (Action, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.Fields(text)[0]
	word = strings.TrimPrefix(word, "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}

	switch a := Action(strings.ToLower(word)); a {
	case ActionToggle, ActionOpen, ActionMinimize, ActionClose,
		ActionDismiss, ActionHealth, ActionClear, ActionHelp, ActionStart:
		return a, true
	}
	return "", false
}

// IsExit reports whether text asks the terminal host to quit.
func IsExit(text string) bool {
	switch strings.TrimSpace(text) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}

// SplitMessage splits text into chunks of at most maxLen characters,
// preferring newline and then space boundaries.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > maxLen {
		cut := maxLen
		window := string(runes[:maxLen])
		if i := strings.LastIndex(window, "\n"); i > 0 {
			cut = utf8.RuneCountInString(window[:i]) + 1
		} else if i := strings.LastIndex(window, " "); i > 0 {
			cut = utf8.RuneCountInString(window[:i]) + 1
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n "))
		runes = runes[cut:]
	}
	if rest := strings.TrimRight(string(runes), "\n "); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}
