package sentence

import (
	"strings"
	"unicode"
)

// Normalize reduces text to its dedup form: lowercase, punctuation stripped,
// whitespace collapsed and trimmed.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// JoinText concatenates two text fragments with whitespace awareness: no
// separator if either side is empty, no extra space if the left side already
// ends in whitespace, a dash or an opening bracket, or the right side starts
// with closing punctuation.
func JoinText(left, right string) string {
	if left == "" {
		return right
	}
	if right == "" {
		return left
	}

	leftEnd := rune(0)
	for _, r := range left {
		leftEnd = r
	}
	rightStart, _ := firstRune(right)

	if unicode.IsSpace(leftEnd) || strings.ContainsRune("-–—([{«\"'", leftEnd) {
		return left + right
	}
	if strings.ContainsRune(".,;:!?…)]}»\"'", rightStart) {
		return left + right
	}

	return left + " " + right
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

// EndsSentence reports whether text ends in sentence-final punctuation,
// optionally followed by closing quotes or brackets.
func EndsSentence(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	runes := []rune(trimmed)
	i := len(runes) - 1
	for i >= 0 && strings.ContainsRune(")]}»\"'", runes[i]) {
		i--
	}
	if i < 0 {
		return false
	}

	return strings.ContainsRune(".!?…", runes[i])
}
