package notify

import "strings"

// markdownV2Reserved are the characters Telegram rejects unescaped in
// MarkdownV2 text, plus '%' and the escape character itself.
const markdownV2Reserved = "_*[]()~`>#+-=|{}.!%\\"

// EscapeMarkdownV2 prefixes every reserved character with a backslash.
func EscapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(markdownV2Reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
