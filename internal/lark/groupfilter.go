package lark

import "strings"

// ShouldRespondInGroup decides whether the bot should answer a group-chat
// message. It responds when the text contains a question mark (ASCII or
// full-width), when the bot was @-mentioned, or when the text contains one of
// the configured bot-name aliases (case-insensitive). Pure disjunction, no
// side effects.
func ShouldRespondInGroup(text string, mentions []Mention, botNames []string) bool {
	if strings.Contains(text, "?") || strings.Contains(text, "？") {
		return true
	}
	if len(mentions) > 0 {
		return true
	}
	if len(botNames) > 0 {
		lower := strings.ToLower(text)
		for _, name := range botNames {
			if name == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(name)) {
				return true
			}
		}
	}
	return false
}
