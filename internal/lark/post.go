package lark

import "strings"

// postLocales is the locale priority for rich-text (post) payloads.
var postLocales = []string{"zh_cn", "en_us", "ja_jp", "zh_hk", "zh_tw"}

// ExtractPostText flattens a Lark post (rich text) payload into plain text.
//
// The payload is keyed by locale, each locale holding ordered paragraphs of
// tagged elements: {"zh_cn": {"content": [[{"tag":"text","text":"..."}]]}}.
// The first locale present from postLocales wins; a top-level "content" field
// is the fallback. Text elements render verbatim, links as "text(href)",
// mentions as "@name". Each paragraph ends with a newline; the final result
// is whitespace-trimmed. Malformed input yields an empty string.
func ExtractPostText(content map[string]any) string {
	if len(content) == 0 {
		return ""
	}
	var paragraphs []any
	for _, locale := range postLocales {
		localized, ok := content[locale].(map[string]any)
		if !ok {
			continue
		}
		paragraphs, _ = localized["content"].([]any)
		break
	}
	if paragraphs == nil {
		paragraphs, _ = content["content"].([]any)
	}
	if paragraphs == nil {
		return ""
	}

	var b strings.Builder
	for _, rawParagraph := range paragraphs {
		paragraph, ok := rawParagraph.([]any)
		if !ok {
			continue
		}
		for _, rawElement := range paragraph {
			element, ok := rawElement.(map[string]any)
			if !ok {
				continue
			}
			tag, _ := element["tag"].(string)
			switch tag {
			case "text":
				if text, ok := element["text"].(string); ok {
					b.WriteString(text)
				}
			case "a":
				text, ok := element["text"].(string)
				if !ok {
					continue
				}
				b.WriteString(text)
				if href, ok := element["href"].(string); ok {
					b.WriteString("(" + href + ")")
				}
			case "at":
				if name, ok := element["user_name"].(string); ok {
					b.WriteString("@" + name)
				}
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
