package lark

import (
	"encoding/json"
	"testing"
)

func decodePost(t *testing.T, raw string) map[string]any {
	t.Helper()
	var content map[string]any
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return content
}

func TestExtractPostText_LocalePriority(t *testing.T) {
	t.Parallel()

	content := decodePost(t, `{
		"en_us": {"content": [[{"tag":"text","text":"english"}]]},
		"zh_cn": {"content": [[{"tag":"text","text":"中文"}]]}
	}`)
	if got := ExtractPostText(content); got != "中文" {
		t.Fatalf("zh_cn must win over en_us, got %q", got)
	}
}

func TestExtractPostText_TopLevelContentFallback(t *testing.T) {
	t.Parallel()

	content := decodePost(t, `{"title":"t","content":[[{"tag":"text","text":"plain"}]]}`)
	if got := ExtractPostText(content); got != "plain" {
		t.Fatalf("unexpected fallback text: %q", got)
	}
}

func TestExtractPostText_TagRendering(t *testing.T) {
	t.Parallel()

	content := decodePost(t, `{
		"en_us": {"content": [
			[{"tag":"text","text":"see "},{"tag":"a","text":"docs","href":"https://example.com"}],
			[{"tag":"at","user_id":"ou_1","user_name":"alice"},{"tag":"text","text":" ping"}]
		]}
	}`)
	want := "see docs(https://example.com)\n@alice ping"
	if got := ExtractPostText(content); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestExtractPostText_IgnoresUnknownTags(t *testing.T) {
	t.Parallel()

	content := decodePost(t, `{
		"en_us": {"content": [[{"tag":"img","image_key":"img_1"},{"tag":"text","text":"after image"}]]}
	}`)
	if got := ExtractPostText(content); got != "after image" {
		t.Fatalf("unknown tags must be skipped, got %q", got)
	}
}

func TestExtractPostText_MalformedShapes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":              `{}`,
		"locale not object":  `{"zh_cn": "oops"}`,
		"content not array":  `{"en_us": {"content": 5}}`,
		"paragraph not list": `{"en_us": {"content": ["oops"]}}`,
		"element not object": `{"en_us": {"content": [["oops"]]}}`,
	}
	for name, raw := range cases {
		content := decodePost(t, raw)
		if got := ExtractPostText(content); got != "" {
			t.Fatalf("%s: expected empty result, got %q", name, got)
		}
	}
}

func TestExtractPostText_NilContent(t *testing.T) {
	t.Parallel()

	if got := ExtractPostText(nil); got != "" {
		t.Fatalf("expected empty string for nil content, got %q", got)
	}
}
