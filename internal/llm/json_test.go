package llm

import "testing"

type classifyPayload struct {
	Complexity string   `json:"complexity"`
	Topics     []string `json:"topics"`
}

func TestDecodeJSONPlain(t *testing.T) {
	var got classifyPayload
	if err := DecodeJSON(`{"complexity":"simple","topics":["aapl"]}`, &got); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Complexity != "simple" || len(got.Topics) != 1 {
		t.Fatalf("decoded %+v", got)
	}
}

func TestDecodeJSONMarkdownFence(t *testing.T) {
	content := "```json\n{\"complexity\":\"complex\"}\n```"
	var got classifyPayload
	if err := DecodeJSON(content, &got); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Complexity != "complex" {
		t.Fatalf("Complexity = %q", got.Complexity)
	}
}

func TestDecodeJSONEmbeddedInProse(t *testing.T) {
	content := `Sure! Here is the classification: {"complexity":"ambiguous"} hope that helps.`
	var got classifyPayload
	if err := DecodeJSON(content, &got); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Complexity != "ambiguous" {
		t.Fatalf("Complexity = %q", got.Complexity)
	}
}

func TestDecodeJSONRepairsMalformedOutput(t *testing.T) {
	// Trailing comma and single quotes, both common model slips.
	content := `{'complexity': 'simple', 'topics': ['btc',],}`
	var got classifyPayload
	if err := DecodeJSON(content, &got); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Complexity != "simple" || len(got.Topics) != 1 || got.Topics[0] != "btc" {
		t.Fatalf("decoded %+v", got)
	}
}

func TestDecodeJSONEmptyAndGarbage(t *testing.T) {
	var got classifyPayload
	if err := DecodeJSON("", &got); err == nil {
		t.Fatal("empty content must fail")
	}
	if err := DecodeJSON("no json here at all", &got); err == nil {
		t.Fatal("prose without an object must fail")
	}
}
