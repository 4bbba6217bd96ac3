package feishu

// Card is a Feishu interactive-card payload.
type Card struct {
	Header   Header    `json:"header"`
	Elements []Element `json:"elements"`
}

// Header titles the card; Template selects the accent color ("blue", "red").
type Header struct {
	Title    Text   `json:"title"`
	Template string `json:"template"`
}

// Element is one card block: a markdown div, a divider, or an action row.
type Element struct {
	Tag     string   `json:"tag"`
	Text    *Text    `json:"text,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Text holds plain or lark_md content.
type Text struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// Action is a card button.
type Action struct {
	Tag  string `json:"tag"`
	Text Text   `json:"text"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// MarkdownBlock builds a lark_md div element.
func MarkdownBlock(content string) Element {
	return Element{
		Tag:  "div",
		Text: &Text{Tag: "lark_md", Content: content},
	}
}

// Divider builds a horizontal-rule element.
func Divider() Element {
	return Element{Tag: "hr"}
}

// LinkButton builds a primary button that opens the given URL.
func LinkButton(label, url string) Element {
	return Element{
		Tag: "action",
		Actions: []Action{{
			Tag:  "button",
			Text: Text{Tag: "plain_text", Content: label},
			URL:  url,
			Type: "primary",
		}},
	}
}
