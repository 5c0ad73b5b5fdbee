// Package reply classifies raw dialogue replies into display blocks.
package reply

import (
	"regexp"
	"strings"
)

// Kind is the type of a display block.
type Kind string

const (
	Heading Kind = "heading"
	Bullet  Kind = "bullet"
	Link    Kind = "link"
	Text    Kind = "text"
)

// Block is one classified line of a reply. Href is set for links only, Text
// for every other kind.
type Block struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text,omitempty"`
	Href string `json:"href,omitempty"`
}

var (
	// "Key facts:" but not "- item:", "Note: more text" or "https://host".
	headingPattern = regexp.MustCompile(`^([^\s:\-*•–][^:]*?)\s*:$`)
	bulletPattern  = regexp.MustCompile(`^(?:[-*•–]|\d{1,3}[.)])\s+(.*)$`)
	urlPattern     = regexp.MustCompile(`^https?://\S+$`)
)

// Format turns raw reply text into blocks, one per non-blank line, in source
// order. It never fails and depends on nothing but its input.
func Format(raw string) []Block {
	lines := strings.Split(raw, "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		blocks = append(blocks, classify(line))
	}
	return blocks
}

// classify expects a trimmed, non-empty line.
func classify(line string) Block {
	if m := headingPattern.FindStringSubmatch(line); m != nil {
		return Block{Kind: Heading, Text: m[1]}
	}
	if m := bulletPattern.FindStringSubmatch(line); m != nil {
		content := strings.TrimSpace(m[1])
		if urlPattern.MatchString(content) {
			return Block{Kind: Link, Href: content}
		}
		return Block{Kind: Bullet, Text: content}
	}
	return Block{Kind: Text, Text: line}
}
