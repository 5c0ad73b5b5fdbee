package reply

import "strings"

// Markdown projects blocks back into markdown so a terminal renderer can
// style them. Consecutive bullets and links stay in one list.
func Markdown(blocks []Block) string {
	var sb strings.Builder
	prev := Kind("")
	for i, b := range blocks {
		listItem := b.Kind == Bullet || b.Kind == Link
		if i > 0 {
			if listItem && (prev == Bullet || prev == Link) {
				sb.WriteString("\n")
			} else {
				sb.WriteString("\n\n")
			}
		}
		switch b.Kind {
		case Heading:
			sb.WriteString("### ")
			sb.WriteString(b.Text)
		case Bullet:
			sb.WriteString("- ")
			sb.WriteString(b.Text)
		case Link:
			sb.WriteString("- <")
			sb.WriteString(b.Href)
			sb.WriteString(">")
		default:
			sb.WriteString(b.Text)
		}
		prev = b.Kind
	}
	return sb.String()
}

// PlainText flattens blocks to one line per block without markup.
func PlainText(blocks []Block) string {
	lines := make([]string, len(blocks))
	for i, b := range blocks {
		switch b.Kind {
		case Heading:
			lines[i] = b.Text + ":"
		case Bullet:
			lines[i] = "• " + b.Text
		case Link:
			lines[i] = "• " + b.Href
		default:
			lines[i] = b.Text
		}
	}
	return strings.Join(lines, "\n")
}
