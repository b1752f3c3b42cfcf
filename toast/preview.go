package toast

import (
	"strings"

	"github.com/aquilax/truncate"
	strip "github.com/grokify/html-strip-tags-go"
	"github.com/kenshaw/emoji"
)

const DefaultPreviewLength = 100

// Preview turns message content into plain notification text of at most
// length runes.
func Preview(content string, length int) string {
	if length <= 0 {
		length = DefaultPreviewLength
	}

	text := strip.StripTags(content)
	text = emoji.ReplaceAliases(text)
	text = strings.Join(strings.Fields(text), " ")

	return truncate.Truncate(text, length, "", truncate.PositionEnd)
}
