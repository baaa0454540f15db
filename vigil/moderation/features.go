package moderation

import (
	"strings"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// MessageFeatures are the structural signals extracted from a message.
// Nothing content-derived beyond these counts is retained anywhere.
type MessageFeatures struct {
	UTF8Length  int
	LineBreaks  int
	ImageCount  int
	UniquePings int
}

// ExtractFeatures reduces a gateway message to its scoring features.
// Pings count distinct mentioned users, not mention occurrences.
func ExtractFeatures(msg discord.Message) MessageFeatures {
	images := 0
	for _, att := range msg.Attachments {
		if att.ContentType != nil && strings.HasPrefix(*att.ContentType, "image/") {
			images++
		}
	}
	for _, embed := range msg.Embeds {
		if embed.Image != nil {
			images++
		}
	}

	seen := make(map[snowflake.ID]struct{}, len(msg.Mentions))
	for _, mention := range msg.Mentions {
		seen[mention.ID] = struct{}{}
	}

	return MessageFeatures{
		UTF8Length:  utf8.RuneCountInString(msg.Content),
		LineBreaks:  strings.Count(msg.Content, "\n"),
		ImageCount:  images,
		UniquePings: len(seen),
	}
}
