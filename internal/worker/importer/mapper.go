package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/snoozies/dreamyhaven/internal/model"
	"github.com/snoozies/dreamyhaven/internal/story"
)

// summaryLength は取り込み時に説明文から作る要約の最大文字数。
const summaryLength = 300

// ItemToDraft はフィードの1記事をストーリーのドラフトに変換する。
// タイトルのない記事はslugを決められないためfalseを返す。
// 本文のサニタイズと抜粋の補完はstory.Service側で行う。
func ItemToDraft(item *gofeed.Item, defaultTags []string) (model.StoryDraft, bool) {
	if item == nil {
		return model.StoryDraft{}, false
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return model.StoryDraft{}, false
	}

	videoID := youTubeVideoID(item)
	draft := model.StoryDraft{
		Slug:         story.GenerateSlug(title),
		Title:        title,
		Summary:      itemSummary(item),
		Body:         itemBody(item),
		ThumbnailURL: thumbnailURL(item, videoID),
		AudioURL:     audioURL(item),
		YouTubeID:    videoID,
		Tags:         append([]string(nil), defaultTags...),
	}
	if item.ITunesExt != nil {
		draft.Duration = formatDuration(item.ITunesExt.Duration)
	}
	if item.PublishedParsed != nil {
		draft.PublishedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		draft.PublishedAt = item.UpdatedParsed.UTC()
	}
	return draft, true
}

func itemBody(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	if item.Description != "" {
		return item.Description
	}
	return mediaValue(item, "description")
}

func itemSummary(item *gofeed.Item) string {
	if item.ITunesExt != nil && strings.TrimSpace(item.ITunesExt.Summary) != "" {
		return story.DeriveExcerpt(item.ITunesExt.Summary, summaryLength)
	}
	if item.Description != "" {
		return story.DeriveExcerpt(item.Description, summaryLength)
	}
	return story.DeriveExcerpt(mediaValue(item, "description"), summaryLength)
}

// youTubeVideoID はYouTubeのAtomフィードが持つyt:videoIdを返す。
func youTubeVideoID(item *gofeed.Item) string {
	if v := firstExtension(item.Extensions, "yt", "videoId"); v != nil {
		return strings.TrimSpace(v.Value)
	}
	// GUIDは "yt:video:<id>" 形式
	if id, ok := strings.CutPrefix(item.GUID, "yt:video:"); ok {
		return id
	}
	return ""
}

// audioURL は音声のenclosureを返す。ポッドキャストの朗読音声を想定する。
func audioURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "audio/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

// thumbnailURL は記事画像、iTunes画像、media:thumbnail、YouTubeの既定サムネイルの順に探す。
func thumbnailURL(item *gofeed.Item, videoID string) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	if item.ITunesExt != nil && item.ITunesExt.Image != "" {
		return item.ITunesExt.Image
	}
	if thumb := mediaElement(item, "thumbnail"); thumb != nil && thumb.Attrs["url"] != "" {
		return thumb.Attrs["url"]
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	if videoID != "" {
		return "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"
	}
	return ""
}

// mediaElement はmedia:<name>を直下またはmedia:groupの中から探す。
func mediaElement(item *gofeed.Item, name string) *ext.Extension {
	if v := firstExtension(item.Extensions, "media", name); v != nil {
		return v
	}
	group := firstExtension(item.Extensions, "media", "group")
	if group == nil {
		return nil
	}
	if children := group.Children[name]; len(children) > 0 {
		return &children[0]
	}
	return nil
}

func mediaValue(item *gofeed.Item, name string) string {
	if v := mediaElement(item, name); v != nil {
		return v.Value
	}
	return ""
}

func firstExtension(exts ext.Extensions, prefix, name string) *ext.Extension {
	if exts == nil {
		return nil
	}
	values := exts[prefix][name]
	if len(values) == 0 {
		return nil
	}
	return &values[0]
}

// formatDuration はitunes:durationを "8 min" のような表示用文字列にする。
// 値は秒数、"MM:SS"、"HH:MM:SS"のいずれか。解釈できない値は空文字列を返す。
func formatDuration(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	seconds := 0
	for _, part := range strings.Split(raw, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return ""
		}
		seconds = seconds*60 + n
	}
	minutes := (seconds + 30) / 60
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min", minutes)
}
