// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package rss

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yelili422/bt/internal/models"
)

const (
	mikanTitlePrefix = "Mikan Project - "

	// Channel title of a per-user aggregation feed ("my programs"). Items
	// of such a feed describe unrelated shows, so neither the channel nor
	// the subscription may impose a title or season on them.
	aggregatorTitle = "我的番组"
)

// MikanParser decodes mikanani.me RSS feeds.
type MikanParser struct {
	logger zerolog.Logger
}

func NewMikanParser(logger zerolog.Logger) *MikanParser {
	return &MikanParser{logger: logger.With().Str("module", "parser").Logger()}
}

type mikanRss struct {
	XMLName xml.Name     `xml:"rss"`
	Channel mikanChannel `xml:"channel"`
}

type mikanChannel struct {
	Title       string      `xml:"title"`
	Link        string      `xml:"link"`
	Description string      `xml:"description"`
	Items       []mikanItem `xml:"item"`
}

type mikanItem struct {
	Link        string         `xml:"link"`
	Title       string         `xml:"title"`
	Description string         `xml:"description"`
	Torrent     mikanTorrent   `xml:"torrent"`
	Enclosure   mikanEnclosure `xml:"enclosure"`
}

type mikanTorrent struct {
	Link          string `xml:"link"`
	ContentLength int64  `xml:"contentLength"`
	PubDate       string `xml:"pubDate"`
}

type mikanEnclosure struct {
	Type   string `xml:"type,attr"`
	Length int64  `xml:"length,attr"`
	URL    string `xml:"url,attr"`
}

var (
	// Bracket variants normalized to ASCII before matching.
	fullwidthBracketRe = regexp.MustCompile(`【([^】]*)】`)
	starBracketRe      = regexp.MustCompile(`★([^★]*)★`)
	asteriskBracketRe  = regexp.MustCompile(`\*([^*]*)\*`)

	// Seasonal-release tags like [2024年10月新番] carry no episode info.
	seasonalTagRe = regexp.MustCompile(`\[[^\]]*?月新番\]`)

	// e.g. [喵萌奶茶屋&LoliHouse] 葬送的芙莉莲 / Sousou no Frieren - 17 [WebRip 1080p HEVC-10bit AAC][简繁日内封字幕]
	episodeTitleRe = regexp.MustCompile(
		`^\[(?P<fansub>.*?)\]\s*(?P<title>.*?)\s*-\s*(?P<episode>\d+)(?:v\d)?\s*(?P<episodename>.*?)\s*(?P<media>[\[(].*[\])])*$`)

	// e.g. 欢迎来到实力至上主义的教室 第三季
	titleSeasonRe = regexp.MustCompile(`([^\[\]]*)\s第([一二三四五六七八九十])季`)

	bracketedRe = regexp.MustCompile(`\[[^\]]*?\]`)
)

var cjkSeasons = map[string]int{
	"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

func stripMikanPrefix(title string) string {
	return strings.TrimPrefix(title, mikanTitlePrefix)
}

// parseTitleAndSeason extracts a CJK season marker (第N季, N in 一..十) from
// a show title. Titles without a marker are season 1. Multi-title strings
// (A / B / C) yield the first trimmed component.
func parseTitleAndSeason(s string) (string, int) {
	title, season := s, 1
	if m := titleSeasonRe.FindStringSubmatch(s); m != nil {
		title = m[1]
		season = cjkSeasons[m[2]]
	}

	title = splitFirstTitle(title)
	return strings.TrimSpace(title), season
}

func splitFirstTitle(s string) string {
	first := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '|'
	})
	if len(first) == 0 {
		return ""
	}
	return strings.TrimSpace(first[0])
}

func normalizeTitle(title string) string {
	title = fullwidthBracketRe.ReplaceAllString(title, "[$1]")
	title = starBracketRe.ReplaceAllString(title, "[$1]")
	title = asteriskBracketRe.ReplaceAllString(title, "[$1]")
	title = seasonalTagRe.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}

// parseEpisodeTitle extracts (fansub, title, season, episode, episode name,
// media info) from a raw item title, trying the primary grammar first and a
// bracket-split fallback second.
func parseEpisodeTitle(raw string) (*Item, error) {
	title := normalizeTitle(raw)

	if m := episodeTitleRe.FindStringSubmatch(title); m != nil {
		groups := matchGroups(episodeTitleRe, m)

		episode, err := strconv.Atoi(groups["episode"])
		if err == nil && episode > 0 {
			showTitle, season := parseTitleAndSeason(groups["title"])
			showTitle = strings.TrimSpace(bracketedRe.ReplaceAllString(showTitle, ""))

			return &Item{
				Title:        showTitle,
				EpisodeTitle: strings.TrimSpace(groups["episodename"]),
				Season:       season,
				Episode:      episode,
				Fansub:       "[" + groups["fansub"] + "]",
				MediaInfo:    groups["media"],
			}, nil
		}
	}

	return parseEpisodeTitleFallback(raw, title)
}

// parseEpisodeTitleFallback splits on brackets and dashes: the first slice
// is the fansub, the second the title, and the first parseable integer in
// the rest is the episode. The slices after the episode are reassembled as
// the media annotation.
func parseEpisodeTitleFallback(raw, title string) (*Item, error) {
	var slices []string
	for _, part := range strings.FieldsFunc(title, func(r rune) bool {
		return r == '[' || r == ']' || r == '-'
	}) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			slices = append(slices, trimmed)
		}
	}

	if len(slices) < 2 {
		return nil, &UnrecognizedEpisodeError{Title: raw}
	}

	showTitle, season := parseTitleAndSeason(slices[1])

	for i := 2; i < len(slices); i++ {
		episode, err := strconv.Atoi(slices[i])
		if err != nil || episode <= 0 {
			continue
		}

		var media strings.Builder
		for _, rest := range slices[i+1:] {
			media.WriteString("[")
			media.WriteString(rest)
			media.WriteString("]")
		}

		return &Item{
			Title:     showTitle,
			Season:    season,
			Episode:   episode,
			Fansub:    "[" + slices[0] + "]",
			MediaInfo: media.String(),
		}, nil
	}

	return nil, &UnrecognizedEpisodeError{Title: raw}
}

func matchGroups(re *regexp.Regexp, m []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			groups[name] = m[i]
		}
	}
	return groups
}

// ParseContent decodes a mikan RSS body. Item titles that match neither
// grammar are logged and skipped without aborting the feed.
func (p *MikanParser) ParseContent(sub *models.Rss, content []byte) (*Feed, error) {
	var doc mikanRss
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, &InvalidRssError{Err: err}
	}

	channelTitle, channelSeason := parseTitleAndSeason(stripMikanPrefix(doc.Channel.Title))
	aggregator := channelTitle == aggregatorTitle

	feed := &Feed{
		URL:         doc.Channel.Link,
		Description: doc.Channel.Description,
	}

	for _, raw := range doc.Channel.Items {
		item, err := parseEpisodeTitle(raw.Title)
		if err != nil {
			p.logger.Error().Err(err).Str("title", raw.Title).Msg("skipping unrecognized feed item")
			continue
		}

		item.URL = raw.Link
		item.Torrent = Torrent{
			URL:           raw.Enclosure.URL,
			ContentLength: raw.Enclosure.Length,
			PubDate:       raw.Torrent.PubDate,
		}

		if !aggregator {
			// Priority: subscription title > channel title > item title,
			// and likewise for the season. Aggregated feeds mix shows, so
			// subscription overrides do not apply to them at all.
			item.Title = channelTitle
			item.Season = channelSeason
			if sub.Title != nil {
				item.Title = *sub.Title
			}
			if sub.Season != nil {
				item.Season = *sub.Season
			}
			if sub.Category != nil {
				item.Category = *sub.Category
			}
		}

		feed.Items = append(feed.Items, *item)
	}

	return feed, nil
}
