package discovery

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const maxPerPoll = 50

// FeedSource discovers project IDs by polling an activity feed and
// extracting project references from entry links.
type FeedSource struct {
	feedURL  string
	interval time.Duration
	parser   *gofeed.Parser
}

// NewFeedSource creates a source that polls the given RSS/Atom feed.
func NewFeedSource(feedURL string, interval time.Duration) *FeedSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &FeedSource{
		feedURL:  feedURL,
		interval: interval,
		parser:   gofeed.NewParser(),
	}
}

// Run polls immediately, then on every interval tick, emitting the set
// of project IDs seen in the feed. Parse failures are logged and the
// poll is skipped; the source keeps running.
func (s *FeedSource) Run(ctx context.Context, emit func(projectIDs []string)) error {
	s.poll(ctx, emit)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx, emit)
		}
	}
}

func (s *FeedSource) poll(ctx context.Context, emit func(projectIDs []string)) {
	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		log.Printf("Failed to parse feed %s: %v", s.feedURL, err)
		return
	}

	ids := extractProjectIDs(feed)
	if len(ids) == 0 {
		return
	}
	emit(ids)
}

func extractProjectIDs(feed *gofeed.Feed) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, item := range feed.Items {
		if len(ids) >= maxPerPoll {
			break
		}
		id := projectIDFromLink(item.Link)
		if id == "" {
			id = projectIDFromLink(item.GUID)
		}
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// projectIDFromLink pulls a project ID out of a feed entry link. IDs
// appear as the path segment after "project" or "projects", e.g.
// https://example.com/o/acme/project/PROJ-42/updates.
func projectIDFromLink(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if (seg == "project" || seg == "projects") && i+1 < len(segments) {
			if id := segments[i+1]; id != "" {
				return id
			}
		}
	}
	return ""
}
