// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"regexp"
	"sort"
	"sync"
)

// ArgMap maps one named capture group to an operation argument.
type ArgMap struct {
	Capture string
	Arg     string
}

// InputPattern is one immutable routing rule.
type InputPattern struct {
	ID          string
	Adapter     string
	Operation   string
	Pattern     *regexp.Regexp
	ArgMapping  []ArgMap
	Priority    int
	Description string
	Example     string
}

// defaultPatterns is built on first use and never mutated afterwards.
var defaultPatterns = sync.OnceValue(func() []InputPattern {
	return sortByPriority(builtinPatterns())
})

// sortByPriority returns a copy ordered by descending priority. Ties keep
// declaration order.
func sortByPriority(patterns []InputPattern) []InputPattern {
	out := make([]InputPattern, len(patterns))
	copy(out, patterns)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

func args(pairs ...string) []ArgMap {
	m := make([]ArgMap, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m = append(m, ArgMap{Capture: pairs[i], Arg: pairs[i+1]})
	}
	return m
}

// builtinPatterns is the pattern table in declaration order. Adding a new
// input shape means adding an entry here.
func builtinPatterns() []InputPattern {
	return []InputPattern{
		// YouTube.
		{
			ID: "youtube_url_watch", Adapter: "youtube", Operation: "get_video_details",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/watch\?v=(?P<video_id>[a-zA-Z0-9_-]{11})`),
			ArgMapping:  args("video_id", "video_id"),
			Priority:    100,
			Description: "YouTube video URL (youtube.com/watch?v=...)",
			Example:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			ID: "youtube_url_short", Adapter: "youtube", Operation: "get_video_details",
			Pattern:     regexp.MustCompile(`(?:https?://)?youtu\.be/(?P<video_id>[a-zA-Z0-9_-]{11})`),
			ArgMapping:  args("video_id", "video_id"),
			Priority:    100,
			Description: "YouTube short URL (youtu.be/...)",
			Example:     "https://youtu.be/dQw4w9WgXcQ",
		},
		{
			ID: "youtube_url_embed", Adapter: "youtube", Operation: "get_video_details",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/embed/(?P<video_id>[a-zA-Z0-9_-]{11})`),
			ArgMapping:  args("video_id", "video_id"),
			Priority:    100,
			Description: "YouTube embed URL",
			Example:     "https://www.youtube.com/embed/dQw4w9WgXcQ",
		},
		{
			// Bare 11-character strings are weak evidence.
			ID: "youtube_video_id", Adapter: "youtube", Operation: "get_video_details",
			Pattern:     regexp.MustCompile(`^(?P<video_id>[a-zA-Z0-9_-]{11})$`),
			ArgMapping:  args("video_id", "video_id"),
			Priority:    10,
			Description: "YouTube video ID (11 characters)",
			Example:     "dQw4w9WgXcQ",
		},
		{
			ID: "youtube_playlist", Adapter: "youtube", Operation: "get_playlist",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/playlist\?list=(?P<playlist_id>[a-zA-Z0-9_-]+)`),
			ArgMapping:  args("playlist_id", "playlist_id"),
			Priority:    100,
			Description: "YouTube playlist URL",
			Example:     "https://www.youtube.com/playlist?list=PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf",
		},
		{
			ID: "youtube_channel", Adapter: "youtube", Operation: "get_channel",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/(?:@|channel/)(?P<channel_id>[a-zA-Z0-9_-]+)`),
			ArgMapping:  args("channel_id", "channel_id"),
			Priority:    100,
			Description: "YouTube channel URL",
			Example:     "https://www.youtube.com/@veritasium",
		},

		// Hacker News.
		{
			ID: "hackernews_url", Adapter: "hackernews", Operation: "get_post",
			Pattern:     regexp.MustCompile(`(?:https?://)?news\.ycombinator\.com/item\?id=(?P<item_id>\d+)`),
			ArgMapping:  args("item_id", "id"),
			Priority:    100,
			Description: "Hacker News item URL",
			Example:     "https://news.ycombinator.com/item?id=38500000",
		},
		{
			ID: "hackernews_id", Adapter: "hackernews", Operation: "get_post",
			Pattern:     regexp.MustCompile(`^(?:hn:|HN:)?(?P<item_id>\d{7,9})$`),
			ArgMapping:  args("item_id", "id"),
			Priority:    50,
			Description: "Hacker News item ID (7-9 digits, optionally prefixed with hn:)",
			Example:     "hn:38500000",
		},

		// arXiv.
		{
			ID: "arxiv_url", Adapter: "arxiv", Operation: "get",
			Pattern:     regexp.MustCompile(`(?:https?://)?arxiv\.org/(?:abs|pdf)/(?P<arxiv_id>\d{4}\.\d{4,5}(?:v\d+)?)`),
			ArgMapping:  args("arxiv_id", "id"),
			Priority:    100,
			Description: "arXiv paper URL",
			Example:     "https://arxiv.org/abs/2301.07041",
		},
		{
			ID: "arxiv_id", Adapter: "arxiv", Operation: "get",
			Pattern:     regexp.MustCompile(`^(?:arXiv:|arxiv:)?(?P<arxiv_id>\d{4}\.\d{4,5}(?:v\d+)?)$`),
			ArgMapping:  args("arxiv_id", "id"),
			Priority:    90,
			Description: "arXiv paper ID (e.g. 2301.07041 or arXiv:2301.07041)",
			Example:     "arXiv:2301.07041",
		},
		{
			ID: "arxiv_old_id", Adapter: "arxiv", Operation: "get",
			Pattern:     regexp.MustCompile(`^(?:arXiv:|arxiv:)?(?P<arxiv_id>[a-z-]+/\d{7})$`),
			ArgMapping:  args("arxiv_id", "id"),
			Priority:    90,
			Description: "arXiv old-style ID (e.g. hep-th/9901001)",
			Example:     "hep-th/9901001",
		},

		// Patents.
		{
			ID: "google_patents_url", Adapter: "patentsview", Operation: "get_patent",
			Pattern:     regexp.MustCompile(`(?:https?://)?patents\.google\.com/patent/(?P<patent_id>US\d{6,11}(?:[A-Z]\d{0,2})?)`),
			ArgMapping:  args("patent_id", "id"),
			Priority:    100,
			Description: "Google Patents URL for a US patent",
			Example:     "https://patents.google.com/patent/US7654321B2",
		},
		{
			ID: "us_patent", Adapter: "patentsview", Operation: "get_patent",
			Pattern:     regexp.MustCompile(`^(?P<patent_id>US\d{6,11}(?:[A-Z]\d{0,2})?)$`),
			ArgMapping:  args("patent_id", "id"),
			Priority:    90,
			Description: "US patent number (e.g. US7654321 or US7654321B2)",
			Example:     "US7654321B2",
		},

		// PubMed.
		{
			ID: "pubmed_url", Adapter: "pubmed", Operation: "get_article",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:ncbi\.nlm\.nih\.gov/pubmed/|pubmed\.ncbi\.nlm\.nih\.gov/)(?P<pmid>\d+)`),
			ArgMapping:  args("pmid", "pmid"),
			Priority:    100,
			Description: "PubMed article URL",
			Example:     "https://pubmed.ncbi.nlm.nih.gov/12345678",
		},
		{
			ID: "pubmed_id", Adapter: "pubmed", Operation: "get_article",
			Pattern:     regexp.MustCompile(`^(?:PMID:|pmid:|PubMed:)?(?P<pmid>\d{7,8})$`),
			ArgMapping:  args("pmid", "pmid"),
			Priority:    80,
			Description: "PubMed ID (7-8 digits, optionally prefixed with PMID:)",
			Example:     "PMID:12345678",
		},

		// DOI, routed to Semantic Scholar.
		{
			ID: "doi_url", Adapter: "semantic-scholar", Operation: "get_paper",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:dx\.)?doi\.org/(?P<doi>10\.\d{4,}/[^\s]+)`),
			ArgMapping:  args("doi", "paper_id"),
			Priority:    100,
			Description: "DOI URL (doi.org/...)",
			Example:     "https://doi.org/10.1038/nature12373",
		},
		{
			ID: "doi_bare", Adapter: "semantic-scholar", Operation: "get_paper",
			Pattern:     regexp.MustCompile(`^(?:doi:|DOI:)?(?P<doi>10\.\d{4,}/[^\s]+)$`),
			ArgMapping:  args("doi", "paper_id"),
			Priority:    90,
			Description: "DOI (e.g. 10.1234/example)",
			Example:     "10.1038/nature12373",
		},
		{
			ID: "semantic_scholar_url", Adapter: "semantic-scholar", Operation: "get_paper",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?semanticscholar\.org/paper/[^/]+/(?P<paper_id>[a-f0-9]{40})`),
			ArgMapping:  args("paper_id", "paper_id"),
			Priority:    100,
			Description: "Semantic Scholar paper URL",
			Example:     "https://www.semanticscholar.org/paper/Attention-Is-All-You-Need/204e3073870fae3d05bcbc2f6a8e263d9b72e776",
		},

		// Wikipedia.
		{
			ID: "wikipedia_url", Adapter: "wikipedia", Operation: "get_page",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?P<lang>[a-z]{2})\.wikipedia\.org/wiki/(?P<title>[^\s?#]+)`),
			ArgMapping:  args("title", "title", "lang", "lang"),
			Priority:    100,
			Description: "Wikipedia article URL",
			Example:     "https://en.wikipedia.org/wiki/Go_(programming_language)",
		},

		// GitHub.
		{
			ID: "github_repo_url", Adapter: "github", Operation: "get_repository",
			Pattern:     regexp.MustCompile(`(?:https?://)?github\.com/(?P<owner>[a-zA-Z0-9_-]+)/(?P<repo>[a-zA-Z0-9_.-]+)/?$`),
			ArgMapping:  args("owner", "owner", "repo", "repo"),
			Priority:    100,
			Description: "GitHub repository URL",
			Example:     "https://github.com/golang/go",
		},
		{
			ID: "github_issue_url", Adapter: "github", Operation: "get_issue",
			Pattern:     regexp.MustCompile(`(?:https?://)?github\.com/(?P<owner>[a-zA-Z0-9_-]+)/(?P<repo>[a-zA-Z0-9_.-]+)/issues/(?P<issue_number>\d+)`),
			ArgMapping:  args("owner", "owner", "repo", "repo", "issue_number", "issue_number"),
			Priority:    100,
			Description: "GitHub issue URL",
			Example:     "https://github.com/golang/go/issues/12345",
		},
		{
			ID: "github_pr_url", Adapter: "github", Operation: "get_pull_request",
			Pattern:     regexp.MustCompile(`(?:https?://)?github\.com/(?P<owner>[a-zA-Z0-9_-]+)/(?P<repo>[a-zA-Z0-9_.-]+)/pull/(?P<pr_number>\d+)`),
			ArgMapping:  args("owner", "owner", "repo", "repo", "pr_number", "pr_number"),
			Priority:    100,
			Description: "GitHub pull request URL",
			Example:     "https://github.com/golang/go/pull/12345",
		},
		{
			ID: "github_repo_shorthand", Adapter: "github", Operation: "get_repository",
			Pattern:     regexp.MustCompile(`^(?P<owner>[a-zA-Z0-9_-]+)/(?P<repo>[a-zA-Z0-9_.-]+)$`),
			ArgMapping:  args("owner", "owner", "repo", "repo"),
			Priority:    50,
			Description: "GitHub repository shorthand (owner/repo)",
			Example:     "golang/go",
		},

		// Reddit.
		{
			ID: "reddit_post_url", Adapter: "reddit", Operation: "get_post",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?reddit\.com/r/(?P<subreddit>[a-zA-Z0-9_]+)/comments/(?P<post_id>[a-z0-9]+)`),
			ArgMapping:  args("subreddit", "subreddit", "post_id", "post_id"),
			Priority:    100,
			Description: "Reddit post URL",
			Example:     "https://www.reddit.com/r/golang/comments/abc123",
		},
		{
			ID: "reddit_subreddit_url", Adapter: "reddit", Operation: "get_subreddit",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?reddit\.com/r/(?P<subreddit>[a-zA-Z0-9_]+)/?$`),
			ArgMapping:  args("subreddit", "subreddit"),
			Priority:    100,
			Description: "Reddit subreddit URL",
			Example:     "https://www.reddit.com/r/golang",
		},
		{
			ID: "reddit_subreddit_shorthand", Adapter: "reddit", Operation: "get_subreddit",
			Pattern:     regexp.MustCompile(`^r/(?P<subreddit>[a-zA-Z0-9_]+)$`),
			ArgMapping:  args("subreddit", "subreddit"),
			Priority:    80,
			Description: "Reddit subreddit shorthand (r/name)",
			Example:     "r/golang",
		},

		// X (Twitter).
		{
			ID: "x_post_url", Adapter: "x", Operation: "get_tweet",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:twitter\.com|x\.com)/(?P<username>[a-zA-Z0-9_]+)/status/(?P<tweet_id>\d+)`),
			ArgMapping:  args("tweet_id", "tweet_id"),
			Priority:    100,
			Description: "X/Twitter post URL",
			Example:     "https://x.com/golang/status/1234567890",
		},
		{
			ID: "x_profile_url", Adapter: "x", Operation: "get_profile",
			Pattern:     regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:twitter\.com|x\.com)/(?P<username>[a-zA-Z0-9_]+)/?$`),
			ArgMapping:  args("username", "username"),
			Priority:    90,
			Description: "X/Twitter profile URL",
			Example:     "https://x.com/golang",
		},
		{
			ID: "x_handle", Adapter: "x", Operation: "get_profile",
			Pattern:     regexp.MustCompile(`^@(?P<username>[a-zA-Z0-9_]+)$`),
			ArgMapping:  args("username", "username"),
			Priority:    80,
			Description: "X/Twitter handle (@username)",
			Example:     "@golang",
		},

		// Catch-all for any other URL.
		{
			ID: "web_url", Adapter: "web", Operation: "fetch",
			Pattern:     regexp.MustCompile(`^(?P<url>https?://[^\s]+)$`),
			ArgMapping:  args("url", "url"),
			Priority:    1,
			Description: "Generic web URL",
			Example:     "https://example.com/page",
		},
	}
}
