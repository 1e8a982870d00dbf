package fetch

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kuroyagi/resmirror/anchor"
)

// anchorPattern matches explicit reply markers in post text, in both
// half-width (">>12") and full-width ("＞＞12") forms.
var anchorPattern = regexp.MustCompile(`(?:>>|＞＞)(\d+)`)

// parser turns a fetched page into a Result. Post blocks are located with
// CSS selectors; body fragments are sanitized (scraped HTML is untrusted)
// and converted to readable text so line breaks and links survive.
type parser struct {
	sel       Selectors
	sanitizer *bluemonday.Policy
	md        *htmltomarkdown.Converter
}

func newParser(sel Selectors) *parser {
	return &parser{
		sel:       sel,
		sanitizer: bluemonday.UGCPolicy(),
		md: htmltomarkdown.NewConverter(
			htmltomarkdown.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

func (p *parser) parse(page []byte) (*Result, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := &Result{Title: findTitle(doc)}

	gq := goquery.NewDocumentFromNode(doc)
	gq.Find(p.sel.Post).Each(func(_ int, block *goquery.Selection) {
		post := RawPost{
			Seq:      p.extractSeq(block),
			PostedAt: strings.TrimSpace(block.Find(p.sel.Date).First().Text()),
		}

		bodySel := block.Find(p.sel.Body).First()
		if bodySel.Length() == 0 {
			bodySel = block
		}
		post.Body = p.renderBody(bodySel)
		if post.Body == "" {
			return // empty posts are dropped, body is required
		}
		post.Anchors = extractAnchors(bodySel.Text())

		res.Posts = append(res.Posts, post)
	})

	return res, nil
}

// extractSeq reads the post ordinal: the configured attribute on the block
// first, then the text of the ordinal element. Returns nil when absent or
// malformed; such posts stay in the list but cannot be reply targets.
func (p *parser) extractSeq(block *goquery.Selection) *int64 {
	if v, ok := block.Attr(p.sel.SeqAttr); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
			return &n
		}
	}
	text := strings.TrimSpace(block.Find(p.sel.Seq).First().Text())
	text = strings.TrimSuffix(strings.TrimPrefix(text, "#"), ":")
	if n, err := strconv.ParseInt(text, 10, 64); err == nil && n >= 0 {
		return &n
	}
	return nil
}

// renderBody converts a post body fragment into plain readable text:
// sanitize first (untrusted markup), then markdown conversion to keep line
// breaks and link targets. Falls back to the DOM text on conversion failure.
func (p *parser) renderBody(sel *goquery.Selection) string {
	fragment, err := sel.Html()
	if err != nil {
		return strings.TrimSpace(sel.Text())
	}
	clean := p.sanitizer.Sanitize(fragment)
	text, err := p.md.ConvertString(clean)
	if err != nil {
		return strings.TrimSpace(sel.Text())
	}
	return strings.TrimSpace(text)
}

// extractAnchors collects the reply targets named in the post text, in
// order of appearance, deduplicated.
func extractAnchors(text string) anchor.Set {
	matches := anchorPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(matches))
	var out anchor.Set
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// findTitle extracts the <title> text.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
