// Package rationale asks a chat model why two posts should link and
// what the anchor text should say.
package rationale

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anchormap/anchormap/internal/provider"
	"github.com/anchormap/anchormap/internal/ranker"
	"github.com/anchormap/anchormap/internal/store"
	"github.com/anchormap/anchormap/internal/suggest"
)

// excerptChars bounds how much of each post body goes into a prompt.
const excerptChars = 1500

const reasonSystemPrompt = `You are an editor who recommends internal links between blog posts. Answer with exactly one sentence and nothing else.`

const anchorSystemPrompt = `You write anchor text for internal links in blog posts. Respond with the anchor text only: 3 to 7 words, no quotes, no punctuation at the end, no generic phrases like "click here" or "read more".`

// ArticleSource resolves a URL to its stored article.
type ArticleSource interface {
	Article(ctx context.Context, url string) (store.Article, error)
}

// Generator produces link rationales through a chat provider.
type Generator struct {
	chat   provider.ChatProvider
	logger *log.Logger
}

func NewGenerator(chat provider.ChatProvider) *Generator {
	return &Generator{
		chat:   chat,
		logger: log.New(log.Writer(), "[RATIONALE] ", log.LstdFlags),
	}
}

// Annotate turns ranked candidates into suggestions with a reason and
// anchor text each. A candidate whose generation fails is kept in the
// output, marked incomplete, so the caller still sees the match.
func (g *Generator) Annotate(ctx context.Context, articles ArticleSource, source store.Article, candidates []ranker.Candidate) []suggest.Suggestion {
	suggestions := make([]suggest.Suggestion, 0, len(candidates))
	for _, cand := range candidates {
		s := suggest.Suggestion{
			FromPost:        source.URL,
			ToPost:          cand.URL,
			ToTitle:         cand.Title,
			Score:           cand.Score,
			SimilarityScore: suggest.FormatPercent(cand.Score),
		}

		target, err := articles.Article(ctx, cand.URL)
		if err != nil {
			g.logger.Printf("load %s: %v", cand.URL, err)
			s.Incomplete = true
			s.Error = fmt.Sprintf("load target post: %v", err)
			suggestions = append(suggestions, s)
			continue
		}

		reason, err := g.reason(ctx, source, target)
		if err != nil {
			g.logger.Printf("reason for %s -> %s: %v", source.URL, cand.URL, err)
			s.Incomplete = true
			s.Error = fmt.Sprintf("generate reason: %v", err)
			suggestions = append(suggestions, s)
			continue
		}
		s.Reason = reason

		anchor, err := g.anchorText(ctx, source, target)
		if err != nil {
			g.logger.Printf("anchor for %s -> %s: %v", source.URL, cand.URL, err)
			s.Incomplete = true
			s.Error = fmt.Sprintf("generate anchor text: %v", err)
			suggestions = append(suggestions, s)
			continue
		}
		s.AnchorText = anchor
		suggestions = append(suggestions, s)
	}
	return suggestions
}

func (g *Generator) reason(ctx context.Context, source, target store.Article) (string, error) {
	user := fmt.Sprintf(
		"Source post: %q\n%s\n\nTarget post: %q\n%s\n\nIn one sentence, explain why the source post should link to the target post.",
		source.Title, excerpt(source.Content),
		target.Title, excerpt(target.Content),
	)
	out, err := g.chat.Complete(ctx, reasonSystemPrompt, user)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("model returned an empty reason")
	}
	return out, nil
}

func (g *Generator) anchorText(ctx context.Context, source, target store.Article) (string, error) {
	user := fmt.Sprintf(
		"A post titled %q will link to a post titled %q.\nTarget post excerpt:\n%s\n\nSuggest the anchor text for this link.",
		source.Title, target.Title, excerpt(target.Content),
	)
	out, err := g.chat.Complete(ctx, anchorSystemPrompt, user)
	if err != nil {
		return "", err
	}
	anchor := cleanAnchor(out)
	if anchor == "" {
		return "", fmt.Errorf("model returned empty anchor text")
	}
	return anchor, nil
}

// cleanAnchor strips surrounding quotes and collapses whitespace.
// Models quote their answers often enough that this is worth doing
// unconditionally.
func cleanAnchor(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

func excerpt(content string) string {
	if len(content) > excerptChars {
		return content[:excerptChars]
	}
	return content
}
