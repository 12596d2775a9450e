package transform

import "fmt"

const (
	writerSystemPrompt = "You are an expert science and technology writer who creates engaging, SEO-optimized content."
	seoSystemPrompt    = "You are an SEO expert."
)

func bodyPrompt(title, content, sourceURL string) string {
	return fmt.Sprintf(`Rewrite the following science/technology news article in a human-like, engaging style.
Make it SEO-friendly with appropriate headings, subheadings, and keywords.
Include an introduction, main content with 3-5 paragraphs, and a conclusion.

Original Title: %s
Original Content: %s
Source URL: %s

Format the article with:
1. An engaging H1 title (different from the original but capturing the essence)
2. A compelling introduction
3. H2 subheadings for main sections
4. Bullet points where appropriate
5. A conclusion paragraph
6. Include relevant keywords naturally throughout the text
7. Add meta description for SEO

Return the article in HTML format ready for publishing.`, title, content, sourceURL)
}

func summaryPrompt(headline string) string {
	return "Generate a compelling meta description (under 160 characters) for this article about: " + headline
}
