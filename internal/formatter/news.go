package formatter

import (
	"bytes"
	"fmt"
	"time"

	"github.com/desertthunder/mdash/internal/shared"
	"github.com/desertthunder/mdash/internal/tasks"
)

// NewsToText renders articles as styled text, followed by a warning per failed source.
func NewsToText(result *tasks.NewsResult, p *Palette) ([]byte, error) {
	p = palette(p)
	var buf bytes.Buffer

	buf.WriteString(p.title.Render("Music News") + "\n")
	if len(result.Articles) == 0 {
		buf.WriteString(p.warn.Render("No news available") + "\n")
	}
	for _, a := range result.Articles {
		buf.WriteString(fmt.Sprintf("%s %s\n", p.ok.Render(a.Title), p.help.Render("("+a.SourceName+", "+a.PublishedAt.Format(time.DateOnly)+")")))
		buf.WriteString("  " + a.URL + "\n")
	}

	for _, e := range result.Errors {
		buf.WriteString(p.err.Render(fmt.Sprintf("%s unavailable: %s", e.Source, e.Message)) + "\n")
	}

	return buf.Bytes(), nil
}

// NewsToMarkdown renders articles as a Markdown list of links.
func NewsToMarkdown(result *tasks.NewsResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Music News\n\n")
	for _, a := range result.Articles {
		buf.WriteString(fmt.Sprintf("- [%s](%s) - %s, %s\n", a.Title, a.URL, a.SourceName, a.PublishedAt.Format(time.DateOnly)))
	}
	if len(result.Errors) > 0 {
		buf.WriteString("\n")
		for _, e := range result.Errors {
			buf.WriteString(fmt.Sprintf("> %s unavailable: %s\n", e.Source, e.Message))
		}
	}

	return buf.Bytes(), nil
}

// NewsToCSV converts articles to CSV with columns: ID, Title, Source, Published, URL
func NewsToCSV(result *tasks.NewsResult) ([]byte, error) {
	rows := make([][]string, 0, len(result.Articles))
	for _, a := range result.Articles {
		rows = append(rows, []string{a.ID, a.Title, a.SourceName, a.PublishedAt.Format(time.RFC3339), a.URL})
	}
	return writeCSV([]string{"ID", "Title", "Source", "Published", "URL"}, rows)
}

// RenderNews renders a news result in the given format.
func RenderNews(result *tasks.NewsResult, format Format, p *Palette) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(result, true)
	case FormatCSV:
		return NewsToCSV(result)
	case FormatMarkdown:
		return NewsToMarkdown(result)
	default:
		return NewsToText(result, p)
	}
}
