package server

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/clambin/github-bio-search/internal/search"
)

// renderResult formats a page of search results as a Slack message.
func renderResult(result search.Result, q search.Query, command string) string {
	if len(result.Users) == 0 {
		return NoUsersFound
	}
	first, last := search.Shown(result.Page, result.PerPage, result.TotalCount)

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "*%d users found* · showing %d-%d of %d\n", result.TotalCount, first, last, result.TotalCount)
	for _, user := range result.Users {
		b.WriteString(renderUser(user, q.Keyword))
	}
	if result.TotalPages > 1 {
		b.WriteString("Pages: " + renderPages(search.Pages(result.Page, result.TotalPages), result.Page))
		if result.Page < result.TotalPages {
			b.WriteString(" · next: `" + nextPageCommand(command, q, result.Page+1) + "`")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderUser(user search.User, keyword string) string {
	name := user.Name
	if name == "" {
		name = user.Login
	}
	fields := []string{"*<" + user.HTMLURL + "|" + escape(name) + ">* (@" + user.Login + ")"}
	if user.MostUsedLanguage != "" {
		fields = append(fields, escape(user.MostUsedLanguage))
	}
	if user.Partial {
		fields = append(fields, "_details unavailable_")
	} else {
		fields = append(fields,
			formatCount(user.Followers)+" followers",
			formatCount(user.PublicRepos)+" repos",
		)
	}
	if user.TotalStars != nil {
		fields = append(fields, "★ "+formatCount(*user.TotalStars))
	}
	if user.Location != "" {
		fields = append(fields, escape(user.Location))
	}
	line := "• " + strings.Join(fields, " · ") + "\n"
	if bio := strings.Join(strings.Fields(user.Bio), " "); bio != "" {
		line += ">" + highlight(bio, strings.TrimSpace(keyword)) + "\n"
	}
	return line
}

func renderPages(pages []search.PageLink, current int) string {
	parts := make([]string, len(pages))
	for i, page := range pages {
		switch {
		case page.Ellipsis:
			parts[i] = "…"
		case page.Page == current:
			parts[i] = "*" + strconv.Itoa(page.Page) + "*"
		default:
			parts[i] = strconv.Itoa(page.Page)
		}
	}
	return strings.Join(parts, " ")
}

func nextPageCommand(command string, q search.Query, page int) string {
	args := []string{command, strings.TrimSpace(q.Keyword)}
	if location := strings.TrimSpace(q.Location); location != "" {
		args = append(args, quoteArg("location:"+location))
	}
	if language := strings.TrimSpace(q.Language); language != "" {
		args = append(args, quoteArg("language:"+language))
	}
	if q.Sort != search.SortRelevance {
		args = append(args, "sort:"+string(q.Sort))
	}
	return strings.Join(append(args, "page:"+strconv.Itoa(page)), " ")
}

func quoteArg(arg string) string {
	if strings.ContainsAny(arg, " \t") {
		return `"` + arg + `"`
	}
	return arg
}

// formatCount shortens large counts: 1234 becomes 1.2K, 3456789 becomes 3.5M.
func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.Itoa(n)
	}
}

// highlight escapes text for Slack and emphasises each occurrence of keyword in it, ignoring case.
// Matching is done on the raw text, so a keyword never matches inside an escape sequence.
func highlight(text, keyword string) string {
	if keyword == "" || text == "" {
		return escape(text)
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(keyword))
	var b strings.Builder
	var last int
	for _, match := range re.FindAllStringIndex(text, -1) {
		b.WriteString(escape(text[last:match[0]]))
		b.WriteString("*" + escape(text[match[0]:match[1]]) + "*")
		last = match[1]
	}
	b.WriteString(escape(text[last:]))
	return b.String()
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return slackEscaper.Replace(s)
}
