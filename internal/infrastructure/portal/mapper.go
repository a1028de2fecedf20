package portal

import (
	"net/url"
	"path"
	"strings"

	"github.com/gocolly/colly/v2"
	"github.com/vendedor360/backend/internal/domain"
)

// MapOpportunity converts a listing element into an Opportunity.
// It returns false when the element carries neither an id nor a link.
func MapOpportunity(e *colly.HTMLElement, profile Profile) (domain.Opportunity, bool) {
	opp := domain.Opportunity{
		Portal:  profile.Name,
		RawText: collapseSpaces(e.Text),
	}

	if profile.ItemLinkSelector != "" {
		if href := e.ChildAttr(profile.ItemLinkSelector, "href"); href != "" {
			opp.URL = e.Request.AbsoluteURL(href)
		}
	}

	if profile.ItemIDAttr != "" {
		opp.ID = strings.TrimSpace(e.Attr(profile.ItemIDAttr))
	}
	if opp.ID == "" {
		opp.ID = idFromURL(opp.URL)
	}
	if opp.ID == "" && opp.URL == "" {
		return domain.Opportunity{}, false
	}

	if profile.ItemTitleSelector != "" {
		opp.Title = collapseSpaces(e.ChildText(profile.ItemTitleSelector))
	}
	if opp.Title == "" && profile.ItemLinkSelector != "" {
		opp.Title = collapseSpaces(e.ChildText(profile.ItemLinkSelector))
	}

	if profile.ItemLineSelector != "" {
		e.ForEach(profile.ItemLineSelector, func(_ int, line *colly.HTMLElement) {
			if text := collapseSpaces(line.Text); text != "" {
				opp.Items = append(opp.Items, text)
			}
		})
	}

	return opp, true
}

// idFromURL uses the last path segment of a tender link as its id
func idFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(strings.TrimRight(u.Path, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
