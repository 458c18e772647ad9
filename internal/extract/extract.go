package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricescout/pricescout/internal/catalog"
)

// RatingNotAvailable marks a rating the container simply did not carry. It is
// deliberately distinct from the empty string so downstream consumers can tell
// "no rating on this site" apart from "selector matched an empty element".
const RatingNotAvailable = "N/A"

// Record is one extracted product. Fields other than Title and Price are
// optional; URL is empty when the container carried no usable link, and two
// records refer to the same product only when their URLs match.
type Record struct {
	Title  string `json:"title"`
	Price  string `json:"price"`
	Rating string `json:"rating"`
	URL    string `json:"url,omitempty"`
}

// Usable reports whether the record is worth keeping. A record missing both
// title and price carries no information and is dropped by callers.
func (r Record) Usable() bool {
	return r.Title != "" || r.Price != ""
}

// Product extracts one record from a search-result container. Every field is
// looked up independently: a selector that does not match inside the container
// yields that field's sentinel and extraction continues.
func Product(container *goquery.Selection, set catalog.SelectorSet, baseURL string) Record {
	rec := Record{
		Title:  text(container, set.Title),
		Price:  text(container, set.Price),
		Rating: RatingNotAvailable,
	}

	if set.Rating != "" {
		if rating := text(container, set.Rating); rating != "" {
			rec.Rating = rating
		}
	}

	if set.URL != "" {
		if href, ok := container.Find(set.URL).First().Attr("href"); ok {
			rec.URL = absoluteURL(baseURL, href)
		}
	}

	return rec
}

// DetailPage extracts one record from a product detail document using the
// site's product_* locators, falling back to the listing locators for sites
// whose detail markup matches their card markup.
func DetailPage(doc *goquery.Document, set catalog.SelectorSet, pageURL string) Record {
	titleSel := set.ProductTitle
	if titleSel == "" {
		titleSel = set.Title
	}
	priceSel := set.ProductPrice
	if priceSel == "" {
		priceSel = set.Price
	}
	ratingSel := set.ProductRating
	if ratingSel == "" {
		ratingSel = set.Rating
	}

	rec := Record{
		Title:  text(doc.Selection, titleSel),
		Price:  text(doc.Selection, priceSel),
		Rating: RatingNotAvailable,
		URL:    pageURL,
	}
	if ratingSel != "" {
		if rating := text(doc.Selection, ratingSel); rating != "" {
			rec.Rating = rating
		}
	}
	return rec
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func absoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	parsedHref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if parsedHref.IsAbs() {
		return href
	}
	parsedBase, err := url.Parse(base)
	if err != nil {
		return href
	}
	return parsedBase.ResolveReference(parsedHref).String()
}
