package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/catalog"
)

var testSet = catalog.SelectorSet{
	Hosts:     []string{"shop.example"},
	Container: "div.card",
	Title:     ".title",
	Price:     ".price",
	Rating:    ".rating",
	URL:       "a.link",

	ProductTitle:  "h1.product-title",
	ProductPrice:  "span.product-price",
	ProductRating: "span.product-rating",
}

func containers(t *testing.T, html string) []*goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	var out []*goquery.Selection
	doc.Find(testSet.Container).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

func TestProduct(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected Record
	}{
		{
			name: "complete card",
			html: `<div class="card">
				<a class="link" href="/p/123"><span class="title">Wireless Mouse</span></a>
				<span class="price">$24.99</span>
				<span class="rating">4.5 out of 5</span>
			</div>`,
			expected: Record{
				Title:  "Wireless Mouse",
				Price:  "$24.99",
				Rating: "4.5 out of 5",
				URL:    "https://shop.example/p/123",
			},
		},
		{
			name: "missing rating uses sentinel",
			html: `<div class="card">
				<a class="link" href="/p/77"><span class="title">Desk Lamp</span></a>
				<span class="price">$9.50</span>
			</div>`,
			expected: Record{
				Title:  "Desk Lamp",
				Price:  "$9.50",
				Rating: RatingNotAvailable,
				URL:    "https://shop.example/p/77",
			},
		},
		{
			name: "title and rating only",
			html: `<div class="card">
				<span class="title">Out of Stock Keyboard</span>
				<span class="rating">4.1</span>
			</div>`,
			expected: Record{
				Title:  "Out of Stock Keyboard",
				Price:  "",
				Rating: "4.1",
			},
		},
		{
			name: "absolute url kept as is",
			html: `<div class="card">
				<a class="link" href="https://cdn.shop.example/p/9"><span class="title">Webcam</span></a>
				<span class="price">$59</span>
			</div>`,
			expected: Record{
				Title:  "Webcam",
				Price:  "$59",
				Rating: RatingNotAvailable,
				URL:    "https://cdn.shop.example/p/9",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := containers(t, tt.html)
			require.Len(t, cards, 1)

			rec := Product(cards[0], testSet, "https://shop.example/s?q=x")
			assert.Equal(t, tt.expected, rec)
		})
	}
}

func TestRecordUsable(t *testing.T) {
	assert.True(t, Record{Title: "Mouse"}.Usable())
	assert.True(t, Record{Price: "$5"}.Usable())
	assert.True(t, Record{Title: "Mouse", Price: "$5"}.Usable())
	assert.False(t, Record{Rating: "4.2", URL: "https://shop.example/p/1"}.Usable())
}

func TestDetailPage(t *testing.T) {
	html := `<html><body>
		<h1 class="product-title">Mechanical Keyboard</h1>
		<span class="product-price">₹4,999</span>
		<span class="product-rating">4.3</span>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	rec := DetailPage(doc, testSet, "https://shop.example/p/42")
	assert.Equal(t, Record{
		Title:  "Mechanical Keyboard",
		Price:  "₹4,999",
		Rating: "4.3",
		URL:    "https://shop.example/p/42",
	}, rec)
}

func TestDetailPageFallsBackToListingLocators(t *testing.T) {
	set := testSet
	set.ProductTitle = ""
	set.ProductPrice = ""
	set.ProductRating = ""

	html := `<html><body><div class="card">
		<span class="title">Monitor Stand</span>
		<span class="price">$35.00</span>
	</div></body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	rec := DetailPage(doc, set, "https://shop.example/p/7")
	assert.Equal(t, "Monitor Stand", rec.Title)
	assert.Equal(t, "$35.00", rec.Price)
	assert.Equal(t, RatingNotAvailable, rec.Rating)
}
