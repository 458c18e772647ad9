package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pricescout/pricescout/internal/store"
)

// Item is the flattened export shape of a tracked product.
type Item struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Site          string   `json:"site"`
	CurrentPrice  *float64 `json:"current_price"`
	PreviousPrice *float64 `json:"previous_price"`
	Rating        string   `json:"rating"`
	LastChecked   string   `json:"last_checked,omitempty"`
}

func toItems(products []store.TrackedProduct) []Item {
	items := make([]Item, 0, len(products))
	for _, p := range products {
		item := Item{
			Title:  p.Title,
			URL:    p.URL,
			Site:   p.Site,
			Rating: p.Rating,
		}
		if p.CurrentPrice.Valid {
			v := p.CurrentPrice.Float64
			item.CurrentPrice = &v
		}
		if p.PreviousPrice.Valid {
			v := p.PreviousPrice.Float64
			item.PreviousPrice = &v
		}
		if p.LastChecked.Valid {
			item.LastChecked = p.LastChecked.Time.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return items
}

// WriteCSV writes the products as CSV with a header row.
func WriteCSV(w io.Writer, products []store.TrackedProduct) error {
	writer := csv.NewWriter(w)

	header := []string{"title", "url", "site", "current_price", "previous_price", "rating", "last_checked"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, item := range toItems(products) {
		record := []string{
			item.Title,
			item.URL,
			item.Site,
			formatPrice(item.CurrentPrice),
			formatPrice(item.PreviousPrice),
			item.Rating,
			item.LastChecked,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// WriteJSON writes the products as a JSON array.
func WriteJSON(w io.Writer, products []store.TrackedProduct) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(toItems(products)); err != nil {
		return fmt.Errorf("encode json records: %w", err)
	}
	return nil
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
