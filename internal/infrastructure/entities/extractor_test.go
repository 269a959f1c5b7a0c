package entities

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

func TestExtractInvoiceAmountAndDate(t *testing.T) {
	ex := New()
	got, err := ex.Extract(context.Background(), "Invoice #123, due $450 on 2024-01-15")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(got.Amounts) != 1 {
		t.Fatalf("amounts = %+v, want one entry", got.Amounts)
	}
	if got.Amounts[0].Value != 450 || got.Amounts[0].Currency != "USD" {
		t.Fatalf("amount = %+v, want 450 USD", got.Amounts[0])
	}

	if len(got.Dates) != 1 {
		t.Fatalf("dates = %+v, want one entry", got.Dates)
	}
	if got.Dates[0].ISO != "2024-01-15" {
		t.Fatalf("date iso = %q, want 2024-01-15", got.Dates[0].ISO)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	ex := New()
	text := "Payment of $1,250.50 due March 3, 2024. Contact billing@acme.com or (415) 555-0123."

	first, err := ex.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	second, err := ex.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(first.Amounts) != len(second.Amounts) || len(first.Dates) != len(second.Dates) {
		t.Fatalf("runs differ: %+v vs %+v", first, second)
	}
	if first.Amounts[0].Value != 1250.50 {
		t.Fatalf("amount = %v, want 1250.50", first.Amounts[0].Value)
	}
	if first.Dates[0].ISO != "2024-03-03" {
		t.Fatalf("date iso = %q, want 2024-03-03", first.Dates[0].ISO)
	}
	if len(first.Emails) != 1 || first.Emails[0] != "billing@acme.com" {
		t.Fatalf("emails = %v", first.Emails)
	}
	if len(first.Phones) != 1 {
		t.Fatalf("phones = %v", first.Phones)
	}
}

func TestExtractCurrencySymbols(t *testing.T) {
	ex := New()
	got, err := ex.Extract(context.Background(), "Totals: $100, €200.50 and £3,000. Wire EUR 45.99 too.")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	byCurrency := map[string]float64{}
	for _, a := range got.Amounts {
		byCurrency[a.Currency] = a.Value
	}
	if byCurrency["USD"] != 100 {
		t.Fatalf("USD = %v, want 100", byCurrency["USD"])
	}
	if byCurrency["GBP"] != 3000 {
		t.Fatalf("GBP = %v, want 3000", byCurrency["GBP"])
	}
	if byCurrency["EUR"] != 200.50 && byCurrency["EUR"] != 45.99 {
		t.Fatalf("EUR missing: %+v", got.Amounts)
	}
}

func TestExtractDateFormats(t *testing.T) {
	ex := New()
	got, err := ex.Extract(context.Background(),
		"Signed 2023-06-01, effective 7/15/2023, expires December 31, 2024, renewed 5 March 2025.")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := map[string]bool{
		"2023-06-01": false,
		"2023-07-15": false,
		"2024-12-31": false,
		"2025-03-05": false,
	}
	for _, d := range got.Dates {
		if _, ok := want[d.ISO]; ok {
			want[d.ISO] = true
		}
	}
	for iso, found := range want {
		if !found {
			t.Fatalf("date %s not extracted: %+v", iso, got.Dates)
		}
	}
}

func TestExtractContractParties(t *testing.T) {
	ex := New()
	got, err := ex.Extract(context.Background(),
		"This agreement is between Acme Holdings LLC and Mr. John Smith, effective today. Notices go to Widget Corp.")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	byName := map[string]domain.PartyEntity{}
	for _, p := range got.Parties {
		byName[p.Name] = p
	}

	first, ok := byName["Acme Holdings LLC"]
	if !ok || first.Role != "first party" || first.Type != domain.PartyOrganization {
		t.Fatalf("first party wrong: %+v", got.Parties)
	}
	second, ok := byName["Mr. John Smith"]
	if !ok || second.Role != "second party" {
		t.Fatalf("second party wrong: %+v", got.Parties)
	}
}

func TestExtractContextKeepsRuneBoundary(t *testing.T) {
	ex := New()
	// Multibyte padding positions the context window edge mid-rune.
	text := strings.Repeat("€", 20) + "$450 paid in full"
	got, err := ex.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got.Amounts) != 1 {
		t.Fatalf("amounts = %+v, want one entry", got.Amounts)
	}
	if !utf8.ValidString(got.Amounts[0].Context) {
		t.Fatalf("context is not valid utf-8: %q", got.Amounts[0].Context)
	}
}

func TestExtractEmptyTextYieldsEmptyEntities(t *testing.T) {
	ex := New()
	got, err := ex.Extract(context.Background(), "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got.Dates)+len(got.Amounts)+len(got.Parties)+len(got.Emails)+len(got.Phones)+len(got.Addresses) != 0 {
		t.Fatalf("expected no entities, got %+v", got)
	}
}
