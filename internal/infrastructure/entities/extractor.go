// Package entities pulls structured entities out of extracted text with
// deterministic rules. Arbitration reviewers compare these fields across
// documents, so the extraction must be reproducible run to run; that rules
// out a model-backed implementation here.
package entities

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

const contextRadius = 40

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?)?(?:\(\d{3}\)[ .\-]?|\b\d{3}[ .\-])\d{3}[ .\-]\d{4}\b`)

	amountSymbolRe = regexp.MustCompile(`([$€£])\s?(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)
	amountCodeRe   = regexp.MustCompile(`\b(USD|EUR|GBP|CAD|AUD)\s?(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)

	isoDateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	slashDateRe = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	monthDayRe  = regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\.? \d{1,2},? \d{4}\b`)
	dayMonthRe  = regexp.MustCompile(`\b\d{1,2} (?:January|February|March|April|May|June|July|August|September|October|November|December) \d{4}\b`)

	organizationRe = regexp.MustCompile(`\b(?:[A-Z][A-Za-z0-9&'.\-]{0,24} ){1,4}(?:Inc|LLC|Ltd|LLP|Corp|Corporation|Company|GmbH)\.?`)
	personTitleRe  = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.? [A-Z][a-z]+(?: [A-Z][a-z]+)?`)

	// Party names may start with an honorific; matching it explicitly keeps
	// the lazy tail from stopping at the title's period.
	partyNameFrag = `(?:(?:Mr|Mrs|Ms|Dr)\.? )?[A-Z][A-Za-z&'\- ]{0,40}?`
	betweenRe     = regexp.MustCompile(`(?i)between (` + partyNameFrag + `) and (` + partyNameFrag + `)(?:[,.;\n]|$)`)

	addressRe = regexp.MustCompile(`\b\d{1,5} [A-Z][A-Za-z ]+ (?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Suite)\.?(?:,? ?[A-Za-z ]+)?(?:,? ?[A-Z]{2} ?\d{5})?`)
)

var currencyBySymbol = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

func (e *Extractor) Extract(_ context.Context, text string) (domain.ExtractedEntities, error) {
	out := domain.ExtractedEntities{
		Dates:     e.dates(text),
		Amounts:   e.amounts(text),
		Parties:   e.parties(text),
		Addresses: dedup(addressRe.FindAllString(text, -1)),
		Emails:    dedup(emailRe.FindAllString(text, -1)),
		Phones:    dedup(phoneRe.FindAllString(text, -1)),
	}
	return out, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"January. 2, 2006",
	"2 January 2006",
}

func (e *Extractor) dates(text string) []domain.DateEntity {
	var dates []domain.DateEntity
	seen := map[string]struct{}{}

	for _, re := range []*regexp.Regexp{isoDateRe, slashDateRe, monthDayRe, dayMonthRe} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			raw := text[loc[0]:loc[1]]
			iso, ok := normalizeDate(raw)
			if !ok {
				continue
			}
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			dates = append(dates, domain.DateEntity{
				Raw:     raw,
				ISO:     iso,
				Context: surrounding(text, loc[0], loc[1]),
			})
		}
	}
	return dates
}

// normalizeDate returns the ISO form of a matched date string. Slash dates
// are read month-first.
func normalizeDate(raw string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func (e *Extractor) amounts(text string) []domain.AmountEntity {
	var amounts []domain.AmountEntity
	seen := map[string]struct{}{}

	collect := func(re *regexp.Regexp, currencyOf func(string) string) {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			raw := text[loc[0]:loc[1]]
			if _, dup := seen[raw]; dup {
				continue
			}
			unit := text[loc[2]:loc[3]]
			number := strings.ReplaceAll(text[loc[4]:loc[5]], ",", "")
			value, err := strconv.ParseFloat(number, 64)
			if err != nil {
				continue
			}
			seen[raw] = struct{}{}
			amounts = append(amounts, domain.AmountEntity{
				Value:    value,
				Currency: currencyOf(unit),
				Raw:      raw,
				Context:  surrounding(text, loc[0], loc[1]),
			})
		}
	}

	collect(amountSymbolRe, func(sym string) string {
		if code, ok := currencyBySymbol[sym]; ok {
			return code
		}
		return "USD"
	})
	collect(amountCodeRe, func(code string) string { return code })
	return amounts
}

func (e *Extractor) parties(text string) []domain.PartyEntity {
	var parties []domain.PartyEntity
	seen := map[string]struct{}{}

	add := func(name string, kind domain.PartyType, role string) {
		name = strings.Trim(name, " .,")
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		parties = append(parties, domain.PartyEntity{Name: name, Type: kind, Role: role})
	}

	// "between A and B" names the two sides of an agreement.
	if m := betweenRe.FindStringSubmatch(text); m != nil {
		add(m[1], classifyParty(m[1]), "first party")
		add(m[2], classifyParty(m[2]), "second party")
	}
	for _, name := range organizationRe.FindAllString(text, -1) {
		add(name, domain.PartyOrganization, "")
	}
	for _, name := range personTitleRe.FindAllString(text, -1) {
		add(name, domain.PartyPerson, "")
	}
	return parties
}

func classifyParty(name string) domain.PartyType {
	if organizationRe.MatchString(name) {
		return domain.PartyOrganization
	}
	if personTitleRe.MatchString(name) {
		return domain.PartyPerson
	}
	return domain.PartyUnknown
}

// surrounding returns the context window around a match, widened to rune
// boundaries so multibyte characters on either edge stay intact.
func surrounding(text string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	for from < len(text) && !utf8.RuneStart(text[from]) {
		from++
	}
	to := end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.TrimSpace(strings.ReplaceAll(text[from:to], "\n", " "))
}

func dedup(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
