package verify

import (
	"strings"
	"time"

	"github.com/digitorus/pdf"
)

// parseDocumentInfo reads the Info dictionary.
func parseDocumentInfo(v pdf.Value, info *DocumentInfo) {
	info.Author = v.Key("Author").Text()
	info.Creator = v.Key("Creator").Text()
	info.Producer = v.Key("Producer").Text()
	info.Subject = v.Key("Subject").Text()
	info.Title = v.Key("Title").Text()

	if k := v.Key("Keywords"); !k.IsNull() {
		info.Keywords = parseKeywords(k.Text())
	}
	if t, err := parseDate(v.Key("CreationDate").Text()); err == nil {
		info.CreationDate = t
	}
	if t, err := parseDate(v.Key("ModDate").Text()); err == nil {
		info.ModDate = t
	}
}

// parseDate parses PDF formatted dates.
func parseDate(v string) (time.Time, error) {
	// (D:YYYYMMDDHHmmSSOHH'mm')
	//
	// O is the relationship of local time to Universal Time, one of +, -
	// or Z. HH' and mm' are the absolute offset in hours and minutes.
	v = strings.TrimPrefix(v, "D:")
	v = strings.ReplaceAll(v, "'", "")

	if len(v) <= 14 || v[14] == 'Z' {
		layout := "20060102150405"[:min(len(v), 14)]
		return time.ParseInLocation(layout, v[:min(len(v), 14)], time.UTC)
	}
	return time.Parse("20060102150405-0700", v)
}

// parseKeywords splits keywords on commas or semicolons, falling back to
// spaces.
func parseKeywords(value string) []string {
	sep := " "
	switch {
	case strings.Contains(value, ","):
		sep = ","
	case strings.Contains(value, ";"):
		sep = ";"
	}

	var keywords []string
	for _, k := range strings.Split(value, sep) {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}
