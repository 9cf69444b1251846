package osm

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/transitmap/model"
)

var weekdays = map[string]time.Weekday{
	"mo": time.Monday,
	"tu": time.Tuesday,
	"we": time.Wednesday,
	"th": time.Thursday,
	"fr": time.Friday,
	"sa": time.Saturday,
	"su": time.Sunday,
}

var (
	daySelector = regexp.MustCompile(`^[A-Za-z]{2}(-[A-Za-z]{2})?(,[A-Za-z]{2}(-[A-Za-z]{2})?)*$`)
	timeSpan    = regexp.MustCompile(`^(\d{1,2}):(\d{2})-(\d{1,2}):(\d{2})$`)
	allDays     = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
)

// ParseOpeningHours delegates to the package parser.
func (c *Client) ParseOpeningHours(raw string) (model.ParsedHours, error) {
	return ParseOpeningHours(raw)
}

// ParseOpeningHours parses an OSM opening_hours value.
func ParseOpeningHours(raw string) (model.ParsedHours, error) {
	out := model.ParsedHours{Raw: raw}
	value := strings.TrimSpace(raw)
	if value == "" {
		return out, fmt.Errorf("opening hours: empty value")
	}
	if strings.EqualFold(value, "24/7") {
		out.AlwaysOpen = true
		return out, nil
	}

	for _, part := range strings.Split(strings.ReplaceAll(value, "||", ";"), ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rule, skip, err := parseRule(part)
		if err != nil {
			return model.ParsedHours{Raw: raw}, fmt.Errorf("opening hours %q: %w", raw, err)
		}
		if !skip {
			out.Rules = append(out.Rules, rule)
		}
	}
	if len(out.Rules) == 0 {
		return model.ParsedHours{Raw: raw}, fmt.Errorf("opening hours %q: no weekday rules", raw)
	}
	return out, nil
}

// parseRule parses one ";"-separated rule. skip is set for holiday-only rules.
func parseRule(rule string) (model.HoursRule, bool, error) {
	var r model.HoursRule
	selector, rest := rule, ""
	if i := strings.IndexByte(rule, ' '); i >= 0 {
		selector, rest = rule[:i], strings.TrimSpace(rule[i+1:])
	}

	if daySelector.MatchString(selector) {
		days, holidayOnly, err := parseDays(selector)
		if err != nil {
			return r, false, err
		}
		if holidayOnly {
			return r, true, nil
		}
		r.Days = days
	} else {
		r.Days = append([]time.Weekday(nil), allDays...)
		rest = rule
	}

	switch strings.ToLower(rest) {
	case "off", "closed":
		r.Closed = true
		return r, false, nil
	case "", "24/7", "00:00-24:00":
		// a day selector without times means open all day
		r.Spans = []model.TimeSpan{{Start: 0, End: 24 * 60}}
		return r, false, nil
	}

	for _, s := range strings.Split(rest, ",") {
		span, err := parseSpan(strings.TrimSpace(s))
		if err != nil {
			return r, false, err
		}
		r.Spans = append(r.Spans, span)
	}
	return r, false, nil
}

func parseDays(selector string) ([]time.Weekday, bool, error) {
	var days []time.Weekday
	holidays := 0
	items := strings.Split(selector, ",")
	for _, item := range items {
		lo := strings.ToLower(item)
		if lo == "ph" || lo == "sh" {
			holidays++
			continue
		}
		from, to, isRange := strings.Cut(lo, "-")
		start, ok := weekdays[from]
		if !ok {
			return nil, false, fmt.Errorf("unknown day %q", item)
		}
		if !isRange {
			days = append(days, start)
			continue
		}
		end, ok := weekdays[to]
		if !ok {
			return nil, false, fmt.Errorf("unknown day %q", item)
		}
		for d := start; ; d = (d + 1) % 7 {
			days = append(days, d)
			if d == end {
				break
			}
		}
	}
	return days, holidays == len(items), nil
}

func parseSpan(s string) (model.TimeSpan, error) {
	m := timeSpan.FindStringSubmatch(s)
	if m == nil {
		return model.TimeSpan{}, fmt.Errorf("unsupported time span %q", s)
	}
	start, err := minutes(m[1], m[2])
	if err != nil {
		return model.TimeSpan{}, err
	}
	end, err := minutes(m[3], m[4])
	if err != nil {
		return model.TimeSpan{}, err
	}
	if end <= start {
		end += 24 * 60
	}
	return model.TimeSpan{Start: start, End: end}, nil
}

func minutes(h, m string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(h+":"+m, "%d:%d", &hh, &mm); err != nil {
		return 0, err
	}
	if hh > 24 || mm > 59 || (hh == 24 && mm != 0) {
		return 0, fmt.Errorf("invalid time %s:%s", h, m)
	}
	return hh*60 + mm, nil
}
