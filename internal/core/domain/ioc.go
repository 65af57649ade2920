package domain

import (
	"sort"
	"time"
)

type IOCType string

const (
	IPAddress IOCType = "ip"
	Domain    IOCType = "domain"
	URL       IOCType = "url"
)

// IOC is one indicator as reported by one feed.
type IOC struct {
	Value        string    // the reported URL, host or IP
	Type         IOCType   // url, domain or ip
	Source       string    // feed name (abusech-urlhaus, openphish, ...)
	ThreatType   string    // feed classification (phishing, malware_download, ...)
	Tags         []string  // feed tags
	FirstSeen    time.Time // when the feed first saw it
	DateIngested time.Time // when we fetched it
}

// Sighting merges every report of the same URL across feeds.
type Sighting struct {
	URL         string
	Sources     []string
	ThreatTypes []string
	Tags        []string
	FirstSeen   time.Time
}

// SourceCount is the number of distinct feeds that reported the URL.
func (s Sighting) SourceCount() int { return len(s.Sources) }

// AggregateSightings groups URL indicators by normalized value. Sightings are
// returned in order of first appearance; the first raw spelling of a URL is
// kept as its value. Non-URL indicators are skipped.
func AggregateSightings(iocs []IOC) []Sighting {
	index := make(map[string]int)
	var sightings []Sighting

	for _, ioc := range iocs {
		if ioc.Type != URL || ioc.Value == "" {
			continue
		}
		key := NormalizeIOCValue(ioc.Value, URL)

		i, ok := index[key]
		if !ok {
			i = len(sightings)
			index[key] = i
			sightings = append(sightings, Sighting{URL: ioc.Value, FirstSeen: ioc.FirstSeen})
		}

		s := &sightings[i]
		s.Sources = appendUnique(s.Sources, ioc.Source)
		s.ThreatTypes = appendUnique(s.ThreatTypes, ioc.ThreatType)
		for _, tag := range ioc.Tags {
			s.Tags = appendUnique(s.Tags, tag)
		}
		if !ioc.FirstSeen.IsZero() && (s.FirstSeen.IsZero() || ioc.FirstSeen.Before(s.FirstSeen)) {
			s.FirstSeen = ioc.FirstSeen
		}
	}

	for i := range sightings {
		sort.Strings(sightings[i].Sources)
	}
	return sightings
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
