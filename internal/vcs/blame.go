package vcs

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const zeroHash = "0000000000000000000000000000000000000000"

// BlameEntry attributes one line of a file to the commit that last touched it.
type BlameEntry struct {
	Line       int    `json:"line"`
	Author     string `json:"author"`
	Timestamp  int64  `json:"timestamp"` // commit time, ms since epoch
	CommitHash string `json:"commitHash"`
}

// AgeInDays returns whole days between the entry's commit time and now.
func (e BlameEntry) AgeInDays(now time.Time) int {
	return AgeInDays(time.UnixMilli(e.Timestamp), now)
}

// AgeInDays returns whole days from t to now, never negative.
func AgeInDays(t, now time.Time) int {
	days := int(now.Sub(t).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// BlameIndex maps line numbers to entries.
func BlameIndex(entries []BlameEntry) map[int]BlameEntry {
	idx := make(map[int]BlameEntry, len(entries))
	for _, e := range entries {
		idx[e.Line] = e
	}
	return idx
}

var hunkHeader = regexp.MustCompile(`^([0-9a-f]{40}) \d+ (\d+)`)

type commitMeta struct {
	author    string
	timestamp int64
	hasAuthor bool
	hasTime   bool
}

// blameParser holds the rolling state for one porcelain stream.
type blameParser struct {
	seen    map[string]commitMeta
	entries []BlameEntry

	hash    string
	line    int
	meta    commitMeta
	emitted bool
}

// ParseBlamePorcelain parses the output of `git blame --porcelain`.
// Uncommitted lines are skipped.
func ParseBlamePorcelain(r io.Reader) ([]BlameEntry, error) {
	p := &blameParser{seen: make(map[string]commitMeta)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		p.feed(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p.entries, nil
}

func (p *blameParser) feed(line string) {
	if strings.HasPrefix(line, "\t") {
		return
	}
	if m := hunkHeader.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[2])
		p.hash = m[1]
		p.line = n
		p.meta = p.seen[p.hash]
		p.emitted = false
		p.tryEmit()
		return
	}
	if p.hash == "" {
		return
	}
	switch {
	case strings.HasPrefix(line, "author "):
		p.meta.author = strings.TrimPrefix(line, "author ")
		p.meta.hasAuthor = true
	case strings.HasPrefix(line, "author-time "):
		secs, err := strconv.ParseInt(strings.TrimPrefix(line, "author-time "), 10, 64)
		if err != nil {
			return
		}
		p.meta.timestamp = secs * 1000
		p.meta.hasTime = true
	default:
		return
	}
	p.tryEmit()
}

func (p *blameParser) tryEmit() {
	if p.emitted || !p.meta.hasAuthor || !p.meta.hasTime {
		return
	}
	p.emitted = true
	p.seen[p.hash] = p.meta
	if p.hash == zeroHash {
		return
	}
	p.entries = append(p.entries, BlameEntry{
		Line:       p.line,
		Author:     p.meta.author,
		Timestamp:  p.meta.timestamp,
		CommitHash: p.hash,
	})
}
