package pack

import (
	"regexp"
	"strconv"
	"strings"
)

// Stats is the summary repomix writes into its output.
type Stats struct {
	TotalFiles  int        `json:"total_files"`
	TotalTokens int        `json:"total_tokens"`
	TotalChars  int        `json:"total_chars"`
	TopFiles    []FileStat `json:"top_files"`
}

// FileStat is one entry of the "top files by token count" list.
type FileStat struct {
	Name       string  `json:"name"`
	Tokens     int     `json:"tokens"`
	Chars      int     `json:"chars"`
	Percentage float64 `json:"percentage"`
}

var (
	totalFilesRegex  = regexp.MustCompile(`Total Files: ([\d,]+) files`)
	totalTokensRegex = regexp.MustCompile(`Total Tokens: ([\d,]+) tokens`)
	totalCharsRegex  = regexp.MustCompile(`Total Chars: ([\d,]+) chars`)
	topFileRegex     = regexp.MustCompile(`(\d+)\.\s+(.+?)\s+\(([\d,]+)\s+tokens,\s+([\d,]+)\s+chars,\s+([\d.]+)%\)`)
)

// ParseStats extracts summary statistics from packer output. Missing fields
// are zero.
func ParseStats(content string) Stats {
	stats := Stats{
		TotalFiles:  matchInt(totalFilesRegex, content),
		TotalTokens: matchInt(totalTokensRegex, content),
		TotalChars:  matchInt(totalCharsRegex, content),
		TopFiles:    []FileStat{},
	}

	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "tokens") {
			continue
		}
		m := topFileRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pct, _ := strconv.ParseFloat(m[5], 64)
		stats.TopFiles = append(stats.TopFiles, FileStat{
			Name:       m[2],
			Tokens:     atoi(m[3]),
			Chars:      atoi(m[4]),
			Percentage: pct,
		})
	}
	return stats
}

// Stats reads a packed file and parses its summary.
func (p *Packager) Stats(path string) (*Stats, error) {
	content, err := p.Read(path)
	if err != nil {
		return nil, err
	}
	stats := ParseStats(content)
	return &stats, nil
}

func matchInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	return atoi(m[1])
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	return n
}
