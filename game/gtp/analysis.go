package gtp

import (
	"fmt"
	"strconv"
	"strings"
)

// Analysis is the parsed result of one engine analysis reply.
type Analysis struct {
	Winrate   float64  `json:"winrate"`
	ScoreLead float64  `json:"scoreLead"`
	PV        []string `json:"pv"`
	Visits    int      `json:"visits"`
}

// ParseAnalysis extracts the best-candidate info line from an analysis
// reply of the form:
//
//	info move Q16 visits 100 winrate 0.5000 scoreLead 0.0 pv Q16 D4 ...
//
// Only the first info block is consumed; the engine lists candidates
// best-first.
func ParseAnalysis(reply string) (Analysis, error) {
	var line string
	for _, l := range strings.Split(reply, "\n") {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "="))
		if strings.HasPrefix(l, "info ") {
			line = l
			break
		}
	}
	if line == "" {
		return Analysis{}, fmt.Errorf("no info line in analysis reply")
	}

	fields := strings.Fields(line)
	var out Analysis
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "visits":
			if i+1 < len(fields) {
				out.Visits, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "winrate":
			if i+1 < len(fields) {
				out.Winrate, _ = strconv.ParseFloat(fields[i+1], 64)
				i++
			}
		case "scorelead", "scoreLead":
			if i+1 < len(fields) {
				out.ScoreLead, _ = strconv.ParseFloat(fields[i+1], 64)
				i++
			}
		case "pv":
			// pv runs to the end of the info block (or the next keyword
			// that cannot be a vertex).
			for j := i + 1; j < len(fields); j++ {
				if isKeyword(fields[j]) {
					break
				}
				out.PV = append(out.PV, fields[j])
			}
			i = len(fields)
		}
	}
	if len(out.PV) == 0 {
		return Analysis{}, fmt.Errorf("analysis reply carries no pv")
	}
	return out, nil
}

func isKeyword(s string) bool {
	switch s {
	case "info", "move", "visits", "winrate", "scorelead", "scoreLead", "pv", "utility", "order", "prior", "lcb":
		return true
	}
	return false
}
