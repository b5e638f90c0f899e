package gtp

import "fmt"

// Override is one engine config override passed as
// "-override-config key=value" on the engine command line.
type Override struct {
	Key   string
	Value string
}

// LevelOverrides maps a difficulty tier (1..5) to engine parameters.
// Lower tiers trade strength for variety: smaller search budgets,
// hotter move-selection temperatures, and no resignation so beginners
// get to finish their games. Unknown levels fall back to tier 3.
func LevelOverrides(level int) []Override {
	type tier struct {
		visits       int
		maxTime      float64
		rootTemp     float64
		chosenEarly  float64
		chosenHalf   int
		allowResign  bool
		resignThresh float64
	}
	var t tier
	switch level {
	case 1:
		t = tier{80, 0.35, 1.6, 0.95, 30, false, 0}
	case 2:
		t = tier{220, 0.55, 1.1, 0.8, 26, false, 0}
	case 4:
		t = tier{2200, 2.2, 0.25, 0.35, 15, true, -0.93}
	case 5:
		t = tier{3000, 2.5, 0.25, 0.35, 15, true, -0.93}
	default:
		t = tier{650, 1.1, 0.6, 0.6, 19, true, -0.97}
	}

	out := []Override{
		{"maxVisits", fmt.Sprintf("%d", t.visits)},
		{"maxTime", fmt.Sprintf("%.2f", t.maxTime)},
		{"rootPolicyTemperature", fmt.Sprintf("%.2f", t.rootTemp)},
		{"chosenMoveTemperatureEarly", fmt.Sprintf("%.2f", t.chosenEarly)},
		{"chosenMoveTemperatureHalflife", fmt.Sprintf("%d", t.chosenHalf)},
		{"allowResignation", fmt.Sprintf("%t", t.allowResign)},
	}
	if t.allowResign {
		out = append(out, Override{"resignThreshold", fmt.Sprintf("%.2f", t.resignThresh)})
	}
	return out
}

// BuildArgs assembles the engine command line: gtp mode, model and
// config paths, level overrides, and the rule set.
func BuildArgs(modelPath, configPath string, level int, rules string) []string {
	args := []string{"gtp", "-model", modelPath, "-config", configPath}
	for _, ov := range LevelOverrides(level) {
		args = append(args, "-override-config", ov.Key+"="+ov.Value)
	}
	if rules == "" {
		rules = "chinese"
	}
	args = append(args, "-override-config", "rules="+rules)
	return args
}
