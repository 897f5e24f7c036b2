package ocr

import "regexp"

var (
	reCodeRun    = regexp.MustCompile(`\b\d{13}\b`)
	reMRZFiller  = regexp.MustCompile(`[A-Z]<<[A-Z]`)
	reSeriesNo   = regexp.MustCompile(`\b[A-Z]{2}\s*\d{6}\b`)
	reCardLabels = regexp.MustCompile(`(?i)\b(?:nume|prenume|cetatenie|cetățenie|domiciliu|valabilitate|nationalit|last name|first name)`)
	reDateRange  = regexp.MustCompile(`\d{2}\.\d{2}\.\d{2,4}\s*-\s*\d{2}\.\d{2}\.\d{4}`)
)

// heuristicConfidence scores how much the text looks like an identity card:
// each artifact found (code run, MRZ line, series number, captions, validity
// range) raises the score.
func heuristicConfidence(txt string) float32 {
	score := float32(0.2) // base
	if reCodeRun.MatchString(txt) {
		score += 0.2
	}
	if reMRZFiller.MatchString(txt) {
		score += 0.15
	}
	if reSeriesNo.MatchString(txt) {
		score += 0.1
	}
	if reCardLabels.MatchString(txt) {
		score += 0.15
	}
	if reDateRange.MatchString(txt) {
		score += 0.1
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blendConfidence weights the engine's own confidence higher when present.
func blendConfidence(engine, heuristic float32) float32 {
	conf := heuristic
	if engine > 0 {
		conf = 0.7*engine + 0.3*heuristic
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
