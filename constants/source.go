package constants

// Source tells which extractor produced a record.
type Source string

const (
	SourceRules  Source = "rules"     // pattern extractor only
	SourceLLM    Source = "llm"       // language model only
	SourceMerged Source = "rules+llm" // rules, gaps filled by the model
)

// ScanStatus is the outcome of one file in a batch.
type ScanStatus string

const (
	ScanStatusOK      ScanStatus = "OK"
	ScanStatusEmpty   ScanStatus = "EMPTY" // scanned, no field found
	ScanStatusFailed  ScanStatus = "FAILED"
	ScanStatusSkipped ScanStatus = "SKIPPED"
)
