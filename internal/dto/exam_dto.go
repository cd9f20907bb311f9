package dto

// ExamAnalysisResponse is the payload returned by the analyze endpoint.
type ExamAnalysisResponse struct {
	Grade int `json:"grade"`
}

// TranscriptResponse carries the text produced by speech-to-text.
type TranscriptResponse struct {
	Transcript string `json:"transcript"`
}

// SpeechBatchRequest lists the exam questions to synthesise.
type SpeechBatchRequest struct {
	Questions []string `json:"questions" validate:"required,min=1,dive,required"`
}

// CheatingAssessment is the structured verdict of the anticheat analysis.
// Field defaults match what the analysis model is instructed to emit when it
// finds nothing: not cheating, low confidence, recommendation "clear".
type CheatingAssessment struct {
	IsCheating      bool     `json:"is_cheating"`
	Confidence      string   `json:"confidence"`
	Summary         string   `json:"summary"`
	IndicatorsFound []string `json:"indicators_found"`
	Recommendation  string   `json:"recommendation"`
	Notes           string   `json:"notes"`
}
