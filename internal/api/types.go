package api

// ScoreRequest selects a model and a sequence to score. The sequence is
// either pre-split Words or Text split on white space; Words wins when both
// are set. Unset policy fields fall back to the model's load-time policy.
type ScoreRequest struct {
	Model        string   `json:"model,omitempty"`
	Words        []string `json:"words,omitempty"`
	Text         string   `json:"text,omitempty"`
	Normalize    bool     `json:"normalize,omitempty"`
	DefaultScore *float32 `json:"default_score,omitempty"`
	Strict       *bool    `json:"strict,omitempty"`
	BOS          string   `json:"bos,omitempty"`
	Window       *int     `json:"window,omitempty"`
	EOS          *bool    `json:"eos,omitempty"`
}

type ScoreResponse struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	Model  string `json:"model"`
	// Score is the log10 probability of the final word, or the default score.
	Score float32 `json:"score"`
	// Total is the summed log10 probability of the whole sequence.
	Total      float64     `json:"total"`
	Words      []WordScore `json:"words"`
	OOV        int         `json:"oov"`
	Perplexity float64     `json:"perplexity,omitempty"`
}

type WordScore struct {
	Word        string  `json:"word"`
	ID          uint32  `json:"id"`
	Score       float32 `json:"score"`
	NgramLength int     `json:"ngram_length"`
	OOV         bool    `json:"oov,omitempty"`
}

type BatchScoreRequest struct {
	Model        string     `json:"model,omitempty"`
	Sequences    [][]string `json:"sequences"`
	DefaultScore *float32   `json:"default_score,omitempty"`
	Strict       *bool      `json:"strict,omitempty"`
	BOS          string     `json:"bos,omitempty"`
	Window       *int       `json:"window,omitempty"`
}

type BatchScoreResponse struct {
	ID     string    `json:"id"`
	Object string    `json:"object"`
	Model  string    `json:"model"`
	Scores []float32 `json:"scores"`
}

type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

type ModelObject struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
