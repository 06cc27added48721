package models

// Record is one instruction/input/output triple of the dataset
type Record struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// Dataset holds the records of a run in the order they were produced
type Dataset struct {
	Records []Record
}

// NewDataset creates an empty dataset
func NewDataset() *Dataset {
	return &Dataset{
		Records: make([]Record, 0),
	}
}

// Add appends records to the dataset
func (d *Dataset) Add(records ...Record) {
	d.Records = append(d.Records, records...)
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Message is one role-tagged chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest is a chat completion request. The endpoint and API key
// belong to the client that sends it.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_completion_tokens,omitempty"`
}

// NewCompletionRequest builds a request with an optional system message followed by the user message
func NewCompletionRequest(model, systemPrompt, userPrompt string, temperature float64, maxTokens int) CompletionRequest {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: userPrompt})

	return CompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}
