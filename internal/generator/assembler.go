package generator

import (
	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
)

// MaxLogLength is the number of characters of model text shown in logs
const MaxLogLength = 200

// Assemble pairs inputs with outputs by index, storing the system prompt as
// the instruction. Extra elements of the longer slice are ignored.
func Assemble(inputs, outputs []string, systemPrompt string) []models.Record {
	n := min(len(inputs), len(outputs))
	records := make([]models.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, models.Record{
			Instruction: systemPrompt,
			Input:       inputs[i],
			Output:      outputs[i],
		})
	}
	return records
}

// Completed keeps the input/output pairs whose output is not empty
func Completed(inputs, outputs []string) ([]string, []string) {
	n := min(len(inputs), len(outputs))
	keptInputs := make([]string, 0, n)
	keptOutputs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if outputs[i] == "" {
			continue
		}
		keptInputs = append(keptInputs, inputs[i])
		keptOutputs = append(keptOutputs, outputs[i])
	}
	return keptInputs, keptOutputs
}

// truncate shortens text to MaxLogLength runes, appending "..." when cut
func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxLogLength {
		return text
	}
	return string(runes[:MaxLogLength]) + "..."
}
