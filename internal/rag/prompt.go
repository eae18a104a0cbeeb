package rag

import (
	"fmt"
	"strings"

	"rag-chatbot/internal/models"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

func newPromptTemplate() prompts.ChatPromptTemplate {
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(models.SystemPromptTemplate, []string{"context"}),
		prompts.NewHumanMessagePromptTemplate(models.QuestionPromptTemplate, []string{"question"}),
	})
}

// formatDocs joins the retrieved chunk texts into the prompt context.
func formatDocs(chunks []models.RetrievedChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return strings.Join(texts, models.ContextSeparator)
}

func formatSources(chunks []models.RetrievedChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "%s page %d chunk %d (similarity %.3f)\n", c.SourceFilename, c.PageNumber, c.ChunkID, c.Similarity)
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildMessages(tpl prompts.ChatPromptTemplate, context, question string) ([]llms.MessageContent, error) {
	msgs, err := tpl.FormatMessages(map[string]any{
		"context":  context,
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format prompt: %w", err)
	}

	content := make([]llms.MessageContent, len(msgs))
	for i, m := range msgs {
		content[i] = llms.TextParts(m.GetType(), m.GetContent())
	}
	return content, nil
}
