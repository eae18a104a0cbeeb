package models

import "fmt"

const (
	ContextSeparator = "\n\n"

	// RefusalMessage must be returned verbatim when the context does not hold the answer.
	RefusalMessage = "I apologize, but I can only answer questions based on the information in the provided document, and I could not find the answer there."

	NotInitializedMessage = "Cannot generate response. The RAG system is not initialized. Please check your API key and ensure the PDF file is present."

	ResponseErrorFormat = "An error occurred while generating the response: %v"

	welcomeFormat = "👋 Hello! I'm your RAG Chatbot. I can answer questions based on the content of the **%s** file. Ask me anything about it!"
)

var (
	SystemPromptTemplate = `You are an AI assistant specialized in answering questions based *only* on the provided context from the PDF document.

Instructions:
1. Analyze the user's question and the provided context.
2. If the context contains the answer, provide a clear, concise, and direct answer.
3. **CRITICAL:** If the context does not contain the answer, you MUST respond with: "` + RefusalMessage + `"
4. Do not use any external knowledge.

Context from PDF:
{{.context}}`

	QuestionPromptTemplate = `{{.question}}`
)

// WelcomeMessage is the first assistant entry of every conversation.
func WelcomeMessage(documentName string) string {
	return fmt.Sprintf(welcomeFormat, documentName)
}

// ResponseError is the assistant entry recorded when a query fails.
func ResponseError(err error) string {
	return fmt.Sprintf(ResponseErrorFormat, err)
}
