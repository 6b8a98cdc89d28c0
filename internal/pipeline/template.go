package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// PromptVersion identifies the wording of promptText. Bump it whenever the
// text changes so logged answers can be traced to the prompt that made them.
const PromptVersion = "v1"

// promptText is the answer prompt. {context} and {question} are substituted.
const promptText = `You are an assistant for question-answering tasks about LangChain.
Use the following pieces of retrieved context to answer the question.
If you don't know the answer, just say that you don't know.
Keep the answer concise and helpful.

Context:
{context}

Question: {question}

Answer:`

// Template renders the answer prompt.
type Template struct {
	tpl prompt.ChatTemplate
}

// NewTemplate builds the v1 answer template.
func NewTemplate() *Template {
	return &Template{
		tpl: prompt.FromMessages(schema.FString, schema.UserMessage(promptText)),
	}
}

// Render substitutes passageContext and question into the template and
// returns the single user message to send to the model.
func (t *Template) Render(ctx context.Context, passageContext, question string) (*schema.Message, error) {
	msgs, err := t.tpl.Format(ctx, map[string]any{
		"context":  passageContext,
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: render prompt %s: %w", PromptVersion, err)
	}
	if len(msgs) != 1 {
		return nil, fmt.Errorf("pipeline: render prompt %s: expected 1 message, got %d", PromptVersion, len(msgs))
	}
	return msgs[0], nil
}
