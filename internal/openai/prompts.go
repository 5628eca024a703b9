package openai

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/supportiq/internal/compose"
)

const autoReplyPrompt = `You are a senior customer support agent.

Ticket metadata:
- Category: %s
- Priority: %s
- Sentiment: %s
- Risk: %s

Rules:
1. If sentiment is NEGATIVE, be empathetic and acknowledge the problem first. Otherwise keep a professional tone.
2. If risk is HIGH, do not finalize a resolution. Give next steps and mention that a specialist will follow up.
3. Use the knowledge base context when it is relevant. Never invent policies. If the context is not enough, answer cautiously.
4. Structure the reply as greeting, acknowledgement, clear solution steps and a short closing.

Never mention that you are an AI. Keep the reply concise.`

const agentDraftPrompt = `You are an expert support strategist helping a human agent.

Ticket metadata:
- Category: %s
- Priority: %s
- Sentiment: %s

Instructions:
1. Use the knowledge base context when it is relevant.
2. Read the whole conversation before drafting.
3. For HIGH or URGENT priority be precise and structured.
4. For BILLING make the financial details explicit. For ACCOUNT give step-by-step instructions.
5. If the conversation shows frustration, recommend an empathetic tone.

Return a structured draft reply with clear action steps. Do not mention AI.`

func generationRequest(in *compose.GenerationInput) ChatRequest {
	s := in.Signals

	var system string
	var user strings.Builder
	user.WriteString("Knowledge base context:\n")
	user.WriteString(in.Context)
	user.WriteString("\n\n")

	switch in.Mode {
	case compose.ModeAgentDraft:
		system = fmt.Sprintf(agentDraftPrompt, s.Category, s.Priority, s.Sentiment)
		fmt.Fprintf(&user, "Ticket description: %s\n\nConversation:\n%s\n\nWrite the best possible draft reply for the agent.", in.Description, in.Transcript)
	default:
		system = fmt.Sprintf(autoReplyPrompt, s.Category, s.Priority, s.Sentiment, s.Risk)
		fmt.Fprintf(&user, "Ticket description: %s\n\nWrite the final customer reply.", in.Description)
	}

	return ChatRequest{
		System:      system,
		User:        user.String(),
		Temperature: generateTemperature,
	}
}
