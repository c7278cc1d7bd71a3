package chat

// DefaultSummaryInstruction asks for a condensed retrieval query.
const DefaultSummaryInstruction = "You are a helpful assistant. Summarize the following entire conversation " +
	"in one or two sentences, capturing the essential questions or requests."

// DefaultSystemPrompt is the answer instruction. {domain} and {context} are
// substituted by the composer.
const DefaultSystemPrompt = `You are a knowledgeable assistant for {domain}.
Below is relevant information retrieved from the document collection:

{context}

Using the retrieved context and your own general knowledge, answer the user's question.
When the material is tied to a grade level, say which one.
Keep answers clear and appropriate for the audience.
If the information is not in the context and you are unsure, say so honestly.`

// DefaultDomain names the corpus subject used in the system prompt.
const DefaultDomain = "K-12 education"
