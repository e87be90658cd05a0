package models

const (
	ContextSeparator = "\n\n"

	// Canonical retrieval queries used when the caller supplies no topic.
	DefaultSummaryQuery     = "overview main concepts key topics"
	DefaultDefinitionsQuery = "definitions terms concepts"

	// Sentinel texts returned when retrieval finds nothing. These are results, not errors.
	NoRelevantInformation = "I couldn't find relevant information in your study materials."
	NothingToSummarize    = "No content found to summarize."
	NoDefinitionsFound    = "No definitions found."
	NotAnswered           = "Not answered"

	// Context budgets in characters.
	SummaryContextLimit = 4000
	QuizContextLimit    = 3000
	QuizMaxChunks       = 8
	QuizMaxSources      = 5
	ExcerptLimit        = 200
)

var (
	// QAPromptTemplate takes the context then the question.
	QAPromptTemplate = `You are a helpful tutoring assistant. Answer the student's question using ONLY the context provided below.

Rules:
1. If the answer is in the context, provide a clear explanation
2. If the answer is NOT in the context, say "I don't have enough information from your materials to answer this."
3. Keep answers concise but complete
4. Cite the source when possible

Context:
%s

Question: %s

Answer:`

	// SummaryPromptTemplate takes the context then the summary style.
	SummaryPromptTemplate = `Summarize the following study material content.

Content:
%s

Create a %s summary:
- short: 2-3 sentences
- bullets: 5-7 bullet points
- detailed: comprehensive paragraph
- eli15: explain like I'm 15 years old

Summary:`

	// QuizPromptTemplate takes the question count, the difficulty, then the context.
	QuizPromptTemplate = `Generate %d multiple-choice questions from this content. Difficulty: %s

Content:
%s

IMPORTANT: Return ONLY valid JSON with no extra text. Use this exact format:

{
  "questions": [
    {
      "question": "What is X?",
      "options": {
        "A": "option 1",
        "B": "option 2",
        "C": "option 3",
        "D": "option 4"
      },
      "correct_answer": "A",
      "explanation": "Brief explanation"
    }
  ]
}

JSON:`

	// DefinitionsPromptTemplate takes the context.
	DefinitionsPromptTemplate = `Extract all key definitions and terms from this content.

Content:
%s

Format each as:
Term: [term name]
Definition: [clear definition]

List:`
)
