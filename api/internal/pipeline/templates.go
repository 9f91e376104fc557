package pipeline

import "lexie-server/api/internal/types"

func tmpl(question, correct string, wrong ...string) types.QuizQuestion {
	return types.QuizQuestion{
		Question:    question,
		Options:     append([]string{correct}, wrong...),
		Correct:     correct,
		Explanation: "This is a general study skill for this subject.",
	}
}

// Шаблонные вопросы, которыми добивается тест до QuizFloor.
var quizTemplates = map[types.SubjectArea][]types.QuizQuestion{
	types.SubjectMathematics: {
		tmpl("What is a good first step when solving a math problem?", "Read the problem carefully and find what is asked", "Guess the answer", "Skip to the last line", "Write down any number"),
		tmpl("Why should you check your answer?", "To catch calculation mistakes", "To make the work longer", "Because the teacher says so", "It is not useful"),
		tmpl("What helps when a problem has many steps?", "Solving one step at a time", "Doing everything in your head", "Starting from the middle", "Ignoring the units"),
		tmpl("What should you do with the numbers given in the problem?", "Use them in your calculation", "Ignore them", "Replace them with your own", "Add them all together always"),
		tmpl("What can a drawing help you with in math?", "Seeing the problem more clearly", "Making the answer longer", "Avoiding calculations", "Nothing at all"),
	},
	types.SubjectScience: {
		tmpl("What is an observation in science?", "Something you notice using your senses or tools", "A guess without evidence", "A made-up story", "A rule nobody can test"),
		tmpl("What is a hypothesis?", "A testable explanation", "A proven law", "A type of measurement", "A laboratory tool"),
		tmpl("Why do scientists repeat experiments?", "To make sure the results are reliable", "To waste time", "To change the question", "Because the first try never counts"),
		tmpl("What should a fair test change?", "Only one thing at a time", "Everything at once", "Nothing at all", "Only the results"),
		tmpl("What do you call the information collected in an experiment?", "Data", "Opinion", "Theory", "Guess"),
	},
	types.SubjectLiterature: {
		tmpl("What is the main idea of a text?", "The most important point the author makes", "The first word", "The longest sentence", "The title of the book series"),
		tmpl("Who is the narrator of a story?", "The voice that tells the story", "The person who printed the book", "The reader", "The illustrator"),
		tmpl("What is the setting of a story?", "Where and when the story happens", "The main character's name", "The ending", "The number of chapters"),
		tmpl("What helps you understand a hard paragraph?", "Reading it again slowly", "Skipping it", "Reading only the last word", "Closing the book"),
		tmpl("What is a summary?", "A short retelling of the most important parts", "A copy of the whole text", "A list of new words only", "A drawing of the cover"),
	},
	types.SubjectHumanities: {
		tmpl("Why is it useful to know when an event happened?", "To understand what came before and after it", "It is never useful", "To make the story longer", "To forget it faster"),
		tmpl("What is a primary source?", "A document or object from the time being studied", "A modern textbook summary", "A guess about the past", "A movie made last year"),
		tmpl("What helps you remember key facts?", "Connecting them to causes and effects", "Reading them once quickly", "Ignoring dates", "Memorizing page numbers"),
		tmpl("What does it mean to compare two cultures?", "To look for similarities and differences", "To say one is better", "To list only one of them", "To ignore both"),
		tmpl("What is a good way to review this material?", "Explain the main ideas in your own words", "Copy the text word for word", "Read only the headings", "Skip the examples"),
	},
	types.SubjectOther: {
		tmpl("What is a good way to start studying new material?", "Read it through once to get the big picture", "Memorize the last page first", "Skip the headings", "Read only the pictures"),
		tmpl("What helps you remember what you studied?", "Reviewing it again after a short break", "Studying only once", "Reading as fast as possible", "Never testing yourself"),
		tmpl("What should you do when you do not understand a word?", "Look it up or ask for help", "Ignore the whole text", "Guess and move on always", "Stop studying"),
		tmpl("Why are headings useful in study notes?", "They show how the material is organized", "They make the notes longer", "They replace the content", "They are not useful"),
		tmpl("What is a good way to check your understanding?", "Explain the topic to someone else", "Read the title again", "Count the pages", "Close your notes"),
	},
}

func templatesFor(subject types.SubjectArea) []types.QuizQuestion {
	if t, ok := quizTemplates[subject]; ok {
		return t
	}
	return quizTemplates[types.SubjectOther]
}

var subjectLabels = map[types.SubjectArea]string{
	types.SubjectMathematics: "math",
	types.SubjectScience:     "science",
	types.SubjectLiterature:  "reading",
	types.SubjectHumanities:  "history and culture",
}

func placeholderBack(subject types.SubjectArea) string {
	label, ok := subjectLabels[subject]
	if !ok {
		label = "study"
	}
	return "Review this " + label + " concept in your notes and explain it in your own words."
}
