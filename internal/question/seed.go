package question

import "github.com/google/uuid"

// seedNamespace scopes deterministic question ids so reseeding is idempotent.
var seedNamespace = uuid.MustParse("6f1c9a52-3d7e-4b8a-9c41-2e5d8f0a7b13")

// StableID derives a question id from its prompt.
func StableID(prompt string) string {
	return uuid.NewSHA1(seedNamespace, []byte(prompt)).String()
}

func q(difficulty int, category, prompt string, correct int, choices ...string) Question {
	return Question{
		ID:           StableID(prompt),
		Difficulty:   difficulty,
		Prompt:       prompt,
		Choices:      choices,
		CorrectIndex: correct,
		Category:     category,
	}
}

// Seed returns the built-in question set, three per difficulty from 1 to 10.
func Seed() []Question {
	return []Question{
		q(1, "general", "What color is the sky on a clear day?", 1, "Green", "Blue", "Red", "Yellow"),
		q(1, "general", "How many legs does a dog have?", 1, "2", "4", "6", "8"),
		q(1, "math", "What is 1 + 1?", 1, "1", "2", "3", "4"),

		q(2, "geography", "What is the capital of France?", 2, "London", "Berlin", "Paris", "Madrid"),
		q(2, "general", "How many days are in a week?", 2, "5", "6", "7", "8"),
		q(2, "math", "What is 5 x 3?", 2, "8", "12", "15", "18"),

		q(3, "science", "What planet is known as the Red Planet?", 1, "Venus", "Mars", "Jupiter", "Saturn"),
		q(3, "geography", "What is the largest ocean on Earth?", 3, "Atlantic", "Indian", "Arctic", "Pacific"),
		q(3, "math", "What is 12 x 8?", 1, "86", "96", "106", "116"),

		q(4, "art", "Who painted the Mona Lisa?", 1, "Van Gogh", "Da Vinci", "Picasso", "Rembrandt"),
		q(4, "science", "What is the chemical symbol for gold?", 2, "Go", "Gd", "Au", "Ag"),
		q(4, "history", "What year did World War II end?", 2, "1943", "1944", "1945", "1946"),

		q(5, "math", "What is the square root of 144?", 2, "10", "11", "12", "13"),
		q(5, "science", "Which element has atomic number 6?", 1, "Nitrogen", "Carbon", "Oxygen", "Boron"),
		q(5, "technology", "In which year was the first iPhone released?", 2, "2005", "2006", "2007", "2008"),

		q(6, "math", "What is the derivative of x²?", 1, "x", "2x", "x²", "2x²"),
		q(6, "literature", "Who wrote '1984'?", 1, "Aldous Huxley", "George Orwell", "Ray Bradbury", "H.G. Wells"),
		q(6, "geography", "What is the capital of Australia?", 2, "Sydney", "Melbourne", "Canberra", "Perth"),

		q(7, "biology", "What is the powerhouse of the cell?", 2, "Nucleus", "Ribosome", "Mitochondria", "Golgi body"),
		q(7, "history", "In what year did the Berlin Wall fall?", 2, "1987", "1988", "1989", "1990"),
		q(7, "computer science", "What is the Big O complexity of binary search?", 1, "O(n)", "O(log n)", "O(n²)", "O(1)"),

		q(8, "math", "What is the integral of 1/x?", 1, "x", "ln(x)", "1/x²", "e^x"),
		q(8, "computer science", "Which protocol operates at the transport layer?", 2, "HTTP", "IP", "TCP", "Ethernet"),
		q(8, "physics", "What is Planck's constant approximately equal to?", 0, "6.63 × 10⁻³⁴ J·s", "3.00 × 10⁸ m/s", "9.81 m/s²", "1.38 × 10⁻²³ J/K"),

		q(9, "computer science", "What is the time complexity of Dijkstra's algorithm with a binary heap?", 1, "O(V²)", "O(E log V)", "O(V + E)", "O(E²)"),
		q(9, "physics", "In quantum mechanics, what does the Heisenberg Uncertainty Principle state?", 1, "Energy is conserved", "Position and momentum cannot both be precisely known", "Light is both wave and particle", "Electrons orbit in fixed shells"),
		q(9, "computer science", "What is the CAP theorem about?", 1, "CPU Architecture", "Distributed Systems", "Cryptography", "Compilers"),

		q(10, "computer science", "What is the amortized time complexity of inserting into a dynamic array?", 0, "O(1)", "O(n)", "O(log n)", "O(n log n)"),
		q(10, "computer science", "In the Byzantine Generals Problem, what fraction of generals must be honest for consensus?", 1, "More than 1/2", "More than 2/3", "More than 3/4", "All of them"),
		q(10, "computer science", "What is the Curry-Howard correspondence?", 1, "A sorting algorithm", "Relation between proofs and programs", "A network protocol", "A database normalization form"),
	}
}
