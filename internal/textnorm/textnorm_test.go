package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBoilerplate = []string{
	"how many years of experience do you have with",
	"how many years of work experience do you have with",
	"do you have experience with",
	"please enter",
}

func TestNormalizeStripsBoilerplate(t *testing.T) {
	t.Parallel()

	n := New(testBoilerplate)

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "experience lead-in",
			input:  "How many years of experience do you have with Python?",
			expect: "python",
		},
		{
			name:   "work experience lead-in",
			input:  "How many years of WORK experience do you have with Kubernetes",
			expect: "kubernet",
		},
		{
			name:   "lead-in only at start",
			input:  "Python: how many years of experience do you have with it",
			expect: "python how mani year of experi do you have with it",
		},
		{
			name:   "repeated lead-in",
			input:  "Please enter: please enter your salary",
			expect: "your salari",
		},
		{
			name:   "only boilerplate keeps tokens",
			input:  "Do you have experience with",
			expect: "do you have experi with",
		},
		{
			name:   "stems words",
			input:  "Working remotely",
			expect: "work remot",
		},
		{
			name:   "folds accents",
			input:  "Café résumé",
			expect: "cafe resum",
		},
		{
			name:   "keeps language suffixes",
			input:  "How many years of experience do you have with C#?",
			expect: "c#",
		},
		{
			name:   "empty",
			input:  "  ?! ",
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, n.Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	n := New(testBoilerplate)
	inputs := []string{
		"How many years of experience do you have with Python?",
		"Are you legally authorized to work in this country?",
		"Do you require sponsorship to work in this country?",
		"Are you willing to relocate to Austin, TX?",
		"Doing you have experience with generalizations",
		"do you have experience with do you have experience with",
		"Conditional relational operationalization",
		"What is your expected salary (USD)?",
		"Пожалуйста, укажите опыт",
		"C/C++ or C#, a+b",
		"",
	}

	for _, input := range inputs {
		once := n.Normalize(input)
		assert.Equal(t, once, n.Normalize(once), "input %q", input)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	t.Parallel()

	a := New(testBoilerplate)
	b := New(append([]string{"please enter"}, testBoilerplate...))

	question := "How many years of experience do you have with Amazon Web Services?"
	require.Equal(t, a.Normalize(question), b.Normalize(question))
	require.Equal(t, a.Normalize(question), a.Normalize(question))
}

func TestPhraseDoesNotStrip(t *testing.T) {
	t.Parallel()

	n := New([]string{"machine"})
	assert.Equal(t, "machin learn", n.Phrase("Machine Learning"))
	assert.Equal(t, "learn", n.Normalize("Machine Learning"))
}

func TestContainsPhrase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		canonical string
		phrase    string
		expect    bool
	}{
		{canonical: "python django", phrase: "python", expect: true},
		{canonical: "python django", phrase: "django", expect: true},
		{canonical: "machin learn engin", phrase: "machin learn", expect: true},
		{canonical: "javascript", phrase: "java", expect: false},
		{canonical: "python", phrase: "", expect: false},
		{canonical: "", phrase: "python", expect: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, ContainsPhrase(tt.canonical, tt.phrase), "%q in %q", tt.phrase, tt.canonical)
	}
}

func TestTokenizeLanguageNames(t *testing.T) {
	t.Parallel()

	n := New(nil)

	tests := []struct {
		input  string
		phrase string
		words  string
	}{
		{input: "C++", phrase: "c++", words: "c++"},
		{input: "C#", phrase: "c#", words: "c#"},
		{input: "C", phrase: "c", words: "c"},
		{input: "C/C++ and C#.", phrase: "c c++ and c#", words: "c c++ and c#"},
		{input: "Class C", phrase: "class c", words: "class c"},
		{input: "a+b = 3", phrase: "a b 3", words: "a b 3"},
		{input: "+ # ++", phrase: "", words: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.phrase, n.Phrase(tt.input), tt.input)
		assert.Equal(t, tt.words, n.Words(tt.input), tt.input)
	}

	assert.Equal(t, "excellent communication", n.Words("Excellent communication"))
	assert.NotEqual(t, n.Phrase("C++"), n.Phrase("C#"))
	assert.False(t, ContainsPhrase(n.Phrase("Do you hold a Class C driver's license?"), n.Phrase("C++")))
}
