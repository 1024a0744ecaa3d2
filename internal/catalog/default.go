package catalog

import "cvquest/internal/models"

var standardSections = []Section{
	{ID: "game-intro", Title: "Introduction", Type: "intro"},
	{ID: "lesson-1", Title: "Lesson 1", Type: "lesson"},
	{ID: "quiz-1", Title: "Quiz 1", Type: "quiz"},
	{ID: "lesson-2", Title: "Lesson 2", Type: "lesson"},
	{ID: "practice-1", Title: "Practice", Type: "practice"},
	{ID: "lesson-3", Title: "Lesson 3", Type: "lesson"},
	{ID: "quiz-2", Title: "Quiz 2", Type: "quiz"},
	{ID: "challenge", Title: "Challenge", Type: "challenge"},
	{ID: "game-complete", Title: "Completion", Type: "complete"},
}

// DefaultGames is the built-in game list
func DefaultGames() []GameDefinition {
	return []GameDefinition{
		{
			ID:            "internet-basics",
			Title:         "The Internet Basics",
			Icon:          "🌐",
			Path:          "games/internet-basics/",
			Prerequisites: []string{},
			Skills:        []string{"internet", "networking", "problem-solving"},
			Difficulty:    "beginner",
			Achievements: []models.Achievement{
				{SkillID: "internet", Points: 20, Level: 1, Description: "Mastered internet basics concepts"},
				{SkillID: "networking", Points: 15, Level: 1, Description: "Learned HTTP protocol basics"},
				{SkillID: "problem-solving", Points: 10, Level: 1, Description: "Completed network troubleshooting challenge"},
			},
			Sections: []Section{
				{ID: "game-intro", Title: "Introduction", Type: "intro"},
				{ID: "lesson-1", Title: "What is the Internet?", Type: "lesson"},
				{ID: "quiz-1", Title: "Internet Quiz", Type: "quiz"},
				{ID: "lesson-2", Title: "How HTTP Works", Type: "lesson"},
				{ID: "quiz-2", Title: "HTTP Quiz", Type: "quiz"},
				{ID: "lesson-3", Title: "How Browsers Work", Type: "lesson"},
				{ID: "interactive-demo", Title: "HTTP Simulation", Type: "interactive"},
				{ID: "challenge", Title: "Network Troubleshooting", Type: "challenge"},
				{ID: "game-complete", Title: "Completion", Type: "complete"},
			},
			QuizCount:        2,
			RequiredSections: []string{"quiz-1", "quiz-2", "challenge"},
			MinimumScore:     80,
		},
		{
			ID:            "html-fundamentals",
			Title:         "HTML Fundamentals",
			Icon:          "📄",
			Path:          "games/html-fundamentals/",
			Prerequisites: []string{"internet-basics"},
			Skills:        []string{"html", "web-standards"},
			Difficulty:    "beginner",
			Achievements: []models.Achievement{
				{SkillID: "html", Points: 25, Level: 1, Description: "Mastered HTML basics and structure"},
				{SkillID: "web-standards", Points: 15, Level: 1, Description: "Learned HTML best practices"},
				{SkillID: "problem-solving", Points: 10, Level: 1, Description: "Completed HTML webpage challenge"},
			},
			Sections: []Section{
				{ID: "game-intro", Title: "Introduction", Type: "intro"},
				{ID: "lesson-1", Title: "HTML Basics", Type: "lesson"},
				{ID: "quiz-1", Title: "HTML Structure Quiz", Type: "quiz"},
				{ID: "lesson-2", Title: "Common HTML Elements", Type: "lesson"},
				{ID: "practice-1", Title: "Creating HTML Structure", Type: "practice"},
				{ID: "lesson-3", Title: "HTML Attributes", Type: "lesson"},
				{ID: "quiz-2", Title: "Attributes Quiz", Type: "quiz"},
				{ID: "challenge", Title: "Build a Web Page", Type: "challenge"},
				{ID: "game-complete", Title: "Completion", Type: "complete"},
			},
			QuizCount:        2,
			RequiredSections: []string{"quiz-1", "practice-1", "quiz-2", "challenge"},
			MinimumScore:     80,
		},
		{
			ID:            "css-styling",
			Title:         "CSS Styling",
			Icon:          "🎨",
			Path:          "games/css-styling/",
			Prerequisites: []string{"internet-basics", "html-fundamentals"},
			Skills:        []string{"css", "web-standards"},
			Difficulty:    "beginner",
			Achievements: []models.Achievement{
				{SkillID: "css", Points: 25, Level: 1, Description: "Mastered CSS basics and styling"},
				{SkillID: "web-standards", Points: 15, Level: 1, Description: "Learned CSS layout principles"},
				{SkillID: "problem-solving", Points: 10, Level: 1, Description: "Completed CSS styling challenge"},
			},
			Sections: []Section{
				{ID: "game-intro", Title: "Introduction", Type: "intro"},
				{ID: "lesson-1", Title: "CSS Basics", Type: "lesson"},
				{ID: "quiz-1", Title: "CSS Fundamentals Quiz", Type: "quiz"},
				{ID: "lesson-2", Title: "Selectors and Properties", Type: "lesson"},
				{ID: "practice-1", Title: "Basic Styling", Type: "practice"},
				{ID: "lesson-3", Title: "Box Model and Layout", Type: "lesson"},
				{ID: "quiz-2", Title: "Box Model Quiz", Type: "quiz"},
				{ID: "challenge", Title: "Style a Web Page", Type: "challenge"},
				{ID: "game-complete", Title: "Completion", Type: "complete"},
			},
			QuizCount:        2,
			RequiredSections: []string{"quiz-1", "practice-1", "quiz-2", "challenge"},
			MinimumScore:     80,
		},
		{
			ID:            "javascript-basics",
			Title:         "JavaScript Basics",
			Icon:          "📜",
			Path:          "games/javascript-basics/",
			Prerequisites: []string{"html-fundamentals"},
			Skills:        []string{"js", "problem-solving"},
			Difficulty:    "intermediate",
			Sections:      standardSections,
			QuizCount:     2,
		},
		{
			ID:            "dom-manipulation",
			Title:         "DOM Manipulation",
			Icon:          "🖱️",
			Path:          "games/dom-manipulation/",
			Prerequisites: []string{"javascript-basics"},
			Skills:        []string{"js", "html"},
			Difficulty:    "intermediate",
			Sections:      standardSections,
			QuizCount:     2,
		},
		{
			ID:            "web-apis",
			Title:         "Web APIs",
			Icon:          "⚙️",
			Path:          "games/web-apis/",
			Prerequisites: []string{"javascript-basics", "dom-manipulation"},
			Skills:        []string{"js", "web-standards", "networking"},
			Difficulty:    "intermediate",
			Sections:      standardSections,
			QuizCount:     2,
		},
	}
}

// DefaultPaths is the built-in path list. The advanced path names games that
// do not exist yet, so it can never be finished.
func DefaultPaths() []PathDefinition {
	return []PathDefinition{
		{
			ID:    "beginner",
			Title: "Beginner Path",
			Games: []string{"internet-basics", "html-fundamentals", "css-styling"},
			Color: "#3b82f6",
		},
		{
			ID:               "intermediate",
			Title:            "Intermediate Path",
			Games:            []string{"javascript-basics", "dom-manipulation", "web-apis"},
			PrerequisitePath: "beginner",
			Color:            "#f59e0b",
		},
		{
			ID:               "advanced",
			Title:            "Advanced Path",
			Games:            []string{"modern-frameworks", "backend-basics", "full-stack"},
			PrerequisitePath: "intermediate",
			Color:            "#f43f5e",
		},
	}
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := New(DefaultGames(), DefaultPaths())
	if err != nil {
		panic("catalog: invalid built-in catalog: " + err.Error())
	}
	return c
}
