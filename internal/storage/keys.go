package storage

// Keys shared by the hub and the game pages
const (
	KeyStudentID      = "studentId"
	KeyCompletedGames = "completedGames"
	KeyCVReturnURL    = "cvReturnUrl"
	KeyDebugMode      = "debugMode"
)

// ProgressKey is where a student's progress map lives
func ProgressKey(studentID string) string {
	return "progress_" + studentID
}

// AttemptsKey is where the launches of one game by one student are recorded
func AttemptsKey(studentID, gameID string) string {
	return "attempts_" + studentID + "_" + gameID
}
