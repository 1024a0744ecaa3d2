package models

// Achievement is a skill award declared in a game's static configuration
type Achievement struct {
	SkillID     string `json:"skillId" yaml:"skill_id"`
	Points      int    `json:"points" yaml:"points"`
	Level       int    `json:"level" yaml:"level"`
	Description string `json:"description" yaml:"description"`
}

// AchievementKey is the signed payload carried inside an encoded key.
// Field order is the canonical serialization order and must not change.
type AchievementKey struct {
	GameID            string        `json:"gameId"`
	StudentID         string        `json:"studentId"`
	Timestamp         int64         `json:"timestamp"`
	RenderFingerprint string        `json:"ipHash"`
	DeviceFingerprint string        `json:"deviceId"`
	CompletionTime    int64         `json:"completionTime"`
	Achievements      []Achievement `json:"achievements"`
	Signature         string        `json:"signature"`
}

// TotalPoints sums the points of every achievement in the key
func (k *AchievementKey) TotalPoints() int {
	total := 0
	for _, a := range k.Achievements {
		total += a.Points
	}
	return total
}
