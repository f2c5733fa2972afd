package progress

import (
	log "github.com/sirupsen/logrus"
)

// Notifier receives fire-and-forget announcements about gamification
// events. How (or whether) they reach the user is the host app's
// concern; the tracker only decides that and what to announce.
type Notifier interface {
	NotifyXPGain(userID string, amount int, reason string)
	NotifyLevelUp(userID string, level int)
	NotifyStreakMilestone(userID string, days int)
	NotifyWeeklyGoalReached(userID string, goal int)
	NotifyAchievementUnlocked(userID string, name string)
}

var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes announcements to the service log. The default sink
// when no real presentation layer is attached.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) NotifyXPGain(userID string, amount int, reason string) {
	log.Infof("[%s] +%d XP: %s", userID, amount, reason)
}

func (n *LogNotifier) NotifyLevelUp(userID string, level int) {
	log.Infof("[%s] reached level %d", userID, level)
}

func (n *LogNotifier) NotifyStreakMilestone(userID string, days int) {
	log.Infof("[%s] %d day streak", userID, days)
}

func (n *LogNotifier) NotifyWeeklyGoalReached(userID string, goal int) {
	log.Infof("[%s] weekly goal of %d workouts reached", userID, goal)
}

func (n *LogNotifier) NotifyAchievementUnlocked(userID string, name string) {
	log.Infof("[%s] achievement unlocked: %s", userID, name)
}
