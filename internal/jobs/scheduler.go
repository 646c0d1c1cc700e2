// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночной сброс повторяющихся задач
// и огоньков, ежечасные напоминания о серии.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/ledger"
	"serotonyl.ru/heartpoints/internal/metrics"
)

// TaskReconciler сбрасывает отметки повторяющихся задач.
type TaskReconciler interface {
	ReconcileAll(ctx context.Context, now time.Time) (int, error)
}

// StreakKeeper проверяет огоньки всех пользователей.
type StreakKeeper interface {
	SweepStreaks(ctx context.Context, now time.Time) (int, error)
	StreakReminders(ctx context.Context, now time.Time, threshold int) ([]ledger.Reminder, error)
}

// ReminderClaimer отмечает, что сегодня напоминание уже отправлено.
// Возвращает чат пользователя и false, если слать не нужно.
type ReminderClaimer interface {
	ClaimReminder(ctx context.Context, userID int64, day time.Time) (int64, bool, error)
}

// Notifier доставляет напоминание пользователю.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Options — расписание и параметры напоминаний.
type Options struct {
	DailySpec         string
	ReminderSpec      string
	ReminderThreshold int
	ReminderHour      int
	RemindersEnabled  bool
	// Metrics может быть nil
	Metrics *metrics.Metrics
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	clock    common.Clock
	opts     Options
	tasks    TaskReconciler
	streaks  StreakKeeper
	claimer  ReminderClaimer
	notifier Notifier
}

// NewScheduler создаёт планировщик в часовом поясе loc.
// notifier может быть nil: тогда напоминания не отправляются.
func NewScheduler(
	loc *time.Location,
	clock common.Clock,
	opts Options,
	tasks TaskReconciler,
	streaks StreakKeeper,
	claimer ReminderClaimer,
	notifier Notifier,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		clock:    clock,
		opts:     opts,
		tasks:    tasks,
		streaks:  streaks,
		claimer:  claimer,
		notifier: notifier,
	}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.opts.DailySpec, func() {
		log.Info("[CRON] Ночной сброс задач и огоньков")
		start := time.Now()
		err := s.RunDaily(ctx)
		s.opts.Metrics.JobRun("daily_reset", time.Since(start), err)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка ночного сброса")
		}
	}); err != nil {
		return fmt.Errorf("некорректное расписание CRON_DAILY_RESET: %w", err)
	}

	if s.opts.RemindersEnabled && s.notifier != nil {
		if _, err := s.cron.AddFunc(s.opts.ReminderSpec, func() {
			log.Debug("[CRON] Проверка напоминаний")
			start := time.Now()
			sent, err := s.RunReminders(ctx)
			s.opts.Metrics.JobRun("streak_reminders", time.Since(start), err)
			s.opts.Metrics.RemindersSent(sent)
			if err != nil {
				log.WithError(err).Error("[CRON] Ошибка напоминаний")
			}
		}); err != nil {
			return fmt.Errorf("некорректное расписание CRON_REMINDERS: %w", err)
		}
	}

	s.cron.Start()
	log.WithField("location", s.cron.Location().String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// RunDaily сбрасывает повторяющиеся задачи и прерванные огоньки.
// Ошибка одного шага не отменяет другой.
func (s *Scheduler) RunDaily(ctx context.Context) error {
	now := s.clock.Now()

	reset, taskErr := s.tasks.ReconcileAll(ctx, now)
	broken, streakErr := s.streaks.SweepStreaks(ctx, now)

	log.WithFields(log.Fields{
		"tasks_reset":    reset,
		"streaks_broken": broken,
	}).Info("[CRON] Ночной сброс выполнен")

	if taskErr != nil {
		return fmt.Errorf("сброс задач: %w", taskErr)
	}
	if streakErr != nil {
		return fmt.Errorf("сброс огоньков: %w", streakErr)
	}
	return nil
}

// RunReminders отправляет напоминания тем, у кого огонёк может погаснуть сегодня.
// До ReminderHour ничего не делает. Возвращает число отправленных напоминаний.
func (s *Scheduler) RunReminders(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}

	now := s.clock.Now()
	if now.Hour() < s.opts.ReminderHour {
		return 0, nil
	}

	reminders, err := s.streaks.StreakReminders(ctx, now, s.opts.ReminderThreshold)
	if err != nil {
		return 0, err
	}

	today := common.DateOf(now)
	sent := 0
	for _, r := range reminders {
		chatID, ok, err := s.claimer.ClaimReminder(ctx, r.UserID, today)
		if err != nil {
			log.WithError(err).WithField("user_id", r.UserID).Warn("Не удалось отметить напоминание")
			continue
		}
		if !ok {
			continue
		}

		if err := s.notifier.Notify(ctx, chatID, ReminderText(r.Streak)); err != nil {
			log.WithError(err).WithField("user_id", r.UserID).Debug("Не удалось отправить напоминание")
			continue
		}
		sent++
	}

	if sent > 0 {
		log.WithField("sent", sent).Info("[CRON] Напоминания об огоньке отправлены")
	}
	return sent, nil
}

// ReminderText — текст напоминания для серии streak.
func ReminderText(streak int) string {
	return fmt.Sprintf(
		"🔥 Твой огонек горит уже %d %s!\nВыполни ежедневную задачу сегодня, чтобы не потерять серию.",
		streak, common.PluralizeDays(streak),
	)
}
