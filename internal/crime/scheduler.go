package crime

import (
	"context"
	"time"

	"sentinel-api/internal/logger"
)

// nextMondayAt：now 之后最近的周一 hour 点（loc 时区）
func nextMondayAt(now time.Time, loc *time.Location, hour int) time.Time {
	now = now.In(loc)
	for i := 0; i <= 7; i++ {
		d := now.AddDate(0, 0, i)
		if d.Weekday() != time.Monday {
			continue
		}
		t := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
		if t.After(now) {
			return t
		}
	}
	d := now.AddDate(0, 0, 7)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
}

// 文档注释：每周一 hour 点（Europe/London）执行 job
// 约束：job 出错只记录日志，继续下一周期；ctx 取消后协程退出。时区数据缺失时回退 UTC。
func StartWeekly(ctx context.Context, hour int, job func(context.Context) error) {
	l := logger.L()
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		l.Warn("crime_scheduler_tz_fallback", "err", err)
		loc = time.UTC
	}
	go func() {
		for {
			next := nextMondayAt(time.Now(), loc, hour)
			l.Info("crime_refresh_scheduled", "next", next)
			t := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			l.Info("crime_refresh_start")
			if err := job(ctx); err != nil {
				l.Error("crime_refresh_error", "err", err)
			} else {
				l.Info("crime_refresh_done")
			}
		}
	}()
}
