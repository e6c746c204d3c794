package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/prawko/prawko/internal/app"
	"github.com/prawko/prawko/internal/exam"
	"github.com/prawko/prawko/internal/learn"
	"github.com/prawko/prawko/internal/logging"
	"github.com/prawko/prawko/internal/offline"
	"github.com/prawko/prawko/internal/screens/categories"
	"github.com/prawko/prawko/internal/screens/quiz"
	"github.com/prawko/prawko/internal/screens/study"
	"github.com/prawko/prawko/internal/timer"
	"github.com/prawko/prawko/internal/ui/events"
)

// runApp builds the services, starts the background reconciler and
// launches the TUI. Logs go to a file so they do not tear the screen.
func runApp(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	e, err := openEnv(cmd, cfg, logFile)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	meta, metaErr := e.fetchMeta(ctx)
	if metaErr != nil {
		e.log.Error().Err(metaErr).Msg("meta not loaded")
	}

	kv := e.store.KV()
	queue := events.NewQueue()
	preloader := offline.NewPreloader(e.offline)
	defer preloader.Wait()

	examUI := quiz.NewUI(queue)
	exams := exam.NewController(exam.Deps{
		UI:        examUI,
		Confirmer: examUI,
		Preloader: preloader,
		Saver:     e.history,
		Clock:     timer.RealClock,
		Log:       logging.Component(e.log, "exam"),
	})
	learner := learn.NewController(learn.Deps{
		Progress: learn.NewProgress(kv, timer.RealClock, e.log),
		Modes:    learn.NewModes(kv, e.log),
		UI:       study.NewUI(queue),
		Clock:    timer.RealClock,
		Log:      logging.Component(e.log, "learn"),
	})

	go offline.NewReconciler(e.offline, e.cfg.ReconcileInterval, e.log).Run(ctx)

	noSplash, _ := cmd.Flags().GetBool("no-splash")
	return app.Run(ctx, app.Deps{
		Categories: categories.Deps{
			Meta:    meta,
			MetaErr: metaErr,
			Content: e.content,
			Exam: quiz.Deps{
				Exams:   exams,
				Meta:    meta,
				History: e.history,
				Log:     e.log,
			},
			Learn:   learner,
			History: e.history,
			Offline: e.offline,
			Queue:   queue,
			Log:     e.log,
		},
		Queue:            queue,
		Notifier:         e.worker.Notifier(),
		OnContentUpdated: e.content.Invalidate,
		Version:          version,
		Splash:           !noSplash,
		Log:              e.log,
	})
}
