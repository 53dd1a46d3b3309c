// Package scheduler tareas periódicas: recálculo completo de estadísticas y reinicio diario.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jhoicas/feria-api/pkg/logger"
)

// Jobs operaciones que el scheduler dispara.
type Jobs interface {
	RecomputeAll(ctx context.Context) error
	ResetDaily(ctx context.Context) error
}

// Config expresiones cron (formato estándar de 5 campos o descriptores @every/@daily).
type Config struct {
	RecomputeSchedule  string
	DailyResetSchedule string
	JobTimeout         time.Duration
	Location           *time.Location
}

// Scheduler envoltorio de cron con recuperación de pánicos.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
	cfg  Config
	log  *logger.Logger
}

type cronLogger struct{ log *logger.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug().Fields(kv).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error().Err(err).Fields(kv).Msg(msg)
}

// New construye el scheduler sin arrancarlo.
func New(jobs Jobs, cfg Config, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, jobs: jobs, cfg: cfg, log: log}
}

// Register agrega los trabajos. Un schedule vacío desactiva el trabajo correspondiente.
func (s *Scheduler) Register() error {
	if err := s.add("stats.recompute_all", s.cfg.RecomputeSchedule, s.jobs.RecomputeAll); err != nil {
		return err
	}
	return s.add("stats.reset_daily", s.cfg.DailyResetSchedule, s.jobs.ResetDaily)
}

func (s *Scheduler) add(name, spec string, job func(ctx context.Context) error) error {
	if spec == "" {
		s.log.Info().Str("job", name).Msg("trabajo desactivado")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.wrap(name, job)); err != nil {
		return fmt.Errorf("programar %s (%q): %w", name, spec, err)
	}
	s.log.Info().Str("job", name).Str("schedule", spec).Msg("trabajo programado")
	return nil
}

func (s *Scheduler) wrap(name string, job func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()
		start := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("trabajo falló")
			return
		}
		s.log.Info().Str("job", name).Dur("elapsed", time.Since(start)).Msg("trabajo completado")
	}
}

// Start arranca el cron en su propia goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop detiene el cron; el contexto devuelto termina cuando acaban los trabajos en curso.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Entries cantidad de trabajos registrados.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }
