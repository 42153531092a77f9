package cron

import (
	"context"
	"fmt"
	"sync"

	"github.com/balansai/walletkit/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// chainJob runs its tasks sequentially with fresh SharedData per run
type chainJob struct {
	name  string
	tasks []Task
	log   logger.Logger
}

// Run implements cron.Job
func (j *chainJob) Run() {
	_ = j.run(context.Background())
}

func (j *chainJob) run(ctx context.Context) error {
	ctx = withSharedData(ctx, &SharedData{})

	j.log.Debug("chain started", zap.String("chain", j.name))
	for _, task := range j.tasks {
		if err := task.Run(ctx); err != nil {
			j.log.Error("chain aborted due to task failure",
				zap.String("chain", j.name),
				zap.String("task", task.Name()),
				zap.Error(err),
			)
			return errTask(j.name, task.Name(), err)
		}
	}
	j.log.Debug("chain completed", zap.String("chain", j.name))
	return nil
}

type cronManager struct {
	cron        *cron.Cron
	middlewares []Middleware
	log         logger.Logger

	mu     sync.Mutex
	chains map[string]*chainJob
	closed bool
}

func newCronManager(log logger.Logger, mws ...Middleware) *cronManager {
	cl := cronLogger{log: log}
	return &cronManager{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		middlewares: mws,
		log:         log,
		chains:      make(map[string]*chainJob),
	}
}

func (m *cronManager) Start() {
	m.cron.Start()
}

func (m *cronManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	<-m.cron.Stop().Done()
}

func (m *cronManager) AddTasks(name, spec string, tasks ...Task) error {
	if len(tasks) == 0 {
		return ErrNoTasks
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrCronClosed
	}
	if _, dup := m.chains[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateChain, name)
	}

	wrapped := make([]Task, len(tasks))
	for i, task := range tasks {
		named := TaskFunc{TaskName: name + ":" + task.Name(), Fn: task.Run}
		wrapped[i] = applyMiddlewares(named, m.middlewares...)
	}
	job := &chainJob{name: name, tasks: wrapped, log: m.log}

	if _, err := m.cron.AddJob(spec, job); err != nil {
		return errSpec(name, spec, err)
	}
	m.chains[name] = job

	m.log.Info("chain added",
		zap.String("chain", name),
		zap.String("spec", spec),
		zap.Int("task_count", len(tasks)),
	)
	return nil
}

func (m *cronManager) AddChain(chain Chain) error {
	return m.AddTasks(chain.Name, chain.Spec, chain.Tasks...)
}

func (m *cronManager) RunNow(ctx context.Context, name string) error {
	m.mu.Lock()
	job, ok := m.chains[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChain, name)
	}
	return job.run(ctx)
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(kvFields(keysAndValues), zap.Error(err))...)
}

func kvFields(kv []any) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}
