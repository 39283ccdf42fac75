package generate

import (
	"context"
	"sync"

	"qagen/internal/domain"
	"qagen/internal/llm"
	"qagen/internal/observability"
	"qagen/internal/prompt"
)

// Completer is the inference dependency of the orchestrator.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options configures the orchestrator.
type Options struct {
	Workers         int
	ParallelPrompts bool
	Retry           llm.RetryPolicy
	Logger          *observability.Logger
}

// Orchestrator runs generation units on a bounded worker pool. Each
// unit is retried on failure with a fixed delay; a unit that exhausts
// its retries is reported as failed without aborting the run.
type Orchestrator struct {
	client   Completer
	renderer *prompt.Renderer
	parser   *Parser
	opts     Options
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(client Completer, renderer *prompt.Renderer, parser *Parser, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}
	return &Orchestrator{
		client:   client,
		renderer: renderer,
		parser:   parser,
		opts:     opts,
	}
}

// Run executes the units and delivers one UnitResult per unit through
// onResult. Callbacks are serialized, so the sink needs no locking of
// its own. When parallel prompts are disabled, the default and
// alternative units of the same (document, keyword, augmentation) run
// sequentially on the same worker, default first. Run returns the
// context error if the run was canceled, nil otherwise.
func (o *Orchestrator) Run(ctx context.Context, units []domain.GenerationUnit, onResult func(domain.UnitResult)) error {
	tasks := groupTasks(units, o.opts.ParallelPrompts)

	taskCh := make(chan []domain.GenerationUnit)
	var wg sync.WaitGroup
	var resultMu sync.Mutex

	deliver := func(res domain.UnitResult) {
		resultMu.Lock()
		defer resultMu.Unlock()
		if onResult != nil {
			onResult(res)
		}
	}

	for i := 0; i < o.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				for _, unit := range task {
					if ctx.Err() != nil {
						return
					}
					deliver(o.runUnit(ctx, unit))
				}
			}
		}()
	}

	for _, task := range tasks {
		select {
		case taskCh <- task:
		case <-ctx.Done():
			close(taskCh)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(taskCh)
	wg.Wait()

	return ctx.Err()
}

// groupTasks shapes the unit list into worker tasks. With parallel
// prompts every unit is its own task; otherwise consecutive units that
// share (document, keyword, augmentation) form one sequential task.
func groupTasks(units []domain.GenerationUnit, parallel bool) [][]domain.GenerationUnit {
	var tasks [][]domain.GenerationUnit
	if parallel {
		for _, u := range units {
			tasks = append(tasks, []domain.GenerationUnit{u})
		}
		return tasks
	}

	byPair := make(map[string]int)
	for _, u := range units {
		key := pairIdentity(u)
		if i, ok := byPair[key]; ok {
			tasks[i] = append(tasks[i], u)
			continue
		}
		byPair[key] = len(tasks)
		tasks = append(tasks, []domain.GenerationUnit{u})
	}
	return tasks
}

func pairIdentity(u domain.GenerationUnit) string {
	id := u.Identity()
	id.Variant = ""
	return id.Key()
}

func (o *Orchestrator) runUnit(ctx context.Context, unit domain.GenerationUnit) domain.UnitResult {
	logger := o.opts.Logger.WithUnit(unit.DocID, unit.Keyword, string(unit.Variant), unit.AugmentationIndex)

	var pairs []domain.QAPair
	var discarded int
	attempts := 0

	err := o.opts.Retry.Do(ctx, func(attempt int) error {
		attempts = attempt
		raw, err := o.client.Complete(ctx, o.renderer.Render(unit))
		if err != nil {
			return err
		}
		pairs, discarded, err = o.parser.Parse(unit, raw)
		return err
	}, func(attempt int, err error) {
		logger.Warn().Err(err).Int("attempt", attempt).Msg("generation attempt failed, retrying")
	})

	if err != nil {
		logger.Error().Err(err).Int("attempts", attempts).Msg("generation unit failed")
	} else {
		logger.Debug().Int("pairs", len(pairs)).Int("discarded", discarded).Msg("generation unit completed")
	}

	return domain.UnitResult{
		Unit:      unit.Identity(),
		Pairs:     pairs,
		Discarded: discarded,
		Attempts:  attempts,
		Err:       err,
	}
}
