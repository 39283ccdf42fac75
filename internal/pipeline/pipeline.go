// Package pipeline wires the stages together: extraction, window
// construction, generation, and aggregation, with checkpointed resume.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"qagen/internal/aggregate"
	"qagen/internal/checkpoint"
	"qagen/internal/config"
	"qagen/internal/domain"
	"qagen/internal/generate"
	"qagen/internal/observability"
	"qagen/internal/storage"
	"qagen/internal/window"
)

// BlockExtractor turns one document's raw bytes into ordered blocks.
type BlockExtractor interface {
	ExtractBlocks(ctx context.Context, data []byte) ([]domain.Block, error)
}

// Options selects what a run processes.
type Options struct {
	// Input is the document folder, or a single file when SingleFile is
	// set.
	Input      string
	SingleFile bool
	// Keyword restricts generation to one keyword when non-empty.
	Keyword string
	// Resume skips units already recorded in the checkpoint ledger and
	// seeds the aggregator with their stored results.
	Resume bool
	// ShowProgress renders a progress bar during generation.
	ShowProgress bool
}

// Pipeline executes a full run.
type Pipeline struct {
	cfg       *config.Config
	provider  storage.Provider
	extractor BlockExtractor
	client    generate.Completer
	logger    *observability.Logger
}

// New creates a pipeline from its collaborators.
func New(cfg *config.Config, provider storage.Provider, extractor BlockExtractor, client generate.Completer, logger *observability.Logger) *Pipeline {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Pipeline{
		cfg:       cfg,
		provider:  provider,
		extractor: extractor,
		client:    client,
		logger:    logger,
	}
}

// Run executes the pipeline and returns the run summary. Document,
// unit, and artifact failures do not abort the run; documents and units
// are recorded in the summary, units also in the checkpoint failure
// manifest. Only configuration errors abort before generation starts.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{
		RunID:     uuid.NewString(),
		Input:     opts.Input,
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.WithComponent("pipeline")
	logger.Info().Str("run_id", summary.RunID).Str("input", opts.Input).Msg("starting run")

	files, err := p.listInputs(opts)
	if err != nil {
		return nil, err
	}
	summary.Documents = len(files)

	record, docFailures := p.extractCorpus(ctx, files)
	summary.DocumentFailures = docFailures
	summary.DocumentsFailed = len(docFailures)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	maskedPath := path.Join(p.cfg.Output.BaseFolder, p.cfg.Output.MaskedSubfolder, "combined_masked.json")
	if err := record.Persist(p.provider, maskedPath); err != nil {
		return nil, err
	}

	units := generate.BuildUnits(record.Documents(), p.cfg.Keywords, p.cfg.Processing.AugmentationFactor)
	units = generate.FilterKeyword(units, opts.Keyword)

	aggregator := aggregate.NewAggregator(p.provider, p.cfg.Output, p.cfg.Keywords)

	var ledger *checkpoint.Store
	if p.cfg.Processing.Checkpointing {
		ledger, err = checkpoint.Open(p.cfg.Processing.CheckpointFile)
		if err != nil {
			return nil, err
		}
		defer ledger.Close()

		units, err = p.applyResume(ledger, aggregator, units, opts.Resume, summary)
		if err != nil {
			return nil, err
		}
	}
	summary.UnitsScheduled = len(units)

	if err := p.generateUnits(ctx, units, aggregator, ledger, summary, opts.ShowProgress); err != nil {
		return nil, err
	}

	// A failed artifact is fatal for that artifact only; the summary is
	// still written so the failure manifest survives.
	if err := aggregator.WriteAll(); err != nil {
		logger.Error().Err(err).Msg("some artifacts could not be written")
	}
	summary.PairsGenerated = aggregator.PairCount()
	summary.CompletedAt = time.Now().UTC()

	if err := p.writeSummary(summary); err != nil {
		return nil, err
	}

	logger.Info().
		Int("units_completed", summary.UnitsCompleted).
		Int("units_failed", summary.UnitsFailed).
		Int("pairs", summary.PairsGenerated).
		Msg("run finished")
	return summary, nil
}

// listInputs resolves the run's document list, sorted by path so that
// document IDs are stable across runs over the same corpus.
func (p *Pipeline) listInputs(opts Options) ([]string, error) {
	if opts.SingleFile {
		if !p.provider.Exists(opts.Input) {
			return nil, domain.ConfigurationError("input file not found: "+opts.Input, nil)
		}
		return []string{opts.Input}, nil
	}

	files, err := p.provider.List(opts.Input, p.cfg.Input.FileExtensions)
	if err != nil {
		return nil, domain.ConfigurationError("list input folder "+opts.Input, err)
	}
	if len(files) == 0 {
		return nil, domain.ConfigurationError("no input documents in "+opts.Input, nil)
	}
	sort.Strings(files)
	return files, nil
}

// extractCorpus runs extraction and window construction over all
// documents in parallel. Documents that fail to extract are skipped and
// returned as failure records for the run summary.
func (p *Pipeline) extractCorpus(ctx context.Context, files []string) (*window.Record, []domain.DocumentFailure) {
	record := window.NewRecord()
	logger := p.logger.WithComponent("extract")

	var mu sync.Mutex
	var failures []domain.DocumentFailure

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Processing.MaxWorkers)

	for i, file := range files {
		docID := fmt.Sprintf("doc_%03d", i+1)
		file := file
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			dlog := logger.WithDocument(docID)

			data, err := p.provider.Read(file)
			if err == nil {
				var blocks []domain.Block
				blocks, err = p.extractor.ExtractBlocks(gctx, data)
				if err == nil {
					windows := window.BuildWindows(docID, blocks, p.cfg.Keywords)
					record.Add(domain.MaskedDocument{
						DocID:            docID,
						OriginalFilename: filepath.Base(file),
						Windows:          windows,
					})
					dlog.Debug().Int("windows", len(windows)).Msg("document extracted")
					return nil
				}
			}

			if gctx.Err() != nil {
				return gctx.Err()
			}
			dlog.Error().Err(err).Str("file", file).Msg("document extraction failed")
			mu.Lock()
			failures = append(failures, domain.DocumentFailure{
				DocID:   docID,
				File:    file,
				Message: err.Error(),
			})
			mu.Unlock()
			return nil
		})
	}
	// Workers only propagate context errors; nothing else to collect.
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].DocID < failures[j].DocID })
	return record, failures
}

// applyResume seeds the aggregator from the ledger and drops completed
// units from the schedule. Without resume, completed rows from earlier
// runs are ignored and will be overwritten as units finish again.
func (p *Pipeline) applyResume(ledger *checkpoint.Store, aggregator *aggregate.Aggregator, units []domain.GenerationUnit, resume bool, summary *domain.RunSummary) ([]domain.GenerationUnit, error) {
	if !resume {
		return units, nil
	}

	stored, err := ledger.CompletedResults()
	if err != nil {
		return nil, err
	}
	for _, res := range stored {
		aggregator.Add(res)
	}

	var pending []domain.GenerationUnit
	for _, u := range units {
		done, err := ledger.IsCompleted(u.Key())
		if err != nil {
			return nil, err
		}
		if done {
			summary.UnitsSkipped++
			continue
		}
		pending = append(pending, u)
	}

	p.logger.WithComponent("pipeline").Info().
		Int("skipped", summary.UnitsSkipped).
		Int("pending", len(pending)).
		Msg("resuming from checkpoint")
	return pending, nil
}

// generateUnits runs the orchestrator and routes each result to the
// aggregator, the ledger, and the summary.
func (p *Pipeline) generateUnits(ctx context.Context, units []domain.GenerationUnit, aggregator *aggregate.Aggregator, ledger *checkpoint.Store, summary *domain.RunSummary, showProgress bool) error {
	if len(units) == 0 {
		return nil
	}

	renderer, err := promptRenderer(p.cfg)
	if err != nil {
		return err
	}
	parser := generate.NewParser(p.cfg.Prompts.CitationSuffixes)

	orch := generate.NewOrchestrator(p.client, renderer, parser, generate.Options{
		Workers:         p.cfg.Processing.MaxWorkers,
		ParallelPrompts: p.cfg.Processing.ParallelPrompts,
		Retry:           retryPolicy(p.cfg),
		Logger:          p.logger,
	})

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(units)), "generating")
	}

	logger := p.logger.WithComponent("generate")
	return orch.Run(ctx, units, func(res domain.UnitResult) {
		if bar != nil {
			_ = bar.Add(1)
		}

		if res.Err != nil {
			summary.UnitsFailed++
			rec := domain.FailureRecord{
				Unit:     res.Unit,
				Kind:     domain.KindOf(res.Err),
				Message:  res.Err.Error(),
				Attempts: res.Attempts,
				FailedAt: time.Now().UTC(),
			}
			summary.Failures = append(summary.Failures, rec)
			if ledger != nil {
				if err := ledger.RecordFailure(rec); err != nil {
					logger.Error().Err(err).Str("unit", res.Unit.Key()).Msg("recording failure")
				}
			}
			return
		}

		summary.UnitsCompleted++
		aggregator.Add(res)
		if ledger != nil {
			if err := ledger.MarkCompleted(summary.RunID, res); err != nil {
				logger.Error().Err(err).Str("unit", res.Unit.Key()).Msg("checkpointing unit")
			}
		}
	})
}

func (p *Pipeline) writeSummary(summary *domain.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return domain.AggregationError("marshal run summary", err)
	}
	summaryPath := path.Join(p.cfg.Output.BaseFolder, "run_summary.json")
	if err := p.provider.Write(summaryPath, data); err != nil {
		return domain.AggregationError("write run summary", err)
	}
	return nil
}
