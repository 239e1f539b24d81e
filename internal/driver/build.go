// Package driver orchestrates the backend pipeline: program loading,
// code generation, module finalization and artifact output. The compiler
// itself is single-threaded; only independent artifact writes fan out.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"swell/internal/builtins"
	"swell/internal/codegen"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
)

// Request configures one build.
type Request struct {
	// Program is the pre-resolved input; alternatively BundlePath names a
	// frontend-produced .swb bundle.
	Program    *program.Program
	BundlePath string
	Options    *program.Options

	// MaxDiagnostics caps the bag; zero means the default of 100.
	MaxDiagnostics int

	// TextOutPath writes the module's text form when non-empty.
	TextOutPath string

	// Cache short-circuits rebuilds of identical inputs; nil disables
	// caching.
	Cache *Cache

	Progress ProgressSink
}

// Result carries the build's outputs.
type Result struct {
	Module *ir.Module
	Text   string
	Bag    *diag.Bag
	// Files resolves diagnostic spans; nil on cached results restored
	// without the program.
	Files *source.FileSet
	// Cached reports that the result was restored without compiling.
	Cached bool
}

// Build runs the pipeline.
func Build(ctx context.Context, req *Request) (Result, error) {
	if req == nil {
		return Result{}, fmt.Errorf("driver: missing request")
	}
	sink := req.Progress
	if sink == nil {
		sink = NopSink{}
	}
	maxDiag := req.MaxDiagnostics
	if maxDiag <= 0 {
		maxDiag = 100
	}
	bag := diag.NewBag(maxDiag)

	prog := req.Program
	var bundleBytes []byte
	if prog == nil {
		if req.BundlePath == "" {
			return Result{}, fmt.Errorf("driver: neither a program nor a bundle was provided")
		}
		sink.Send(Event{Stage: StageLoad, Path: req.BundlePath})
		var err error
		bundleBytes, err = os.ReadFile(req.BundlePath)
		if err != nil {
			return Result{}, fmt.Errorf("driver: read bundle: %w", err)
		}
		opts := req.Options
		if opts == nil {
			opts = &program.Options{}
		}
		prog, err = program.ReadBundle(bytes.NewReader(bundleBytes), opts)
		if err != nil {
			return Result{}, fmt.Errorf("driver: decode bundle: %w", err)
		}
		sink.Send(Event{Stage: StageLoad, Path: req.BundlePath, Done: true})
	}

	var key Digest
	useCache := req.Cache != nil && len(bundleBytes) > 0
	if useCache {
		key = DigestOf(bundleBytes, optionsFingerprint(prog.Options))
		var payload CachePayload
		if hit, err := req.Cache.Get(key, &payload); err == nil && hit {
			restoreDiagnostics(payload.Diagnostics, bag)
			res := Result{Text: payload.ModuleText, Bag: bag, Cached: true}
			res.Files = prog.Files
			if req.TextOutPath != "" {
				if err := os.WriteFile(req.TextOutPath, []byte(payload.ModuleText), 0o644); err != nil {
					return res, fmt.Errorf("driver: write text artifact: %w", err)
				}
			}
			return res, nil
		}
	}

	for _, src := range prog.Sources {
		sink.Send(Event{Stage: StageCodegen, Path: src.Path})
	}
	compiler := codegen.New(prog, diag.BagReporter{Bag: bag})
	compiler.SetBuiltins(builtins.Compile)

	sink.Send(Event{Stage: StageCodegen})
	mod, err := compiler.Compile()
	if err != nil {
		return Result{Bag: bag}, fmt.Errorf("driver: compile: %w", err)
	}
	for _, src := range prog.Sources {
		sink.Send(Event{Stage: StageCodegen, Path: src.Path, Done: true})
	}

	sink.Send(Event{Stage: StageFinalize})
	bag.Sort()
	bag.Dedup()
	text := mod.Text()
	sink.Send(Event{Stage: StageFinalize, Done: true})

	// Artifact writes are independent of one another.
	g, _ := errgroup.WithContext(ctx)
	if req.TextOutPath != "" {
		sink.Send(Event{Stage: StageWrite, Path: req.TextOutPath})
		g.Go(func() error {
			if err := os.WriteFile(req.TextOutPath, []byte(text), 0o644); err != nil {
				return fmt.Errorf("driver: write text artifact: %w", err)
			}
			sink.Send(Event{Stage: StageWrite, Path: req.TextOutPath, Done: true})
			return nil
		})
	}
	if useCache {
		g.Go(func() error {
			payload := &CachePayload{
				Schema:      cacheSchemaVersion,
				ModuleText:  text,
				Diagnostics: cacheDiagnostics(bag),
				HasErrors:   bag.HasErrors(),
			}
			return req.Cache.Put(key, payload)
		})
	}
	if err := g.Wait(); err != nil {
		return Result{Module: mod, Text: text, Bag: bag, Files: prog.Files}, err
	}
	return Result{Module: mod, Text: text, Bag: bag, Files: prog.Files}, nil
}

// optionsFingerprint serializes the option fields that affect output.
func optionsFingerprint(opts *program.Options) []byte {
	if opts == nil {
		opts = &program.Options{}
	}
	s := fmt.Sprintf("%s|%v|%v|%v|%v|%v|%d|%d|%v",
		opts.Target, opts.NoTreeShaking, opts.NoAssert, opts.ImportMemory,
		opts.ImportTable, opts.SourceMap, opts.MemoryBase, opts.Features,
		opts.GlobalAliases)
	return []byte(s)
}
