package driver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"

	"karst/internal/observ"
	"karst/internal/source"
	"karst/internal/trace"
)

// EmitKind selects the artifact a batch renders per file.
type EmitKind string

const (
	// EmitKIR renders the lowered module as textual KIR.
	EmitKIR EmitKind = "kir"
	// EmitFuncInfo renders the arranged descriptor table instead.
	EmitFuncInfo EmitKind = "funcinfo"
)

// ParseEmitKind validates an --emit flag value.
func ParseEmitKind(s string) (EmitKind, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "kir":
		return EmitKIR, nil
	case "funcinfo":
		return EmitFuncInfo, nil
	default:
		return "", fmt.Errorf("invalid emit kind %q (expected kir|funcinfo)", s)
	}
}

// BatchOptions configure one batch run.
type BatchOptions struct {
	// Jobs caps worker parallelism; <=0 means GOMAXPROCS.
	Jobs int
	// Emit selects the rendered artifact.
	Emit EmitKind
	// Cache serves and stores lowered modules. Nil disables caching, as
	// does NoCache.
	Cache   *DiskCache
	NoCache bool
	// Progress receives per-file events. Nil discards them.
	Progress ProgressSink
	// Timings attaches a phase report to every result.
	Timings bool
	// Tracer parents per-file lowering spans. Nil disables tracing.
	Tracer trace.Tracer
}

// FileResult is the outcome for one scenario file.
type FileResult struct {
	Path       string
	Output     string
	Funcs      []string
	Signatures int
	Cached     bool
	Err        error
	Timing     *observ.Report
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Files  []FileResult
	Errors int
}

// ListScenarioFiles expands the argument list into a sorted set of scenario
// paths: files are taken as-is, directories are walked for *.toml.
func ListScenarioFiles(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".toml") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// LowerBatch lowers every scenario file, fanning out across files with one
// lowering context per file. The per-file context stays single-threaded.
func LowerBatch(ctx context.Context, paths []string, opts BatchOptions) (*BatchResult, error) {
	sink := ProgressSink(nopSink{})
	if opts.Progress != nil {
		sink = opts.Progress
	}
	out := &BatchResult{Files: make([]FileResult, len(paths))}
	if len(paths) == 0 {
		return out, nil
	}

	// Preload everything up front; goroutines only touch their own index.
	fileSet := source.NewFileSet()
	fileIDs := make(map[string]source.FileID, len(paths))
	loadErrors := make(map[string]error, len(paths))
	for _, path := range paths {
		fileID, err := fileSet.Load(path)
		if err != nil {
			loadErrors[path] = err
			continue
		}
		fileIDs[path] = fileID
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	for _, path := range paths {
		sink.OnEvent(Event{File: path, Stage: StageLoad, Status: StatusQueued})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))

	for i, path := range paths {
		g.Go(func(i int, path string) func() error {
			return func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				sink.OnEvent(Event{File: path, Stage: StageLower, Status: StatusWorking})
				started := time.Now()
				res := lowerOne(fileSet, fileIDs, loadErrors, path, i, opts)
				res.Path = path
				out.Files[i] = res
				status := StatusDone
				switch {
				case res.Err != nil:
					status = StatusError
				case res.Cached:
					status = StatusCached
				}
				sink.OnEvent(Event{
					File:    path,
					Stage:   StageLower,
					Status:  status,
					Err:     res.Err,
					Elapsed: time.Since(started),
				})
				return nil
			}
		}(i, path))
	}

	if err := g.Wait(); err != nil {
		return out, err
	}
	for i := range out.Files {
		if out.Files[i].Err != nil {
			out.Errors++
		}
	}
	return out, nil
}

func lowerOne(fileSet *source.FileSet, fileIDs map[string]source.FileID, loadErrors map[string]error, path string, lane int, opts BatchOptions) FileResult {
	var res FileResult
	timer := observ.NewTimer()
	finish := func() FileResult {
		if opts.Timings {
			report := timer.Report()
			res.Timing = &report
		}
		return res
	}

	if loadErr, hadError := loadErrors[path]; hadError {
		res.Err = fmt.Errorf("failed to load file: %w", loadErr)
		return finish()
	}
	file := fileSet.Get(fileIDs[path])
	if file == nil {
		res.Err = fmt.Errorf("file %q vanished from the set", path)
		return finish()
	}

	// Only the printed module is cached; the descriptor table needs a live
	// context anyway.
	cacheable := opts.Cache != nil && !opts.NoCache && opts.Emit != EmitFuncInfo
	content := Digest(file.Hash)
	key := cacheKey(content, diskCacheSchemaVersion)
	if cacheable {
		sw := timer.Start("cache.get")
		var payload DiskPayload
		hit, err := opts.Cache.Get(key, &payload)
		sw.Stop("")
		if err == nil && hit && payload.Content == content {
			res.Output = payload.KIR
			res.Funcs = payload.Funcs
			res.Signatures = payload.Signatures
			res.Cached = true
			return finish()
		}
	}

	sw := timer.Start("load")
	sc, err := DecodeScenario(path, file.Content)
	sw.Stop("")
	if err != nil {
		res.Err = err
		return finish()
	}

	end, err := safecast.Conv[uint32](len(file.Content))
	if err != nil {
		end = ^uint32(0)
	}
	span := source.Span{File: file.ID, Start: 0, End: end}

	sw = timer.Start("lower")
	sp := trace.Begin(opts.Tracer, trace.ScopeModule, "lower "+path, trace.Link{Lane: lane})
	lowered, err := LowerScenario(sc, span, BuildOptions{Tracer: opts.Tracer, Link: sp.Link()})
	if err != nil {
		sp.End("error")
		sw.Stop("")
		res.Err = err
		return finish()
	}
	sp.End(fmt.Sprintf("%d funcs", len(lowered.Funcs)))
	sw.Stop(fmt.Sprintf("%d funcs", len(lowered.Funcs)))

	res.Funcs = lowered.Funcs
	res.Signatures = lowered.Gen.Signatures()

	sw = timer.Start("print")
	switch opts.Emit {
	case EmitFuncInfo:
		res.Output = lowered.FuncInfoTable()
	default:
		res.Output = lowered.KIR()
	}
	sw.Stop("")

	if cacheable {
		sw = timer.Start("cache.put")
		err := opts.Cache.Put(key, &DiskPayload{
			Schema:     diskCacheSchemaVersion,
			Path:       path,
			Target:     sc.Target,
			Content:    content,
			Funcs:      lowered.Funcs,
			KIR:        res.Output,
			Signatures: res.Signatures,
		})
		note := ""
		if err != nil {
			// Не фатально: кэш — только ускорение.
			note = "write failed"
		}
		sw.Stop(note)
	}
	return finish()
}
