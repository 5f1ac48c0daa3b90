// Package builder assembles a presentation package from SVG slides.
//
// A build resolves the canvas once, generates a skeleton with one blank
// slide per input, unpacks it into a private working area, replaces each
// blank slide with the synthesized one, registers the new part types and
// repacks everything into the output file.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/media"
	"svgdeck/internal/deck/notes"
	"svgdeck/internal/deck/opc"
	"svgdeck/internal/deck/raster"
	"svgdeck/internal/deck/skeleton"
	"svgdeck/internal/deck/slidexml"
	"svgdeck/internal/errors"
	"svgdeck/internal/logging"
	"svgdeck/internal/observability"
)

const (
	workPrefix  = "svgdeck-"
	baseArchive = "base.pptx"
	packageDir  = "pkg"
)

// Config holds the process-wide collaborators of a Builder. Everything is
// optional.
type Config struct {
	Fs afero.Fs
	// Rasterizer renders PNG fallbacks. Nil means vector-only builds.
	Rasterizer raster.Rasterizer
	Presets    *canvas.PresetLibrary
	// WorkDir is the parent of per-build working areas; empty means the
	// system temp directory.
	WorkDir string
	Logger  logging.Logger
	Metrics *observability.MetricsCollector
	Tracer  *observability.TracerProvider
	Clock   func() time.Time
}

// Builder runs builds. It is safe for concurrent use; every build gets its
// own working area.
type Builder struct {
	fs         afero.Fs
	rasterizer raster.Rasterizer
	resolver   *canvas.Resolver
	workDir    string
	logger     logging.Logger
	metrics    *observability.MetricsCollector
	tracer     *observability.TracerProvider
	now        func() time.Time
}

// New creates a Builder.
func New(cfg Config) *Builder {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NoopTracerProvider()
	}
	logger := logging.OrNop(cfg.Logger)
	return &Builder{
		fs:         cfg.Fs,
		rasterizer: cfg.Rasterizer,
		resolver:   canvas.NewResolver(cfg.Fs, cfg.Presets, logger),
		workDir:    cfg.WorkDir,
		logger:     logger,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		now:        cfg.Clock,
	}
}

// build carries the state of one Build call.
type build struct {
	*Builder
	req      *request
	ctx      context.Context
	logger   logging.Logger
	summary  *Summary
	pkgDir   string
	embedder *media.Embedder
	notes    *notes.Embedder
	usage    opc.Usage
	mediaExt map[string]struct{}
}

// Build produces the package described by opts. Invalid options return an
// *errors.InputError before anything is written; skeleton, manifest or
// repack failures return an *errors.PackagingError and leave no output.
// Per-slide problems never fail the build: they are reported in the
// Summary.
func (b *Builder) Build(ctx context.Context, opts Options) (summary *Summary, err error) {
	start := b.now()
	req, err := opts.validate()
	if err != nil {
		b.metrics.RecordBuild(ctx, "invalid", 0)
		return nil, err
	}

	buildID := req.BuildID
	if buildID == "" {
		buildID = uuid.NewString()
	}
	ctx = observability.ContextWithBuildID(ctx, buildID)
	ctx, span := b.tracer.StartSpan(ctx, observability.SpanBuild, attribute.Int(observability.AttrSlideCount, len(req.Slides)))
	defer func() { observability.EndSpan(span, err) }()

	run := &build{
		Builder:  b,
		req:      req,
		ctx:      ctx,
		logger:   logging.FromContext(ctx, b.logger),
		summary:  &Summary{BuildID: buildID, Total: len(req.Slides), OutputPath: req.OutputPath},
		mediaExt: map[string]struct{}{},
	}
	defer func() {
		run.summary.Duration = b.now().Sub(start)
		status := "error"
		if err == nil {
			status = run.summary.status()
		}
		b.metrics.RecordBuild(ctx, status, run.summary.Duration)
	}()

	if err := run.execute(); err != nil {
		return nil, err
	}
	return run.summary, nil
}

func (r *build) execute() (err error) {
	r.summary.Canvas = r.resolver.Resolve(r.req.Canvas, r.req.Slides[0])
	r.logger.Info("building %d slide(s) at %s", len(r.req.Slides), r.summary.Canvas)

	refs := make([]notes.SlideRef, len(r.req.Slides))
	for i, path := range r.req.Slides {
		refs[i] = notes.SlideRef{Index: i + 1, Stem: notes.Stem(path)}
	}
	if r.req.Notes {
		r.notes = notes.NewEmbedder(r.loadNotes(refs), r.req.relIDs, r.req.NotesLanguage)
	}

	plan := media.NewPlan(r.req.Compat, r.rasterizer)
	if plan.Notice != "" {
		r.summary.Notices = append(r.summary.Notices, plan.Notice)
		r.logger.Warn("%s", plan.Notice)
	}
	r.embedder = media.NewEmbedder(r.fs, r.rasterizer, plan, r.logger)

	workDir, err := afero.TempDir(r.fs, r.workDir, workPrefix)
	if err != nil {
		return errors.NewPackagingError("create working area", err)
	}
	defer func() {
		if rmErr := r.fs.RemoveAll(workDir); rmErr != nil {
			r.logger.Warn("failed to remove working area %s: %v", workDir, rmErr)
		}
	}()

	if err := r.unpackSkeleton(workDir); err != nil {
		return err
	}

	for i, ref := range refs {
		r.summary.add(r.processSlide(ref, r.req.Slides[i]))
	}

	if err := r.registerContentTypes(); err != nil {
		return err
	}
	staged, err := opc.CollectParts(r.fs, r.pkgDir)
	if err != nil {
		return errors.NewPackagingError("verify package", err)
	}
	if err := verifyPackage(staged, len(r.req.Slides)); err != nil {
		return errors.NewPackagingError("verify package", err)
	}
	if err := opc.Repack(r.fs, r.pkgDir, r.req.OutputPath); err != nil {
		return errors.NewPackagingError("repack", err)
	}
	r.logger.Info("wrote %s: %d/%d slides, %d downgraded", r.req.OutputPath, r.summary.Succeeded, r.summary.Total, r.summary.Downgraded)
	return nil
}

func (r *build) loadNotes(refs []notes.SlideRef) notes.Record {
	loaded, err := notes.NewLoader(r.fs, r.logger).Load(r.req.NotesDir, r.req.NotesText)
	r.summary.NotesFailures += loaded.Failures
	if err != nil {
		r.summary.NotesFailures++
		r.logger.Warn("notes unavailable: %v", err)
	}
	return notes.Match(loaded.Sources, refs)
}

func (r *build) unpackSkeleton(workDir string) error {
	base := filepath.Join(workDir, baseArchive)
	file, err := r.fs.OpenFile(base, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.NewPackagingError("create skeleton", err)
	}
	err = skeleton.Write(file, skeleton.Options{
		Slides:  len(r.req.Slides),
		Canvas:  r.summary.Canvas,
		Notes:   r.req.Notes,
		Title:   r.req.Title,
		Created: r.now(),
	})
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.NewPackagingError("create skeleton", err)
	}

	r.pkgDir = filepath.Join(workDir, packageDir)
	if _, err := opc.Unpack(r.fs, base, r.pkgDir); err != nil {
		return errors.NewPackagingError("unpack skeleton", err)
	}
	return nil
}

func (r *build) registerContentTypes() error {
	data, err := opc.ReadPartFile(r.fs, r.pkgDir, opc.ContentTypesPart)
	if err != nil {
		return errors.NewPackagingError("read content types", err)
	}
	types, err := opc.ParseContentTypes(data)
	if err != nil {
		return errors.NewPackagingError("read content types", err)
	}
	for _, ext := range []string{"png", "svg"} {
		if _, ok := r.mediaExt[ext]; ok {
			r.usage.MediaExtensions = append(r.usage.MediaExtensions, ext)
		}
	}
	added := types.Register(r.usage)
	r.logger.Debug("content types: %d entries added", added)

	data, err = types.Marshal()
	if err != nil {
		return errors.NewPackagingError("write content types", err)
	}
	if err := opc.WritePartFile(r.fs, r.pkgDir, opc.ContentTypesPart, data); err != nil {
		return errors.NewPackagingError("write content types", err)
	}
	return nil
}

// processSlide runs media, slide XML and notes for one slide and commits
// the result. It never returns an error; failures become the report.
func (r *build) processSlide(ref notes.SlideRef, path string) (report SlideReport) {
	ctx, span := r.tracer.StartSpan(r.ctx, observability.SpanSlide, observability.SlideAttrs(ref.Index, ref.Stem)...)
	report = SlideReport{Index: ref.Index, Name: ref.Stem, Path: path, Status: StatusOK}
	var slideErr error
	defer func() {
		span.SetAttributes(attribute.String(observability.AttrSlideMode, string(report.Mode)))
		observability.EndSpan(span, slideErr)
		mode := string(report.Mode)
		if report.Status == StatusFailed {
			mode = string(StatusFailed)
		}
		r.metrics.RecordSlide(ctx, mode)
	}()

	staged, err := r.stage(ctx, ref, path)
	if err != nil {
		slideErr = err
		report.Status = StatusFailed
		report.Error = err.Error()
		r.logger.Warn("%s", errors.FormatForUser(err))
		return report
	}
	report.Mode = staged.mode
	report.Notes = staged.hasNotes

	if err := r.commit(staged); err != nil {
		slideErr = errors.NewSlideError(ref.Index, ref.Stem, errors.StageCommit, err)
		report.Status = StatusFailed
		report.Mode = ""
		report.Error = slideErr.Error()
		r.logger.Warn("%s", errors.FormatForUser(slideErr))
		return report
	}

	for _, ext := range staged.mediaExt {
		r.mediaExt[ext] = struct{}{}
	}
	if staged.notesPart != "" {
		r.usage.NotesParts = append(r.usage.NotesParts, staged.notesPart)
	}
	r.logger.Debug("slide %d (%s): %s", ref.Index, ref.Stem, staged.mode)
	return report
}

// stagedSlide holds every part of one slide before it touches the working
// area.
type stagedSlide struct {
	index     int
	mode      media.Mode
	parts     []opc.Part
	mediaExt  []string
	notesPart string
	hasNotes  bool
}

func (r *build) stage(ctx context.Context, ref notes.SlideRef, path string) (*stagedSlide, error) {
	ids := slidexml.NewSlideIDs()
	res, err := r.embedder.Embed(ctx, ref.Index, ref.Stem, path, r.summary.Canvas, ids)
	if err != nil {
		return nil, err
	}

	slidePart := opc.SlidePart(ref.Index)
	body, err := slidexml.Slide(ref.Index, ref.Stem, res, r.summary.Canvas, r.req.transition)
	if err != nil {
		return nil, errors.NewSlideError(ref.Index, ref.Stem, errors.StageSlide, err)
	}
	rels, err := slidexml.SlideRels(ref.Index, res)
	if err != nil {
		return nil, errors.NewSlideError(ref.Index, ref.Stem, errors.StageSlide, err)
	}

	staged := &stagedSlide{index: ref.Index, mode: res.Mode, mediaExt: res.MediaExtensions()}
	staged.parts = append(staged.parts, res.Parts...)

	if r.notes != nil {
		notesParts, found, err := r.notes.Embed(ref.Index, ref.Stem, rels, ids)
		if err != nil {
			return nil, errors.NewSlideError(ref.Index, ref.Stem, errors.StageNotes, err)
		}
		staged.parts = append(staged.parts, notesParts...)
		staged.notesPart = opc.NotesSlidePart(ref.Index)
		staged.hasNotes = found
	}

	relsData, err := rels.Marshal()
	if err != nil {
		return nil, errors.NewSlideError(ref.Index, ref.Stem, errors.StageSlide, err)
	}
	staged.parts = append(staged.parts,
		opc.Part{Name: slidePart, Data: body},
		opc.Part{Name: opc.RelsPartFor(slidePart), Data: relsData},
	)
	return staged, nil
}

// commit writes a staged slide into the working area. On failure the
// placeholder slide is restored and every part already written is removed,
// so the package stays consistent.
func (r *build) commit(s *stagedSlide) error {
	slidePart := opc.SlidePart(s.index)
	placeholders := map[string][]byte{}
	for _, name := range []string{slidePart, opc.RelsPartFor(slidePart)} {
		data, err := opc.ReadPartFile(r.fs, r.pkgDir, name)
		if err != nil {
			return fmt.Errorf("read placeholder: %w", err)
		}
		placeholders[name] = data
	}

	var written []string
	for _, part := range s.parts {
		if err := opc.WritePartFile(r.fs, r.pkgDir, part.Name, part.Data); err != nil {
			r.rollback(written, placeholders)
			return err
		}
		written = append(written, part.Name)
	}
	return nil
}

func (r *build) rollback(written []string, placeholders map[string][]byte) {
	for _, name := range written {
		if _, ok := placeholders[name]; ok {
			continue
		}
		if err := opc.RemovePartFile(r.fs, r.pkgDir, name); err != nil {
			r.logger.Warn("rollback: %v", err)
		}
	}
	for name, data := range placeholders {
		if err := opc.WritePartFile(r.fs, r.pkgDir, name, data); err != nil {
			r.logger.Warn("rollback: %v", err)
		}
	}
}
