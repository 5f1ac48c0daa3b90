package http

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"svgdeck/internal/deck/builder"
	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/notes"
	"svgdeck/internal/deck/opc"
	"svgdeck/internal/errors"
)

const (
	headerBuildID   = "X-Svgdeck-Build-Id"
	headerSucceeded = "X-Svgdeck-Succeeded"
	headerFailed    = "X-Svgdeck-Failed"
	headerTotal     = "X-Svgdeck-Total"

	outputName = "deck.pptx"
)

// deckForm carries the non-file fields of POST /api/v1/decks. Pointer
// fields fall back to the server defaults when absent.
type deckForm struct {
	Format             string   `form:"format"`
	Width              int      `form:"width" binding:"min=0,max=16384"`
	Height             int      `form:"height" binding:"min=0,max=16384"`
	Transition         *string  `form:"transition"`
	TransitionDuration *float64 `form:"transition_duration"`
	AutoAdvance        *float64 `form:"auto_advance"`
	Compat             *bool    `form:"compat"`
	Notes              *bool    `form:"notes"`
	RelIDs             string   `form:"rel_ids"`
	Title              string   `form:"title"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) writeError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("HTTP %d - %s: %v", status, message, err)
		_ = c.Error(err)
	}
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Details = errors.FormatForUser(err)
	}
	c.AbortWithStatusJSON(status, resp)
}

func (s *Server) handleCreateDeck(c *gin.Context) {
	if s.cfg.MaxUploadMB > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadMB<<20)
	}

	var form deckForm
	if err := c.ShouldBind(&form); err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid form", err)
		return
	}
	multi, err := c.MultipartForm()
	if err != nil {
		s.writeError(c, http.StatusBadRequest, "expected multipart form", err)
		return
	}
	slides := multi.File["slides"]
	if len(slides) == 0 {
		s.writeError(c, http.StatusBadRequest, "no slides uploaded", nil)
		return
	}

	if err := s.builds.Acquire(c.Request.Context(), 1); err != nil {
		s.writeError(c, http.StatusServiceUnavailable, "request cancelled while waiting for a build slot", err)
		return
	}
	defer s.builds.Release(1)

	dir, err := afero.TempDir(s.deps.Fs, s.deps.WorkDir, "svgdeck-upload-")
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, "cannot create upload area", err)
		return
	}
	defer func() {
		if err := s.deps.Fs.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove upload area %s: %v", dir, err)
		}
	}()

	paths, err := s.saveUploads(filepath.Join(dir, "slides"), slides)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid slide upload", err)
		return
	}
	notesDir := ""
	if uploaded := multi.File["notes"]; len(uploaded) > 0 {
		notesDir = filepath.Join(dir, notes.DirName)
		if _, err := s.saveUploads(notesDir, uploaded); err != nil {
			s.writeError(c, http.StatusBadRequest, "invalid notes upload", err)
			return
		}
	}

	opts := s.options(form, paths, notesDir, filepath.Join(dir, outputName))
	summary, err := s.deps.Builder.Build(c.Request.Context(), opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsInput(err) {
			status = http.StatusBadRequest
		}
		s.writeError(c, status, "build failed", err)
		return
	}

	data, err := afero.ReadFile(s.deps.Fs, summary.OutputPath)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, "cannot read built deck", err)
		return
	}

	c.Header(headerBuildID, summary.BuildID)
	c.Header(headerSucceeded, strconv.Itoa(summary.Succeeded))
	c.Header(headerFailed, strconv.Itoa(summary.Failed))
	c.Header(headerTotal, strconv.Itoa(summary.Total))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, outputName))
	c.Data(http.StatusOK, opc.PresentationMediaType, data)
}

// saveUploads stores files under dir in upload order and returns their paths.
func (s *Server) saveUploads(dir string, files []*multipart.FileHeader) ([]string, error) {
	if err := s.deps.Fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	seen := map[string]bool{}
	for _, header := range files {
		name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(header.Filename, `\`, "/")))
		if name == "/" || name == "." {
			return nil, fmt.Errorf("file without a name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate file name %q", name)
		}
		seen[name] = true

		src, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		err = afero.WriteReader(s.deps.Fs, path, src)
		src.Close()
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *Server) options(form deckForm, slides []string, notesDir, output string) builder.Options {
	d := s.deps.Defaults
	opts := builder.Options{
		Slides:             slides,
		OutputPath:         output,
		Canvas:             canvas.Request{Preset: form.Format, Width: form.Width, Height: form.Height},
		Compat:             d.Compat,
		Notes:              d.Notes,
		NotesDir:           notesDir,
		NotesLanguage:      d.NotesLanguage,
		RelIDs:             d.RelIDs,
		Transition:         d.Transition,
		TransitionDuration: d.TransitionDuration,
		AutoAdvance:        form.AutoAdvance,
		Title:              form.Title,
	}
	if form.Transition != nil {
		opts.Transition = *form.Transition
	}
	if form.TransitionDuration != nil {
		opts.TransitionDuration = *form.TransitionDuration
	}
	if form.Compat != nil {
		opts.Compat = *form.Compat
	}
	if form.Notes != nil {
		opts.Notes = *form.Notes
	}
	if form.RelIDs != "" {
		opts.RelIDs = form.RelIDs
	}
	return opts
}
