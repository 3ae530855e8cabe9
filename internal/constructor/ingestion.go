package constructor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mamounyosef/agentic-tutor/internal/domain"
	"github.com/mamounyosef/agentic-tutor/internal/extract"
	"github.com/mamounyosef/agentic-tutor/internal/vector"
)

// Chunking bounds, in characters.
const (
	minChunkSize = 200
	maxChunkSize = 1500
)

const extractConcurrency = 4

// Ingestion processes uploaded files: classify, extract, chunk, embed,
// persist, report. A failure on one file never aborts the batch.
type Ingestion struct {
	Extractors *extract.Registry
	Vector     *vector.Store
}

// IngestionDelta is the state slice an ingestion run produces.
type IngestionDelta struct {
	ProcessedFileIDs []string
	FailedFiles      map[string]string // file id -> error
	Chunks           []domain.ContentChunk
	Result           domain.SubAgentResult
}

type extractedFile struct {
	file    domain.UploadedFile
	content string
	err     error
}

// Run executes the pipeline stages in order over the given files.
func (p *Ingestion) Run(ctx context.Context, courseID string, files []domain.UploadedFile) IngestionDelta {
	delta := IngestionDelta{FailedFiles: make(map[string]string)}
	if len(files) == 0 {
		delta.Result = domain.SubAgentResult{
			Status: domain.ResultFailed,
			Errors: []string{"no files to process"},
		}
		return delta
	}

	// Stage 1+2: classify and extract, bounded concurrency, failures
	// isolated per file.
	extracted := make([]extractedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				extracted[i] = extractedFile{file: f, err: err}
				return nil
			}
			fileType := extract.DetectType(f.Name, f.Type)
			content, err := p.Extractors.Extract(fileType, f.Path)
			extracted[i] = extractedFile{file: f, content: content, err: err}
			return nil
		})
	}
	_ = g.Wait() // workers report failures through the slice

	// Stage 3: chunk per file.
	succeeded := 0
	for _, ef := range extracted {
		delta.ProcessedFileIDs = append(delta.ProcessedFileIDs, ef.file.ID)
		if ef.err != nil {
			delta.FailedFiles[ef.file.ID] = ef.err.Error()
			continue
		}
		chunks := splitContent(courseID, ef.file.ID, ef.content)
		if len(chunks) == 0 {
			delta.FailedFiles[ef.file.ID] = "no extractable content"
			continue
		}
		succeeded++
		delta.Chunks = append(delta.Chunks, chunks...)
	}

	// Stage 4: embed and persist.
	if len(delta.Chunks) > 0 && p.Vector != nil {
		if err := p.Vector.Add(ctx, delta.Chunks); err != nil {
			// Chunks stay in session state; only the index write failed.
			delta.Result.Errors = append(delta.Result.Errors,
				fmt.Sprintf("store chunks: %v", err))
		}
	}

	// Stage 5: summary report. Completed if at least one file yielded
	// content, failed only if none did.
	status := domain.ResultCompleted
	if succeeded == 0 {
		status = domain.ResultFailed
	}
	errs := delta.Result.Errors
	for id, msg := range delta.FailedFiles {
		errs = append(errs, fmt.Sprintf("file %s: %s", id, msg))
	}
	delta.Result = domain.SubAgentResult{
		Status: status,
		Payload: map[string]any{
			"files_processed":      succeeded,
			"files_failed":         len(delta.FailedFiles),
			"total_chunks_created": len(delta.Chunks),
		},
		Errors: errs,
	}
	return delta
}

// splitContent splits extracted text into chunks on paragraph boundaries,
// keeping each chunk within [minChunkSize, maxChunkSize] characters where
// the content allows.
func splitContent(courseID, fileID, content string) []domain.ContentChunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var pieces []string
	var current strings.Builder
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > maxChunkSize {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)

		// Oversized single paragraphs are split hard.
		for current.Len() > maxChunkSize {
			s := current.String()
			pieces = append(pieces, s[:maxChunkSize])
			current.Reset()
			current.WriteString(s[maxChunkSize:])
		}
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}

	// Fold trailing fragments below the minimum into their predecessor.
	for len(pieces) > 1 && len(pieces[len(pieces)-1]) < minChunkSize {
		last := pieces[len(pieces)-1]
		pieces = pieces[:len(pieces)-1]
		pieces[len(pieces)-1] += "\n\n" + last
	}

	chunks := make([]domain.ContentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.ContentChunk{
			ID:       uuid.NewString(),
			CourseID: courseID,
			FileID:   fileID,
			Index:    i,
			Content:  piece,
		}
	}
	return chunks
}
