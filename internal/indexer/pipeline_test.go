package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"policy-rag/internal/policy"
	"policy-rag/internal/storage"
	storage_mocks "policy-rag/internal/storage/mocks"
	"policy-rag/internal/vectorstore"
	vectorstore_mocks "policy-rag/internal/vectorstore/mocks"

	"go.uber.org/mock/gomock"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeEmbedder returns a fixed vector per text unless primed with
// embeddings or an error.
type fakeEmbedder struct {
	lastTexts  []string
	embeddings [][]float32
	err        error
	calls      int
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.lastTexts = texts
	if f.err != nil {
		return nil, f.err
	}
	if f.embeddings != nil {
		return f.embeddings, nil
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// testDocContent chunks into exactly two sections.
const testDocContent = "# Alcohol policy\n\n" +
	"## Alcohol\n\n" +
	"Ads for alcoholic beverages must follow local laws and marketing codes.\n\n" +
	"### Sales restrictions\n\n" +
	"Online alcohol sales require verified retail licenses in every country.\n"

// writeDocument writes name.md plus its name.yaml manifest sidecar and
// returns the document path.
func writeDocument(t *testing.T, dir, name, content string) string {
	t.Helper()
	docPath := filepath.Join(dir, name+".md")
	if err := os.WriteFile(docPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	manifest := "doc_id: " + name + "\n" +
		"url: https://support.google.com/adspolicy/answer/6012382\n" +
		"source: google\n" +
		"region: us\n" +
		"content_type: ad_text\n" +
		"fetched_at: 2025-06-01T10:30:00Z\n"
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return docPath
}

func TestNewPipeline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	pipeline := NewPipeline(mockChunks, &fakeEmbedder{}, mockVectors, "policy_chunks")

	if pipeline == nil {
		t.Fatal("NewPipeline() returned nil")
	}
	if pipeline.chunker == nil {
		t.Error("NewPipeline() chunker should not be nil")
	}
	if pipeline.collection != "policy_chunks" {
		t.Errorf("NewPipeline() collection = %v, want policy_chunks", pipeline.collection)
	}
}

func TestPipeline_IndexDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)
	embedder := &fakeEmbedder{}

	docPath := writeDocument(t, t.TempDir(), "google-ads-alcohol", testDocContent)

	mockChunks.EXPECT().
		ListIDsByDoc(gomock.Any(), "google-ads-alcohol_2025-06-01").
		Return([]string{}, nil)

	var inserted []*storage.ChunkRecord
	mockChunks.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, record *storage.ChunkRecord) error {
			inserted = append(inserted, record)
			return nil
		}).
		Times(2)

	var upserted []vectorstore.Point
	mockVectors.EXPECT().
		Upsert(gomock.Any(), "policy_chunks", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
			upserted = points
			return nil
		})

	pipeline := NewPipeline(mockChunks, embedder, mockVectors, "policy_chunks")

	chunksIndexed, sectionsSkipped, err := pipeline.IndexDocument(context.Background(), docPath)
	if err != nil {
		t.Fatalf("IndexDocument() unexpected error: %v", err)
	}
	if chunksIndexed != 2 || sectionsSkipped != 0 {
		t.Errorf("IndexDocument() = (%d, %d), want (2, 0)", chunksIndexed, sectionsSkipped)
	}

	if len(inserted) != 2 {
		t.Fatalf("expected 2 inserted records, got %d", len(inserted))
	}

	first := inserted[0]
	if first.DocID != "google-ads-alcohol_2025-06-01" {
		t.Errorf("unexpected doc_id: %q", first.DocID)
	}
	if len(first.ID) != 36 {
		t.Errorf("chunk ID should be a UUID, got %q", first.ID)
	}
	if first.ChunkIndex != 0 {
		t.Errorf("unexpected chunk_index: %d", first.ChunkIndex)
	}
	if first.Source != policy.SourceGoogle || first.Region != policy.RegionUS || first.ContentType != policy.ContentTypeAdText {
		t.Errorf("manifest attributes not forwarded: %+v", first)
	}
	if first.DocURL != "https://support.google.com/adspolicy/answer/6012382" {
		t.Errorf("unexpected doc_url: %q", first.DocURL)
	}
	if first.Section != "Alcohol" || first.SectionPath != "Alcohol" || first.SectionLevel != policy.SectionLevelH2 {
		t.Errorf("section attributes not forwarded: %+v", first)
	}
	if !strings.HasPrefix(first.Text, "[Alcohol]\n\n") {
		t.Errorf("unexpected chunk text: %q", first.Text)
	}

	second := inserted[1]
	if second.ChunkIndex != 1 {
		t.Errorf("unexpected chunk_index: %d", second.ChunkIndex)
	}
	if second.Section != "Sales restrictions" || second.SectionPath != "Alcohol > Sales restrictions" || second.SectionLevel != policy.SectionLevelH3 {
		t.Errorf("section attributes not forwarded: %+v", second)
	}

	if len(upserted) != 2 {
		t.Fatalf("expected 2 upserted points, got %d", len(upserted))
	}
	for i, point := range upserted {
		if point.ID != inserted[i].ID {
			t.Errorf("point %d ID %q does not match record ID %q", i, point.ID, inserted[i].ID)
		}
		if len(point.Vec) != 3 {
			t.Errorf("point %d has vector of size %d", i, len(point.Vec))
		}
	}

	if embedder.calls != 1 || len(embedder.lastTexts) != 2 {
		t.Errorf("expected one batch embedding call for 2 texts, got %d calls for %d texts", embedder.calls, len(embedder.lastTexts))
	}
	if embedder.lastTexts[0] != inserted[0].Text {
		t.Error("embedded texts do not match stored chunk texts")
	}
}

func TestPipeline_IndexDocument_ReplacesPreviousVersion(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	docPath := writeDocument(t, t.TempDir(), "google-ads-alcohol", testDocContent)

	mockChunks.EXPECT().
		ListIDsByDoc(gomock.Any(), "google-ads-alcohol_2025-06-01").
		Return([]string{"old-1", "old-2"}, nil)
	mockVectors.EXPECT().
		Delete(gomock.Any(), "policy_chunks", []string{"old-1", "old-2"}).
		Return(nil)
	mockChunks.EXPECT().
		DeleteByDoc(gomock.Any(), "google-ads-alcohol_2025-06-01").
		Return(nil)
	mockChunks.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(nil).
		Times(2)
	mockVectors.EXPECT().
		Upsert(gomock.Any(), "policy_chunks", gomock.Any()).
		Return(nil)

	pipeline := NewPipeline(mockChunks, &fakeEmbedder{}, mockVectors, "policy_chunks")

	chunksIndexed, _, err := pipeline.IndexDocument(context.Background(), docPath)
	if err != nil {
		t.Fatalf("IndexDocument() unexpected error: %v", err)
	}
	if chunksIndexed != 2 {
		t.Errorf("expected 2 chunks indexed, got %d", chunksIndexed)
	}
}

func TestPipeline_IndexDocument_VectorDeleteFailureContinues(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	docPath := writeDocument(t, t.TempDir(), "google-ads-alcohol", testDocContent)

	mockChunks.EXPECT().
		ListIDsByDoc(gomock.Any(), gomock.Any()).
		Return([]string{"old-1"}, nil)
	mockVectors.EXPECT().
		Delete(gomock.Any(), "policy_chunks", []string{"old-1"}).
		Return(errors.New("qdrant unavailable"))
	mockChunks.EXPECT().
		DeleteByDoc(gomock.Any(), "google-ads-alcohol_2025-06-01").
		Return(nil)
	mockChunks.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(nil).
		Times(2)
	mockVectors.EXPECT().
		Upsert(gomock.Any(), "policy_chunks", gomock.Any()).
		Return(nil)

	pipeline := NewPipeline(mockChunks, &fakeEmbedder{}, mockVectors, "policy_chunks")

	// Orphaned vectors are harmless, losing relational rows is not
	chunksIndexed, _, err := pipeline.IndexDocument(context.Background(), docPath)
	if err != nil {
		t.Fatalf("IndexDocument() should survive a vector delete failure, got: %v", err)
	}
	if chunksIndexed != 2 {
		t.Errorf("expected 2 chunks indexed, got %d", chunksIndexed)
	}
}

func TestPipeline_IndexDocument_EmbedderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	docPath := writeDocument(t, t.TempDir(), "google-ads-alcohol", testDocContent)

	mockChunks.EXPECT().
		ListIDsByDoc(gomock.Any(), gomock.Any()).
		Return([]string{}, nil)

	embedder := &fakeEmbedder{err: errors.New("model not loaded")}
	pipeline := NewPipeline(mockChunks, embedder, mockVectors, "policy_chunks")

	_, _, err := pipeline.IndexDocument(context.Background(), docPath)
	if err == nil {
		t.Fatal("IndexDocument() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to generate embeddings") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPipeline_IndexDocument_EmbeddingCountMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	docPath := writeDocument(t, t.TempDir(), "google-ads-alcohol", testDocContent)

	mockChunks.EXPECT().
		ListIDsByDoc(gomock.Any(), gomock.Any()).
		Return([]string{}, nil)

	embedder := &fakeEmbedder{embeddings: [][]float32{{0.1, 0.2, 0.3}}}
	pipeline := NewPipeline(mockChunks, embedder, mockVectors, "policy_chunks")

	_, _, err := pipeline.IndexDocument(context.Background(), docPath)
	if err == nil {
		t.Fatal("IndexDocument() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "embedding count mismatch: expected 2, got 1") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPipeline_IndexDocument_MissingManifest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	docPath := filepath.Join(t.TempDir(), "orphan.md")
	if err := os.WriteFile(docPath, []byte(testDocContent), 0o644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}

	pipeline := NewPipeline(mockChunks, &fakeEmbedder{}, mockVectors, "policy_chunks")

	_, _, err := pipeline.IndexDocument(context.Background(), docPath)
	if err == nil {
		t.Fatal("IndexDocument() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read manifest") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPipeline_IndexAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	dir := t.TempDir()
	writeDocument(t, dir, "google-ads-alcohol", testDocContent)
	writeDocument(t, dir, "google-ads-gambling", testDocContent)

	// A document without a manifest is skipped, not failed
	orphan := filepath.Join(dir, "orphan.md")
	if err := os.WriteFile(orphan, []byte(testDocContent), 0o644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}

	mockChunks.EXPECT().
		ListIDsByDoc(gomock.Any(), gomock.Any()).
		Return([]string{}, nil).
		Times(2)
	mockChunks.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(nil).
		Times(4)
	mockVectors.EXPECT().
		Upsert(gomock.Any(), "policy_chunks", gomock.Any()).
		Return(nil).
		Times(2)

	pipeline := NewPipeline(mockChunks, &fakeEmbedder{}, mockVectors, "policy_chunks")

	stats, err := pipeline.IndexAll(context.Background(), dir)
	if err != nil {
		t.Fatalf("IndexAll() unexpected error: %v", err)
	}

	if stats.DocsIndexed != 2 {
		t.Errorf("DocsIndexed = %d, want 2", stats.DocsIndexed)
	}
	if stats.DocsFailed != 0 {
		t.Errorf("DocsFailed = %d, want 0", stats.DocsFailed)
	}
	if stats.ChunksIndexed != 4 {
		t.Errorf("ChunksIndexed = %d, want 4", stats.ChunksIndexed)
	}
	if stats.SectionsSkipped != 0 {
		t.Errorf("SectionsSkipped = %d, want 0", stats.SectionsSkipped)
	}
}

func TestPipeline_IndexAll_ContinuesAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	dir := t.TempDir()

	// Invalid manifest: the document is picked up and fails during indexing
	badDoc := filepath.Join(dir, "a-bad.md")
	if err := os.WriteFile(badDoc, []byte(testDocContent), 0o644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	badManifest := "doc_id: a-bad\nurl: https://example.com\nsource: meta\nfetched_at: 2025-06-01T10:30:00Z\n"
	if err := os.WriteFile(filepath.Join(dir, "a-bad.yaml"), []byte(badManifest), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	writeDocument(t, dir, "b-good", testDocContent)

	mockChunks.EXPECT().
		ListIDsByDoc(gomock.Any(), "b-good_2025-06-01").
		Return([]string{}, nil)
	mockChunks.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(nil).
		Times(2)
	mockVectors.EXPECT().
		Upsert(gomock.Any(), "policy_chunks", gomock.Any()).
		Return(nil)

	pipeline := NewPipeline(mockChunks, &fakeEmbedder{}, mockVectors, "policy_chunks")

	stats, err := pipeline.IndexAll(context.Background(), dir)
	if err == nil {
		t.Fatal("IndexAll() expected error, got nil")
	}
	if err.Error() != "ingestion completed with 1 errors" {
		t.Errorf("unexpected error: %v", err)
	}

	if stats.DocsIndexed != 1 {
		t.Errorf("DocsIndexed = %d, want 1", stats.DocsIndexed)
	}
	if stats.DocsFailed != 1 {
		t.Errorf("DocsFailed = %d, want 1", stats.DocsFailed)
	}
	if stats.ChunksIndexed != 2 {
		t.Errorf("ChunksIndexed = %d, want 2", stats.ChunksIndexed)
	}
}

func TestPipeline_IndexAll_EmptyDir(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	pipeline := NewPipeline(mockChunks, &fakeEmbedder{}, mockVectors, "policy_chunks")

	stats, err := pipeline.IndexAll(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("IndexAll() unexpected error: %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestPipeline_IndexAll_ContextCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChunks := storage_mocks.NewMockChunkStore(ctrl)
	mockVectors := vectorstore_mocks.NewMockVectorIndex(ctrl)

	dir := t.TempDir()
	writeDocument(t, dir, "google-ads-alcohol", testDocContent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := NewPipeline(mockChunks, &fakeEmbedder{}, mockVectors, "policy_chunks")

	_, err := pipeline.IndexAll(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
