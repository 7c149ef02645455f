package indexer

import "policy-rag/internal/policy"

// Chunk is one indexable unit cut from a policy document section. Text
// carries the bracketed section path prefix so the embedding and the
// generation prompt both see the hierarchy context.
type Chunk struct {
	Index   int                 // Chunk index within the document (starts at 0)
	Section string              // Leaf section title
	Level   policy.SectionLevel // Hierarchy level of the section
	Path    string              // Format: "Alcohol > Sales restrictions"
	Text    string              // Format: "[<path>]\n\n<body>"
}

// Stats summarizes an ingestion run over a document directory.
type Stats struct {
	DocsIndexed     int
	DocsFailed      int
	ChunksIndexed   int
	SectionsSkipped int
}
