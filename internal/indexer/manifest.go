package indexer

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"policy-rag/internal/policy"
)

// Manifest describes one fetched policy document. It lives next to the
// markdown file as a .yaml sidecar and supplies the attributes the
// document text itself cannot carry.
type Manifest struct {
	DocID       string
	URL         string
	Source      policy.Source
	Region      policy.Region
	ContentType policy.ContentType
	FetchedAt   time.Time
}

// manifestFile is the raw YAML shape before validation.
type manifestFile struct {
	DocID       string    `yaml:"doc_id"`
	URL         string    `yaml:"url"`
	Source      string    `yaml:"source"`
	Region      string    `yaml:"region"`
	ContentType string    `yaml:"content_type"`
	FetchedAt   time.Time `yaml:"fetched_at"`
}

// LoadManifest reads and validates a document manifest. Region and
// content type are optional and default to global and general.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var raw manifestFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	if raw.DocID == "" {
		return nil, fmt.Errorf("manifest %s: doc_id is required", path)
	}
	if raw.URL == "" {
		return nil, fmt.Errorf("manifest %s: url is required", path)
	}
	if raw.Source == "" {
		return nil, fmt.Errorf("manifest %s: source is required", path)
	}
	if raw.FetchedAt.IsZero() {
		return nil, fmt.Errorf("manifest %s: fetched_at is required", path)
	}

	source, err := policy.ParseSource(raw.Source)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	m := &Manifest{
		DocID:       raw.DocID,
		URL:         raw.URL,
		Source:      source,
		Region:      policy.RegionGlobal,
		ContentType: policy.ContentTypeGeneral,
		FetchedAt:   raw.FetchedAt,
	}

	if raw.Region != "" {
		region, err := policy.ParseRegion(raw.Region)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		m.Region = region
	}
	if raw.ContentType != "" {
		contentType, err := policy.ParseContentType(raw.ContentType)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		m.ContentType = contentType
	}

	return m, nil
}

// VersionedDocID returns the document identifier scoped to the fetch
// date. Re-ingesting the same fetch overwrites its chunks; a later fetch
// becomes a separate document version.
func (m *Manifest) VersionedDocID() string {
	return fmt.Sprintf("%s_%s", m.DocID, m.FetchedAt.Format("2006-01-02"))
}
