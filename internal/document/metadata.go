package document

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/kubesage/kubesage/internal/log"
)

// Format classifies an uploaded file by its extension.
type Format string

const (
	FormatYAML     Format = "yaml"
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Metadata keys written by the ingestion pipeline.
const (
	MetaFileName    = "fileName"
	MetaFormat      = "format"
	MetaUploadedAt  = "uploadedAt"
	MetaChunkIndex  = "chunkIndex"
	MetaTotalChunks = "totalChunks"
)

// DetectFormat maps a file name to its Format by extension. Unknown
// extensions fall back to FormatText.
func DetectFormat(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".pdf":
		return FormatPDF
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Extractor derives per-document metadata from file content. Extraction
// is best-effort: a file that fails format-specific parsing still gets
// the base metadata.
type Extractor struct {
	logger log.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Extractor{logger: logger}
}

// k8sManifest captures the manifest fields the extractor cares about.
// Everything else in the document is ignored.
type k8sManifest struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name        string            `yaml:"name"`
		Namespace   string            `yaml:"namespace"`
		Labels      map[string]string `yaml:"labels"`
		Annotations map[string]string `yaml:"annotations"`
	} `yaml:"metadata"`
	Spec struct {
		Selector   map[string]any `yaml:"selector"`
		Containers []struct {
			Name string `yaml:"name"`
		} `yaml:"containers"`
		Template struct {
			Spec struct {
				Containers []struct {
					Name string `yaml:"name"`
				} `yaml:"containers"`
			} `yaml:"spec"`
		} `yaml:"template"`
	} `yaml:"spec"`
}

// Extract returns the metadata map for one file. The base keys fileName,
// format and uploadedAt are always present; YAML manifests contribute
// Kubernetes resource fields and text-like formats a line count.
func (e *Extractor) Extract(content, fileName string, format Format) map[string]string {
	meta := map[string]string{
		MetaFileName:   fileName,
		MetaFormat:     string(format),
		MetaUploadedAt: time.Now().UTC().Format(time.RFC3339),
	}

	switch format {
	case FormatYAML:
		e.extractManifest(content, fileName, meta)
	case FormatText, FormatMarkdown:
		meta["lineCount"] = strconv.Itoa(strings.Count(content, "\n") + 1)
	case FormatPDF:
		// Content arrives pre-extracted as text; nothing format-specific
		// survives to this point.
	}
	return meta
}

// extractManifest parses content as a Kubernetes manifest and copies the
// recognized fields into meta. Map-valued fields are stored as compact
// JSON so they survive the string-only metadata contract.
func (e *Extractor) extractManifest(content, fileName string, meta map[string]string) {
	var manifest k8sManifest
	if err := yaml.Unmarshal([]byte(content), &manifest); err != nil {
		e.logger.Warn("yaml metadata extraction failed", "fileName", fileName, "error", err)
		return
	}

	if manifest.APIVersion != "" {
		meta["apiVersion"] = manifest.APIVersion
	}
	if manifest.Kind != "" {
		meta["kind"] = manifest.Kind
	}
	if manifest.Metadata.Name != "" {
		meta["resourceName"] = manifest.Metadata.Name
	}
	if manifest.Metadata.Namespace != "" {
		meta["namespace"] = manifest.Metadata.Namespace
	}
	putJSON(meta, "labels", manifest.Metadata.Labels)
	putJSON(meta, "annotations", manifest.Metadata.Annotations)
	if len(manifest.Spec.Selector) > 0 {
		if encoded, err := json.Marshal(manifest.Spec.Selector); err == nil {
			meta["selector"] = string(encoded)
		}
	}

	containers := manifest.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		containers = manifest.Spec.Containers
	}
	if len(containers) > 0 {
		names := make([]string, len(containers))
		for i, c := range containers {
			names[i] = c.Name
		}
		meta["containers"] = strings.Join(names, ",")
	}
}

func putJSON(meta map[string]string, key string, value map[string]string) {
	if len(value) == 0 {
		return
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return
	}
	meta[key] = string(encoded)
}
