package document

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kubesage/kubesage/internal/log"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		fileName string
		want     Format
	}{
		{"deployment.yaml", FormatYAML},
		{"service.yml", FormatYAML},
		{"Manifest.YAML", FormatYAML},
		{"runbook.pdf", FormatPDF},
		{"README.md", FormatMarkdown},
		{"notes.markdown", FormatMarkdown},
		{"pod.json", FormatText},
		{"no-extension", FormatText},
		{"", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			if got := DetectFormat(tt.fileName); got != tt.want {
				t.Errorf("DetectFormat(%q) = %q, want %q", tt.fileName, got, tt.want)
			}
		})
	}
}

const deploymentManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: prod
  labels:
    app: web
    tier: frontend
  annotations:
    owner: platform
spec:
  selector:
    matchLabels:
      app: web
  template:
    spec:
      containers:
        - name: nginx
          image: nginx:1.27
        - name: sidecar
          image: envoy:1.31
`

func TestExtractDeploymentManifest(t *testing.T) {
	e := NewExtractor(log.NewNop())
	meta := e.Extract(deploymentManifest, "web.yaml", FormatYAML)

	if meta[MetaFileName] != "web.yaml" {
		t.Errorf("fileName = %q", meta[MetaFileName])
	}
	if meta[MetaFormat] != "yaml" {
		t.Errorf("format = %q", meta[MetaFormat])
	}
	if _, err := time.Parse(time.RFC3339, meta[MetaUploadedAt]); err != nil {
		t.Errorf("uploadedAt %q is not RFC3339: %v", meta[MetaUploadedAt], err)
	}

	if meta["apiVersion"] != "apps/v1" {
		t.Errorf("apiVersion = %q", meta["apiVersion"])
	}
	if meta["kind"] != "Deployment" {
		t.Errorf("kind = %q", meta["kind"])
	}
	if meta["resourceName"] != "web" {
		t.Errorf("resourceName = %q", meta["resourceName"])
	}
	if meta["namespace"] != "prod" {
		t.Errorf("namespace = %q", meta["namespace"])
	}
	if meta["containers"] != "nginx,sidecar" {
		t.Errorf("containers = %q", meta["containers"])
	}

	var labels map[string]string
	if err := json.Unmarshal([]byte(meta["labels"]), &labels); err != nil {
		t.Fatalf("labels %q is not JSON: %v", meta["labels"], err)
	}
	if labels["app"] != "web" || labels["tier"] != "frontend" {
		t.Errorf("labels = %v", labels)
	}

	var annotations map[string]string
	if err := json.Unmarshal([]byte(meta["annotations"]), &annotations); err != nil {
		t.Fatalf("annotations %q is not JSON: %v", meta["annotations"], err)
	}
	if annotations["owner"] != "platform" {
		t.Errorf("annotations = %v", annotations)
	}

	if meta["selector"] == "" {
		t.Error("selector missing")
	}
}

func TestExtractPodContainers(t *testing.T) {
	manifest := `apiVersion: v1
kind: Pod
metadata:
  name: debug
spec:
  containers:
    - name: shell
`
	e := NewExtractor(log.NewNop())
	meta := e.Extract(manifest, "pod.yaml", FormatYAML)
	if meta["containers"] != "shell" {
		t.Errorf("containers = %q, want pod spec containers", meta["containers"])
	}
}

func TestExtractMalformedYAML(t *testing.T) {
	e := NewExtractor(log.NewNop())
	meta := e.Extract("kind: [unterminated", "broken.yaml", FormatYAML)

	// Base metadata survives a parse failure.
	if meta[MetaFileName] != "broken.yaml" {
		t.Errorf("fileName = %q", meta[MetaFileName])
	}
	if meta[MetaFormat] != "yaml" {
		t.Errorf("format = %q", meta[MetaFormat])
	}
	if _, ok := meta["kind"]; ok {
		t.Error("kind must not be set for unparseable YAML")
	}
}

func TestExtractTextLineCount(t *testing.T) {
	e := NewExtractor(log.NewNop())

	meta := e.Extract("one\ntwo\nthree", "notes.txt", FormatText)
	if meta["lineCount"] != "3" {
		t.Errorf("lineCount = %q, want 3", meta["lineCount"])
	}

	meta = e.Extract("single", "one.md", FormatMarkdown)
	if meta["lineCount"] != "1" {
		t.Errorf("lineCount = %q, want 1", meta["lineCount"])
	}
}

func TestExtractPDFBaseOnly(t *testing.T) {
	e := NewExtractor(log.NewNop())
	meta := e.Extract("extracted text", "runbook.pdf", FormatPDF)
	if len(meta) != 3 {
		t.Errorf("pdf metadata = %v, want base keys only", meta)
	}
}
