// Package templates renders the embedded YAML manifests the framework
// applies to clusters. Manifests are grouped per component; template
// files (.yaml.tmpl) are processed with the caller's data, plain YAML
// files are used as-is, and a component's files are combined into one
// multi-document manifest in directory order.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"text/template"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	k8syaml "k8s.io/apimachinery/pkg/util/yaml"
)

//go:embed manifests/*
var manifestsFS embed.FS

// Render combines all manifests of a component into one YAML document
// stream, executing templates with the given data.
func Render(component string, data any) (string, error) {
	dir := path.Join("manifests", component)
	entries, err := manifestsFS.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read component directory %s: %w", dir, err)
	}

	var combined bytes.Buffer
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yaml.tmpl") {
			continue
		}

		content, err := RenderFile(path.Join(component, name), data)
		if err != nil {
			return "", err
		}

		if combined.Len() > 0 {
			combined.WriteString("\n---\n")
		}
		combined.WriteString(content)
	}

	if combined.Len() == 0 {
		return "", fmt.Errorf("no manifests found for component %s", component)
	}
	return combined.String(), nil
}

// RenderFile renders a single manifest file, given relative to the
// manifests root (e.g. "scale/pvc.yaml.tmpl").
func RenderFile(relPath string, data any) (string, error) {
	full := path.Join("manifests", relPath)
	content, err := manifestsFS.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest %s: %w", full, err)
	}

	if !strings.HasSuffix(relPath, ".tmpl") {
		return string(content), nil
	}

	tmpl, err := template.New(path.Base(relPath)).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", relPath, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", relPath, err)
	}
	return buf.String(), nil
}

// Objects decodes a multi-document YAML manifest into unstructured
// objects, skipping empty documents.
func Objects(manifest string) ([]*unstructured.Unstructured, error) {
	decoder := k8syaml.NewYAMLOrJSONDecoder(strings.NewReader(manifest), 4096)

	var objs []*unstructured.Unstructured
	for {
		var obj unstructured.Unstructured
		if err := decoder.Decode(&obj); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		if len(obj.Object) == 0 {
			continue
		}
		objs = append(objs, obj.DeepCopy())
	}
	return objs, nil
}

// RenderObjects renders a component and decodes the result.
func RenderObjects(component string, data any) ([]*unstructured.Unstructured, error) {
	manifest, err := Render(component, data)
	if err != nil {
		return nil, err
	}
	return Objects(manifest)
}
