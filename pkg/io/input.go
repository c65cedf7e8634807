package io

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/peergraph/pkg/depgraph"
	pgerrors "github.com/matzehuels/peergraph/pkg/errors"
)

// Format is an input encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath returns the format implied by path's extension. Anything
// other than .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Input is a build request: manifests, their resolution table and the
// missing-peer policy.
type Input struct {
	Manifests   []depgraph.Manifest  `json:"manifests" yaml:"manifests"`
	Resolutions depgraph.Resolutions `json:"resolutions" yaml:"resolutions"`

	// FailOnMissingPeerDependencies is nil when the document leaves the
	// policy unset.
	FailOnMissingPeerDependencies *bool `json:"failOnMissingPeerDependencies,omitempty" yaml:"failOnMissingPeerDependencies,omitempty"`
}

// FailOnMissingPeers reports the effective policy, defaulting to true.
func (in *Input) FailOnMissingPeers() bool {
	return in.FailOnMissingPeerDependencies == nil || *in.FailOnMissingPeerDependencies
}

// Options returns build options reflecting the document's policy.
func (in *Input) Options() depgraph.Options {
	return depgraph.Options{AllowMissingPeers: !in.FailOnMissingPeers()}
}

// Root returns "name@version" of the root manifest, or "" if there is none.
func (in *Input) Root() string {
	if len(in.Manifests) == 0 {
		return ""
	}
	return in.Manifests[0].String()
}

// ReadInput decodes an input document from r.
func ReadInput(r io.Reader, format Format) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, pgerrors.Wrap(pgerrors.ErrCodeInvalidInput, err, "read input")
	}
	return ParseInput(data, format)
}

// ParseInput decodes an input document held in memory.
func ParseInput(data []byte, format Format) (*Input, error) {
	var in Input
	switch format {
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&in); err != nil {
			return nil, pgerrors.Wrap(pgerrors.ErrCodeInvalidFormat, err, "decode json input")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &in); err != nil {
			return nil, pgerrors.Wrap(pgerrors.ErrCodeInvalidFormat, err, "decode yaml input")
		}
	default:
		return nil, pgerrors.New(pgerrors.ErrCodeUnsupported, "unsupported input format %q", format)
	}
	if len(in.Manifests) == 0 {
		return nil, pgerrors.New(pgerrors.ErrCodeInvalidInput, "input has no manifests")
	}
	return &in, nil
}

// LoadInput reads the input document at path.
func LoadInput(path string) (*Input, error) {
	if err := pgerrors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, pgerrors.Wrap(pgerrors.ErrCodeFileNotFound, err, "input %s", path)
	}
	if err != nil {
		return nil, pgerrors.Wrap(pgerrors.ErrCodeInvalidInput, err, "read %s", path)
	}
	in, err := ParseInput(data, FormatFromPath(path))
	if err != nil {
		return nil, pgerrors.Wrap(pgerrors.GetCode(err), err, "%s", path)
	}
	return in, nil
}
