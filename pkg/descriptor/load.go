// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/modsolve/modsolve/pkg/cueutil"
)

type (
	// Loader reads the descriptor at the root of a location.
	// Implementations must be safe for concurrent use.
	Loader interface {
		Load(fsys fs.FS) (*Descriptor, error)
	}

	// FSLoader probes mod.cue, mod.json and mod.toml in that order at the
	// root of a filesystem and parses the first one present.
	FSLoader struct {
		// MaxFileSize bounds descriptor size. Zero means cueutil.DefaultMaxFileSize.
		MaxFileSize int64
	}
)

// Load is FSLoader{}.Load.
func Load(fsys fs.FS) (*Descriptor, error) {
	return FSLoader{}.Load(fsys)
}

// LoadDir loads the descriptor of a module directory on disk.
func LoadDir(dir string) (*Descriptor, error) {
	return FSLoader{}.Load(os.DirFS(dir))
}

// Load implements Loader. It returns ErrNoDescriptor when no descriptor file
// exists and an *InvalidDescriptorError when the first one found is invalid.
func (l FSLoader) Load(fsys fs.FS) (*Descriptor, error) {
	maxSize := l.MaxFileSize
	if maxSize <= 0 {
		maxSize = cueutil.DefaultMaxFileSize
	}

	for _, probe := range probeOrder {
		info, err := fs.Stat(fsys, probe.file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", probe.file, err)
		}
		if info.IsDir() {
			continue
		}
		if info.Size() > maxSize {
			return nil, &InvalidDescriptorError{
				File: probe.file,
				Err:  fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", probe.file, info.Size(), maxSize),
			}
		}

		data, err := fs.ReadFile(fsys, probe.file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", probe.file, err)
		}
		return Parse(data, probe.format, probe.file, maxSize)
	}
	return nil, ErrNoDescriptor
}

// Parse decodes and validates descriptor bytes in the given format. file is
// used in error messages and recorded in the result.
func Parse(data []byte, format Format, file string, maxSize int64) (*Descriptor, error) {
	if maxSize <= 0 {
		maxSize = cueutil.DefaultMaxFileSize
	}
	opts := []cueutil.Option{cueutil.WithFilename(file), cueutil.WithMaxFileSize(maxSize)}

	var (
		raw *rawDescriptor
		err error
	)
	switch format {
	case FormatCUE, FormatJSON:
		raw, err = cueutil.Decode[rawDescriptor](schema, data, "#Descriptor", opts...)
	case FormatTOML:
		if err = cueutil.CheckFileSize(data, maxSize, file); err != nil {
			break
		}
		var doc map[string]any
		if err = toml.Unmarshal(data, &doc); err != nil {
			err = &cueutil.ValidationError{File: file, Issues: []cueutil.Issue{{Message: err.Error()}}}
			break
		}
		raw, err = cueutil.DecodeGo[rawDescriptor](schema, doc, "#Descriptor", opts...)
	default:
		return nil, fmt.Errorf("unknown descriptor format %q", format)
	}
	if err != nil {
		return nil, &InvalidDescriptorError{File: file, Err: err}
	}

	d, err := raw.build(file)
	if err != nil {
		return nil, &InvalidDescriptorError{File: file, Err: err}
	}
	d.File = file
	d.Format = format
	return d, nil
}
