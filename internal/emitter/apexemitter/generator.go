// Package apexemitter renders a connection as Apex source: a callout service
// class with DTO wrappers, an optional mock and test class, and the named
// credential and external service descriptors that go with them.
//
// Rendering is pure. Only WriteGeneratedFile and Emit touch the filesystem.
package apexemitter

import (
	"errors"
	"fmt"
	"path"

	"github.com/connectforce/connectforce/internal/spec"
)

var errNilConnection = errors.New("apexemitter: nil connection")

// GenerateApexClasses renders the service class and, depending on opts, the
// mock and test classes, each followed by its .cls-meta.xml companion. The
// output is a pure function of conn and opts.
func GenerateApexClasses(conn *spec.Connection, opts GenerationOptions) ([]spec.GeneratedFile, error) {
	if conn == nil {
		return nil, errNilConnection
	}
	opts = opts.normalized()
	m, err := newModel(conn, opts)
	if err != nil {
		return nil, fmt.Errorf("apexemitter: class name for %q: %w", conn.Name, err)
	}

	classes := []spec.GeneratedFile{m.classFile(m.names.Service, spec.FileServiceClass, m.renderService())}
	if opts.GenerateMockService {
		classes = append(classes, m.classFile(m.names.Mock, spec.FileMock, m.renderMock()))
	}
	if opts.GenerateTestClass {
		classes = append(classes, m.classFile(m.names.Test, spec.FileTest, m.renderTest()))
	}

	out := make([]spec.GeneratedFile, 0, 2*len(classes))
	for _, c := range classes {
		meta, err := classMeta(c)
		if err != nil {
			return nil, fmt.Errorf("apexemitter: meta for %s: %w", c.FileName, err)
		}
		out = append(out, c, meta)
	}
	return out, nil
}

func (m *model) classFile(name string, t spec.FileType, content string) spec.GeneratedFile {
	fileName := name + classFileExt
	return spec.GeneratedFile{
		FileName: fileName,
		Content:  content,
		Type:     t,
		Path:     path.Join(m.opts.OutputPath, fileName),
	}
}
