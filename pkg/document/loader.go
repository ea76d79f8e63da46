package document

import (
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/zurustar/flowrun/pkg/fileutil"
	"github.com/zurustar/flowrun/pkg/logger"
)

// Loader reads documents from a file system.
type Loader struct {
	fs       fileutil.FileSystem
	encoding string
	log      *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEncoding sets the charset of the document files.
func WithEncoding(charset string) LoaderOption {
	return func(l *Loader) { l.encoding = charset }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// NewLoader Loaderを作成
func NewLoader(fsys fileutil.FileSystem, opts ...LoaderOption) *Loader {
	l := &Loader{fs: fsys, log: logger.GetLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the document at name, or every document below name when it is
// a directory. Directory entries are loaded in lexical order.
func (l *Loader) Load(name string) ([]*Document, error) {
	if FormatOf(name) != FormatUnknown {
		actual, err := l.fs.Find(name)
		if err != nil {
			return nil, fmt.Errorf("failed to find %s: %w", name, err)
		}
		doc, err := l.loadFile(actual)
		if err != nil {
			return nil, err
		}
		return []*Document{doc}, nil
	}

	files, err := l.findDocuments(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents in %s: %w", name, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no flowchart documents found in %s", name)
	}

	docs := make([]*Document, 0, len(files))
	for _, file := range files {
		doc, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// findDocuments .toml/.jsonファイルを検出（case-insensitive）
func (l *Loader) findDocuments(dir string) ([]string, error) {
	var files []string
	err := l.fs.Walk(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if fileutil.HasExt(p, Extensions...) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// loadFile 単一のドキュメントを読み込む
func (l *Loader) loadFile(name string) (*Document, error) {
	format := FormatOf(name)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%s: not a flowchart document", name)
	}

	data, err := l.fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	data, err = Decode(data, l.encoding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	doc, err := Parse(data, format, name)
	if err != nil {
		return nil, err
	}
	l.log.Debug("Document loaded", "base", l.fs.Base(), "file", name, "flowchart", doc.Name, "blocks", len(doc.Blocks))
	return doc, nil
}
