// Package feed loads product and category rows from delimited files or a
// built-in template.
package feed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"catalog/importer/internal/config"
	"catalog/importer/internal/domain"
)

const (
	productsFile   = "products.csv"
	categoriesFile = "categories.csv"
)

var ErrUnknownTemplate = errors.New("unknown feed template")

//go:embed templates
var templates embed.FS

// Feed is the validated input of one import run.
type Feed struct {
	Products   []domain.ProductRow
	Categories []domain.CategoryRow
	Rejected   []*RowError
}

// Templates lists the built-in template names.
func Templates() []string {
	entries, err := templates.ReadDir("templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

type Source struct {
	cfg config.FeedConfig
}

func NewSource(cfg config.FeedConfig) *Source {
	return &Source{cfg: cfg}
}

// file is one input selected for a run. Only one of path and template is set.
type file struct {
	path     string
	template string
}

func (f file) name() string {
	if f.path != "" {
		return f.path
	}
	return "template " + f.template
}

func (f file) open() (io.ReadCloser, error) {
	if f.path != "" {
		return os.Open(f.path)
	}
	return templates.Open(f.template)
}

// selectFiles applies the explicit-path-first rule. Template categories are
// only used alongside template products.
func (s *Source) selectFiles() (products file, categories *file, err error) {
	dir := path.Join("templates", s.cfg.Template)

	if s.cfg.ProductsPath != "" {
		products = file{path: s.cfg.ProductsPath}
	} else {
		if s.cfg.Template == "" {
			return file{}, nil, fmt.Errorf("%w: no products file or template given", ErrUnknownTemplate)
		}
		if _, err := fs.Stat(templates, path.Join(dir, productsFile)); err != nil {
			return file{}, nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownTemplate, s.cfg.Template, Templates())
		}
		products = file{template: path.Join(dir, productsFile)}
	}

	switch {
	case s.cfg.CategoriesPath != "":
		categories = &file{path: s.cfg.CategoriesPath}
	case products.template != "":
		if _, err := fs.Stat(templates, path.Join(dir, categoriesFile)); err == nil {
			categories = &file{template: path.Join(dir, categoriesFile)}
		}
	}

	return products, categories, nil
}

// Load reads and validates the selected feed files. Unreadable files and
// missing required columns are fatal; invalid rows are collected in
// Feed.Rejected.
func (s *Source) Load(ctx context.Context) (*Feed, error) {
	productsSrc, categoriesSrc, err := s.selectFiles()
	if err != nil {
		return nil, err
	}

	feed := &Feed{}
	var productsRejected, categoriesRejected []*RowError

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := s.readTable(ctx, productsSrc)
		if err != nil {
			return err
		}
		feed.Products, productsRejected, err = parseProducts(productsSrc.name(), t, s.cfg)
		return err
	})

	if categoriesSrc != nil {
		g.Go(func() error {
			t, err := s.readTable(ctx, *categoriesSrc)
			if err != nil {
				return err
			}
			feed.Categories, categoriesRejected, err = parseCategories(categoriesSrc.name(), t, s.cfg.CategoryColumns)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	feed.Rejected = append(productsRejected, categoriesRejected...)
	logRejected(feed.Rejected)

	log.Infof("📄 Loaded feed from %s: %d products, %d categories, %d rejected rows",
		productsSrc.name(), len(feed.Products), len(feed.Categories), len(feed.Rejected))

	return feed, nil
}

func (s *Source) readTable(ctx context.Context, f file) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := f.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.name(), err)
	}
	defer rc.Close()

	// built-in templates are always comma separated
	delimiter := ','
	if f.path != "" {
		delimiter = s.cfg.DelimiterRune()
	}

	t, err := ReadRecords(rc, WithDelimiter(delimiter))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.name(), err)
	}
	return t, nil
}
