package linker

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/daimatz/godex/pkg/dex"
	"github.com/daimatz/godex/pkg/image"
)

// ErrClassNotFound is the cause of every failed class lookup.
var ErrClassNotFound = errors.New("class not found")

// Definition is a class definition together with the pools its code
// indexes into and the loader that provided it.
type Definition struct {
	Class  *image.ClassDef
	File   *dex.File
	Loader Loader
}

// Loader finds class definitions by descriptor.
type Loader interface {
	LoadClass(descriptor string) (*Definition, error)
}

// ImageLoader serves classes from one image, delegating to the parent first.
type ImageLoader struct {
	Image  *image.Image
	Parent Loader

	once  sync.Once
	file  *dex.File
	index map[string]*image.ClassDef
}

// NewImageLoader creates a loader over img.
func NewImageLoader(img *image.Image, parent Loader) *ImageLoader {
	return &ImageLoader{Image: img, Parent: parent}
}

func (cl *ImageLoader) build() {
	cl.once.Do(func() {
		cl.file = cl.Image.File()
		cl.index = make(map[string]*image.ClassDef, len(cl.Image.Classes))
		for i := range cl.Image.Classes {
			def := &cl.Image.Classes[i]
			cl.index[def.Descriptor] = def
		}
	})
}

// LoadClass implements Loader.
func (cl *ImageLoader) LoadClass(descriptor string) (*Definition, error) {
	if cl.Parent != nil {
		if def, err := cl.Parent.LoadClass(descriptor); err == nil {
			return def, nil
		}
	}
	cl.build()
	def, ok := cl.index[descriptor]
	if !ok {
		return nil, errors.Wrapf(ErrClassNotFound, "image %s: %s", cl.Image.Location, descriptor)
	}
	return &Definition{Class: def, File: cl.file, Loader: cl}, nil
}

// DirLoader serves classes from every image file in a directory,
// delegating to the parent first. Images are opened on first use.
type DirLoader struct {
	Dir    string
	Parent Loader

	mu      sync.Mutex
	loaded  bool
	loaders []*ImageLoader
}

// NewDirLoader creates a loader over the images in dir.
func NewDirLoader(dir string, parent Loader) *DirLoader {
	return &DirLoader{Dir: dir, Parent: parent}
}

func isImageFile(name string) bool {
	return strings.HasSuffix(name, ".gdx") || strings.HasSuffix(name, ".gdxz")
}

func (cl *DirLoader) ensureLoaded() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.loaded {
		return nil
	}
	entries, err := os.ReadDir(cl.Dir)
	if err != nil {
		return errors.Wrapf(err, "dir: reading %s", cl.Dir)
	}
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		img, err := image.Load(filepath.Join(cl.Dir, e.Name()))
		if err != nil {
			return errors.Wrap(err, "dir")
		}
		cl.loaders = append(cl.loaders, NewImageLoader(img, nil))
	}
	cl.loaded = true
	log.Debugf("dir loader %s: %d images", cl.Dir, len(cl.loaders))
	return nil
}

// LoadClass implements Loader.
func (cl *DirLoader) LoadClass(descriptor string) (*Definition, error) {
	if cl.Parent != nil {
		if def, err := cl.Parent.LoadClass(descriptor); err == nil {
			return def, nil
		}
	}
	if err := cl.ensureLoaded(); err != nil {
		return nil, err
	}
	for _, l := range cl.loaders {
		if def, err := l.LoadClass(descriptor); err == nil {
			def.Loader = cl
			return def, nil
		}
	}
	return nil, errors.Wrapf(ErrClassNotFound, "dir %s: %s", cl.Dir, descriptor)
}
