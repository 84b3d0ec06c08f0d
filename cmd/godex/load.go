package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/daimatz/godex/pkg/asm"
	"github.com/daimatz/godex/pkg/image"
	"github.com/daimatz/godex/pkg/linker"
)

const sourceExt = ".dasm"

func isSource(path string) bool { return strings.HasSuffix(path, sourceExt) }

// assemble assembles every source among paths into one image, or returns
// nil when there are none.
func assemble(paths []string) (*image.Image, error) {
	var a *asm.Assembler
	for _, p := range paths {
		if !isSource(p) {
			continue
		}
		if a == nil {
			a = asm.New(p)
		}
		if err := a.AddFile(p); err != nil {
			return nil, err
		}
	}
	if a == nil {
		return nil, nil
	}
	return a.Image()
}

// program is what a command operates on: the images named on the command
// line plus a loader chain over them.
type program struct {
	images []*image.Image
	loader linker.Loader
}

// loadProgram builds the loader chain for paths. Earlier paths are parents
// of later ones, so the first definition of a class wins.
func loadProgram(paths []string) (*program, error) {
	if len(paths) == 0 {
		return nil, errors.New("no program given")
	}
	p := &program{}
	src, err := assemble(paths)
	if err != nil {
		return nil, err
	}
	if src != nil {
		p.add(src)
	}
	for _, path := range paths {
		if isSource(path) {
			continue
		}
		fi, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrap(err, "loading program")
		}
		if fi.IsDir() {
			p.loader = linker.NewDirLoader(path, p.loader)
			continue
		}
		img, err := image.Load(path)
		if err != nil {
			return nil, err
		}
		p.add(img)
	}
	return p, nil
}

func (p *program) add(img *image.Image) {
	p.images = append(p.images, img)
	p.loader = linker.NewImageLoader(img, p.loader)
}
