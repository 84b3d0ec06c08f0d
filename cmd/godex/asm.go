package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/daimatz/godex/pkg/image"
)

func cmdAsm(fs *flag.FlagSet, c *common, args []string, stdout io.Writer) error {
	out := fs.String("o", "", "output image (default: the first source with .gdx, or .gdxz with -z)")
	compress := fs.Bool("z", false, "compress the image with zstd")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := c.load(); err != nil {
		return err
	}
	paths := fs.Args()
	for _, p := range paths {
		if !isSource(p) {
			return errors.Errorf("asm: %s is not a %s source", p, sourceExt)
		}
	}
	img, err := assemble(paths)
	if err != nil {
		return err
	}
	if img == nil {
		fs.Usage()
		return errors.New("asm: no sources given")
	}
	path := *out
	if path == "" {
		ext := ".gdx"
		if *compress {
			ext = ".gdxz"
		}
		path = strings.TrimSuffix(paths[0], sourceExt) + ext
	} else if *compress && !strings.HasSuffix(path, ".gdxz") {
		return errors.Errorf("asm: compressed output %s must end in .gdxz", path)
	}
	if err := image.Save(path, img); err != nil {
		return err
	}
	size := "?"
	if b, err := image.Marshal(img, strings.HasSuffix(path, ".gdxz")); err == nil {
		size = humanize.IBytes(uint64(len(b)))
	}
	fmt.Fprintf(stdout, "wrote %s: %d classes, %s\n", path, len(img.Classes), size)
	return nil
}
