package image

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/daimatz/godex/pkg/dex"
)

func sampleImage(t *testing.T) *Image {
	t.Helper()
	pool := dex.NewPool("sample")
	pool.StringIndex("hello")
	pool.MethodIndex(dex.MethodID{Class: "LMain;", Name: "add", Descriptor: "(II)I"})

	add := MethodDef{Name: "add", Descriptor: "(II)I", Flags: dex.AccPublic | dex.AccStatic}
	err := add.SetCodeItem(&dex.CodeItem{
		RegistersSize: 3, InsSize: 2,
		Insns: []uint16{0x0090, 0x0201, 0x000f}, // add-int v0, v1, v2; return v0
	})
	if err != nil {
		t.Fatal(err)
	}
	greeting := "hi"
	img := &Image{
		Location: "sample",
		Classes: []ClassDef{{
			Descriptor: "LMain;",
			Super:      "Ljava/lang/Object;",
			Flags:      dex.AccPublic,
			Fields: []FieldDef{
				{Name: "count", Type: "I", Flags: dex.AccStatic, Value: 3},
				{Name: "greeting", Type: "Ljava/lang/String;", Flags: dex.AccStatic, StringValue: &greeting},
			},
			Methods: []MethodDef{add, {Name: "nat", Descriptor: "()V", Flags: dex.AccNative | dex.AccStatic}},
		}},
	}
	img.SetPools(pool.File())
	return img
}

func TestRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "zstd"}[compress], func(t *testing.T) {
			img := sampleImage(t)
			data, err := Marshal(img, compress)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			got, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.Checksum != img.Checksum || got.Checksum == 0 {
				t.Errorf("checksum: got %x, want %x", got.Checksum, img.Checksum)
			}
			if err := got.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			c := got.FindClass("LMain;")
			if c == nil {
				t.Fatal("class LMain; missing")
			}
			if *c.Fields[1].StringValue != "hi" {
				t.Errorf("string value: got %q, want %q", *c.Fields[1].StringValue, "hi")
			}
			code, err := c.Methods[0].CodeItem()
			if err != nil {
				t.Fatal(err)
			}
			if code.RegistersSize != 3 || len(code.Insns) != 3 {
				t.Errorf("code: got %d registers, %d units", code.RegistersSize, len(code.Insns))
			}
			if got.File().Strings[0] != "hello" {
				t.Errorf("strings: got %v", got.File().Strings)
			}
		})
	}
}

func TestDeterministicEncoding(t *testing.T) {
	a, err := Marshal(sampleImage(t), false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(sampleImage(t), false)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestChecksumMismatch(t *testing.T) {
	data, err := Marshal(sampleImage(t), false)
	if err != nil {
		t.Fatal(err)
	}
	// "hello" を "jello" に書き換えて改ざんを検出させる
	i := bytes.Index(data, []byte("hello"))
	if i < 0 {
		t.Fatal("string not found in encoding")
	}
	data[i] = 'j'
	_, err = Unmarshal(data)
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("got %v, want ErrChecksum", err)
	}
}

func TestBadMagic(t *testing.T) {
	if _, err := Unmarshal([]byte("NOPE")); err == nil {
		t.Error("expected error")
	}
}

func TestValidate(t *testing.T) {
	img := sampleImage(t)
	img.Classes[0].Methods[1].Flags = dex.AccStatic
	if err := img.Validate(); err == nil {
		t.Error("method without code but without native flag: expected error")
	}
	img = sampleImage(t)
	img.Classes = append(img.Classes, img.Classes[0])
	if err := img.Validate(); err == nil {
		t.Error("duplicate class: expected error")
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.gdx", "a.gdxz"} {
		path := filepath.Join(dir, name)
		if err := Save(path, sampleImage(t)); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
		img, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
		if len(img.Classes) != 1 {
			t.Errorf("%s: got %d classes, want 1", name, len(img.Classes))
		}
	}
}
