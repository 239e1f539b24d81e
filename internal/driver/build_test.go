package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"swell/internal/ast"
	"swell/internal/program"
	"swell/internal/source"
)

func testProgram(t *testing.T) *program.Program {
	t.Helper()
	sp := source.Span{}
	p := program.NewProgram(&program.Options{NoTreeShaking: true}, source.NewFileSet())
	file := p.Files.Add("main.swl", []byte("export function inc(x: i32): i32 { return x + 1; }"))
	src := p.AddSource("main.swl", file, true)
	fn := &program.FunctionPrototype{
		ElementBase: program.ElementBase{SimpleName: "inc", Internal: "inc", ElemFlags: program.FlagExport},
		Params:      []program.ParamDecl{{Name: "x", Type: "i32"}},
		ReturnType:  "i32",
		Body: ast.NewBlock(sp, ast.NewReturn(sp,
			ast.NewBinary(sp, ast.OpAdd, ast.NewIdent(sp, "x"), ast.NewIntLiteral(sp, 1)))),
	}
	src.AddDecl(fn)
	p.Register("inc", fn)
	return p
}

func TestBuildFromProgramWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "main.wat")
	res, err := Build(context.Background(), &Request{
		Program:     testProgram(t),
		TextOutPath: out,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected errors: %+v", res.Bag.Items())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	for _, want := range []string{"(module", "func $inc", "i32.add", `(export "inc"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("artifact missing %q:\n%s", want, data)
		}
	}
	if res.Module == nil || !res.Module.Finalized() {
		t.Fatalf("module must be finalized")
	}
}

func TestBuildFromBundleUsesCache(t *testing.T) {
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "main.swb")
	f, err := os.Create(bundlePath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := program.WriteBundle(f, testProgram(t)); err != nil {
		t.Fatalf("bundle: %v", err)
	}
	f.Close()

	cache, err := OpenCacheAt(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	req := &Request{
		BundlePath: bundlePath,
		Options:    &program.Options{NoTreeShaking: true},
		Cache:      cache,
	}
	first, err := Build(context.Background(), req)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if first.Cached {
		t.Fatalf("first build cannot be cached")
	}
	second, err := Build(context.Background(), req)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !second.Cached {
		t.Fatalf("second build must hit the cache")
	}
	if second.Text != first.Text {
		t.Fatalf("cached text differs")
	}
}

func TestBuildEventsArriveInStageOrder(t *testing.T) {
	events := make(chan Event, 64)
	_, err := Build(context.Background(), &Request{
		Program:  testProgram(t),
		Progress: ChannelSink{Ch: events},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	close(events)
	var stages []Stage
	for ev := range events {
		stages = append(stages, ev.Stage)
	}
	if len(stages) == 0 {
		t.Fatalf("no events received")
	}
	last := stages[0]
	for _, s := range stages {
		if s < last {
			t.Fatalf("stages regressed: %v", stages)
		}
		last = s
	}
}

func TestOptionsFingerprintDiffers(t *testing.T) {
	a := optionsFingerprint(&program.Options{})
	b := optionsFingerprint(&program.Options{Target: program.TargetWasm64})
	if string(a) == string(b) {
		t.Fatalf("different targets must fingerprint differently")
	}
}
