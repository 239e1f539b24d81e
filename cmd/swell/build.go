package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"swell/internal/diag"
	"swell/internal/driver"
	"swell/internal/source"
	"swell/internal/ui"
)

var buildCmd = &cobra.Command{
	Use:   "build BUNDLE",
	Short: "Compile a resolved program bundle to a WebAssembly module",
	Long: `Build compiles a frontend-produced .swb program bundle into a
WebAssembly module and writes its text form. Options come from swell.toml
and may be overridden by flags.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("manifest", "swell.toml", "project manifest path")
	buildCmd.Flags().StringP("out", "o", "", "output path for the module text (default: bundle name with .wat)")
	buildCmd.Flags().Bool("ui", false, "show interactive progress")
	buildCmd.Flags().Bool("no-cache", false, "bypass the build cache")
	buildCmd.Flags().String("target", "", "override target (wasm32|wasm64)")
	buildCmd.Flags().Bool("no-tree-shaking", false, "compile every declaration regardless of export")
	buildCmd.Flags().Bool("no-assert", false, "replace assertions with nops")
}

func runBuild(cmd *cobra.Command, args []string) error {
	bundlePath := args[0]
	manifestPath, _ := cmd.Flags().GetString("manifest")
	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}
	if target, _ := cmd.Flags().GetString("target"); target != "" {
		m.Build.Target = target
	}
	if v, _ := cmd.Flags().GetBool("no-tree-shaking"); v {
		m.Build.NoTreeShaking = true
	}
	if v, _ := cmd.Flags().GetBool("no-assert"); v {
		m.Build.NoAssert = true
	}
	opts, err := m.toOptions()
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = strings.TrimSuffix(bundlePath, ".swb") + ".wat"
	}
	maxDiag, _ := cmd.Flags().GetInt("max-diagnostics")

	var cache *driver.Cache
	if noCache, _ := cmd.Flags().GetBool("no-cache"); !noCache {
		cache, err = driver.OpenCache("swell")
		if err != nil {
			// A missing cache is not fatal; build without it.
			cache = nil
		}
	}

	req := &driver.Request{
		BundlePath:     bundlePath,
		Options:        opts,
		MaxDiagnostics: maxDiag,
		TextOutPath:    out,
		Cache:          cache,
	}

	var res driver.Result
	if useUI, _ := cmd.Flags().GetBool("ui"); useUI && isTerminal(os.Stdout) {
		res, err = runBuildWithUI(cmd.Context(), bundlePath, req)
	} else {
		res, err = driver.Build(cmd.Context(), req)
	}
	if err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if res.Bag.Len() > 0 {
		files := res.Files
		if files == nil {
			files = source.NewFileSet()
		}
		renderer := &diag.ConsoleRenderer{Out: os.Stderr, Files: files}
		renderer.Render(res.Bag)
	}
	if res.Bag.HasErrors() {
		return fmt.Errorf("build failed with errors")
	}
	if !quiet {
		printSummary(out, res)
	}
	return nil
}

// printSummary renders the one-line build result box.
func printSummary(out string, res driver.Result) {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("6")).
		Padding(0, 1)
	status := "compiled"
	if res.Cached {
		status = "cached"
	}
	line := fmt.Sprintf("%s → %s", status, out)
	if res.Bag.HasWarnings() {
		line += fmt.Sprintf("  (%d diagnostics)", res.Bag.Len())
	}
	fmt.Println(style.Render(line))
}

type buildOutcome struct {
	result driver.Result
	err    error
}

// runBuildWithUI drives the build under the Bubble Tea progress display.
func runBuildWithUI(ctx context.Context, title string, req *driver.Request) (driver.Result, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.Build(ctx, &reqCopy)
		outcomeCh <- buildOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, []string{title}, events)
	prog := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := prog.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
