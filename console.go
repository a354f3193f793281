package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
)

func newCompleter(sys *System, table notes.Table) prompt.Completer {
	var cmds []prompt.Suggest
	for _, name := range sys.Commands() {
		desc := sys.Help(name)
		if i := strings.Index(desc, " "); i >= 0 && strings.HasPrefix(desc, name) {
			desc = desc[i+1:]
		}
		cmds = append(cmds, prompt.Suggest{Text: name, Description: desc})
	}
	cmds = append(cmds, prompt.Suggest{Text: "quit", Description: "leave the console"})

	var args []prompt.Suggest
	for _, k := range table.Keys() {
		args = append(args, prompt.Suggest{Text: string(k)})
	}
	for _, t := range []osc.Timbre{osc.Sine, osc.Square, osc.Triangle, osc.Sawtooth, osc.Sampled} {
		args = append(args, prompt.Suggest{Text: t.String(), Description: "timbre"})
	}
	for _, c := range []notes.Chord{notes.Single, notes.Major, notes.Minor, notes.Diminished, notes.Octave} {
		args = append(args, prompt.Suggest{Text: string(c), Description: "chord"})
	}

	return func(d prompt.Document) []prompt.Suggest {
		word := d.GetWordBeforeCursor()
		if word == "" {
			return nil
		}
		if !strings.Contains(strings.TrimSpace(d.TextBeforeCursor()), " ") {
			return prompt.FilterHasPrefix(cmds, word, true)
		}
		return prompt.FilterHasPrefix(args, word, true)
	}
}

func isQuit(line string) bool {
	switch strings.TrimSpace(line) {
	case "quit", "exit":
		return true
	}
	return false
}

func runConsole(sys *System, table notes.Table, w io.Writer) {
	completer := newCompleter(sys, table)
	for {
		t := prompt.Input("> ", completer)
		if isQuit(t) {
			return
		}
		runLine(sys, t, w)
	}
}

func runLine(sys *System, line string, w io.Writer) bool {
	out, err := sys.ProcessCmd(line)
	if err != nil {
		fmt.Fprintln(w, "ERROR: ", err)
		return false
	}
	if out != "" {
		fmt.Fprintln(w, out)
	}
	return true
}

// runScript feeds r to the system line by line. Lines starting with // are skipped.
// It returns the number of lines that failed.
func runScript(sys *System, r io.Reader, w io.Writer) (int, error) {
	failed := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if isQuit(line) {
			break
		}
		if !runLine(sys, line, w) {
			failed++
		}
	}
	return failed, sc.Err()
}
