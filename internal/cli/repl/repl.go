package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	dsmodel "practicelab/internal/dataset/model"
	"practicelab/internal/engine/result"
	"practicelab/internal/practice/service"
	"practicelab/internal/preview"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const commandPrefix = "."

// ErrQuit is returned by Exec for .exit.
var ErrQuit = errors.New("quit")

// Session drives one practice session from a terminal. Lines starting with
// a dot are commands; anything else is executed against the active question.
type Session struct {
	practice *service.Session
	out      io.Writer
	pretty   bool
}

func New(practice *service.Session, out io.Writer, prettyJSON bool) *Session {
	return &Session{practice: practice, out: out, pretty: prettyJSON}
}

// Completer returns tab completion for the built-in commands.
func Completer() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".load"),
		readline.PcItem(".variants"),
		readline.PcItem(".preview"),
		readline.PcItem(".export"),
		readline.PcItem(".run"),
		readline.PcItem(".state"),
		readline.PcItem(".retry"),
		readline.PcItem(".help"),
		readline.PcItem(".exit"),
	)
}

// Run reads lines until EOF, an interrupt on an empty line, or .exit.
func (s *Session) Run(ctx context.Context, rl *readline.Instance) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		err = s.Exec(ctx, line)
		if errors.Is(err, ErrQuit) {
			s.printLine("bye")
			return nil
		}
		if err != nil {
			s.printLine("error: %v", err)
		}
	}
}

// Exec handles a single input line.
func (s *Session) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, commandPrefix) {
		return s.execute(ctx, line)
	}

	tokens, err := shlex.Split(strings.TrimPrefix(line, commandPrefix))
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	args := tokens[1:]
	switch tokens[0] {
	case "exit", "quit":
		return ErrQuit
	case "help":
		s.printHelp()
		return nil
	case "load":
		if len(args) != 1 {
			return fmt.Errorf("usage: .load <question.json|question.yaml>")
		}
		return s.load(ctx, args[0])
	case "variants":
		s.printVariants()
		return nil
	case "preview":
		id, err := s.variantArg(args)
		if err != nil {
			return err
		}
		p, err := s.practice.Preview(ctx, id)
		if err != nil {
			return err
		}
		s.printPreview(p)
		return nil
	case "export":
		if len(args) != 2 {
			return fmt.Errorf("usage: .export <variant> <path>")
		}
		return s.export(ctx, args[0], args[1])
	case "run":
		if len(args) != 1 {
			return fmt.Errorf("usage: .run <file>")
		}
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read code file failed: %w", err)
		}
		return s.execute(ctx, string(code))
	case "state":
		s.printJSON(s.practice.State())
		return nil
	case "retry":
		state, err := s.practice.Retry(ctx)
		if err != nil {
			return err
		}
		s.printJSON(state)
		return nil
	}
	return fmt.Errorf("unknown command: %s%s (try .help)", commandPrefix, tokens[0])
}

func (s *Session) load(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read question file failed: %w", err)
	}
	var payload any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		payload, err = dsmodel.DecodeYAML(data)
	default:
		payload, err = dsmodel.DecodeJSON(data)
	}
	if err != nil {
		return fmt.Errorf("parse question file failed: %w", err)
	}

	view, err := s.practice.SelectQuestion(ctx, payload)
	if err != nil {
		return err
	}
	s.printLine("question %s (%s engine)", view.ID, view.Engine)
	s.printVariants()
	if a := view.State.Analytic; a != nil {
		s.printLine("engine %s, tables: %s", a.Phase, strings.Join(a.Tables, ", "))
		if a.Error != "" {
			s.printLine("  %s", a.Error)
		}
	}
	for _, d := range view.State.Datasets {
		s.printLine("%s -> %s: %s %s", d.Name, d.Variable, d.State, d.Message)
	}
	return nil
}

func (s *Session) export(ctx context.Context, arg, path string) error {
	id, err := s.variantArg([]string{arg})
	if err != nil {
		return err
	}
	data, name, err := s.practice.Export(ctx, id)
	if err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workbook failed: %w", err)
	}
	s.printLine("wrote %s", path)
	return nil
}

func (s *Session) execute(ctx context.Context, code string) error {
	res, err := s.practice.Execute(ctx, code)
	if err != nil {
		return err
	}
	switch r := res.(type) {
	case result.QueryResult:
		if r.Failed() {
			s.printLine("error: %s", r.Error)
			return nil
		}
		s.printTable(r.Columns, r.Rows)
		if r.Truncated {
			s.printLine("(truncated)")
		}
	case result.ScriptResult:
		if r.Failed() {
			s.printLine("error: %s", r.Error)
			return nil
		}
		_, _ = io.WriteString(s.out, r.Output)
	default:
		s.printJSON(res)
	}
	return nil
}

// variantArg accepts a 1-based position in the variant list or a variant id.
// No argument selects the first variant.
func (s *Session) variantArg(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if n, err := strconv.Atoi(args[0]); err == nil {
		variants := s.practice.Variants()
		if n < 1 || n > len(variants) {
			return "", fmt.Errorf("variant %d out of range (1-%d)", n, len(variants))
		}
		return variants[n-1].ID, nil
	}
	return args[0], nil
}

func (s *Session) printVariants() {
	variants := s.practice.Variants()
	if len(variants) == 0 {
		s.printLine("no datasets")
		return
	}
	for i, v := range variants {
		if v.TableName != "" && v.TableName != v.Label {
			s.printLine("%d. %s (%s)", i+1, v.Label, v.TableName)
			continue
		}
		s.printLine("%d. %s", i+1, v.Label)
	}
}

func (s *Session) printPreview(p preview.Preview) {
	s.printTable(p.Columns, p.Rows)
	if p.Truncated {
		s.printLine("(first %d rows)", preview.MaxRows)
	}
}

func (s *Session) printTable(columns []string, rows [][]any) {
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
	s.printLine("(%d rows)", len(rows))
}

func (s *Session) printJSON(v any) {
	var (
		data []byte
		err  error
	)
	if s.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		s.printLine("encode output failed: %v", err)
		return
	}
	s.printLine("%s", data)
}

func (s *Session) printHelp() {
	s.printLine("commands:")
	s.printLine("  .load <file>              select a question from a JSON or YAML file")
	s.printLine("  .variants                 list dataset variants")
	s.printLine("  .preview [n|id]           show the first rows of a variant")
	s.printLine("  .export <n|id> <path>     save a variant preview as a workbook")
	s.printLine("  .run <file>               execute code from a file")
	s.printLine("  .state | .retry           show or re-run engine preparation")
	s.printLine("  .help | .exit")
	s.printLine("any other line is executed against the active question")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
