package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/TheDaniel166/IsopGem-sub012/spreadsheet"
)

var version = "0.3.0"

var errorColor = color.New(color.FgRed).SprintFunc()
var headerColor = color.New(color.FgCyan, color.Bold).SprintFunc()

func main() {
	app := cli.NewApp()
	app.Name = "gridcalc"
	app.Usage = "evaluate spreadsheet formulas against an in-memory grid"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML file with grid cells and cipher definitions",
		},
		cli.IntFlag{
			Name:  "verbose, v",
			Usage: "log verbosity (0 quiet, 2 debug)",
		},
	}
	app.Before = func(c *cli.Context) error {
		commonlog.Configure(c.GlobalInt("verbose"), nil)
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "eval",
			Usage:     "evaluate a single formula and print the result",
			ArgsUsage: "FORMULA",
			Action:    runEval,
		},
		{
			Name:   "repl",
			Usage:  "interactive session against the grid",
			Action: runRepl,
		},
		{
			Name:   "functions",
			Usage:  "list every registered function",
			Action: runFunctions,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorColor(err.Error()))
		os.Exit(1)
	}
}

// session wires a grid, registry, and evaluator from the global config flag
type session struct {
	grid      *spreadsheet.MemGrid
	registry  *spreadsheet.FunctionRegistry
	evaluator *spreadsheet.Evaluator
}

func newSession(c *cli.Context) (*session, error) {
	grid := spreadsheet.NewMemGrid()

	registry := spreadsheet.NewFunctionRegistry()
	if err := spreadsheet.NewBuiltInFunctions().RegisterBuiltins(registry); err != nil {
		return nil, err
	}

	if path := c.GlobalString("config"); path != "" {
		config, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		if err := config.RegisterCiphers(registry); err != nil {
			return nil, err
		}
		if err := config.ApplyGrid(grid); err != nil {
			return nil, err
		}
	}

	return &session{
		grid:      grid,
		registry:  registry,
		evaluator: spreadsheet.NewEvaluator(grid, registry),
	}, nil
}

func runEval(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("eval needs a formula, e.g. gridcalc eval '=1+2*3'")
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}

	formula := strings.Join(c.Args(), " ")
	if !strings.HasPrefix(formula, "=") {
		formula = "=" + formula
	}

	fmt.Println(renderValue(s.evaluator.EvaluateFormula(formula)))
	return nil
}

func runFunctions(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Category", "Args", "Volatile", "Description"})
	table.SetAutoWrapText(false)

	for _, meta := range s.registry.AllMetadata() {
		args := strconv.Itoa(meta.MinArgs)
		switch {
		case meta.MaxArgs < 0:
			args += "+"
		case meta.MaxArgs != meta.MinArgs:
			args += "-" + strconv.Itoa(meta.MaxArgs)
		}
		volatile := ""
		if meta.Volatile {
			volatile = "yes"
		}
		table.Append([]string{meta.Name, meta.Category, args, volatile, meta.Description})
	}

	table.Render()
	return nil
}

const replHelp = `commands:
  set REF TEXT     store raw text (formulas start with =)
  get REF          show the computed value of a cell
  raw REF          show the raw text of a cell
  del REF          clear a cell
  show             render the populated grid
  funcs            list registered functions
  insrow N | delrow N | inscol N | delcol N
                   structural edits (1-based index)
  help             this text
  quit             leave

anything starting with '=' is evaluated as a formula.`

func runRepl(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("gridcalc %s. type 'help' for commands.\n", version)

	for {
		input, err := line.Prompt("grid> ")
		if err != nil {
			// liner returns an error on EOF and on Ctrl-C with aborts on
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == "quit" || input == "exit" {
			return nil
		}

		if err := s.dispatch(input); err != nil {
			fmt.Println(errorColor(err.Error()))
		}
	}
}

func (s *session) dispatch(input string) error {
	if strings.HasPrefix(input, "=") {
		fmt.Println(renderValue(s.evaluator.EvaluateFormula(input)))
		return nil
	}

	fields := strings.Fields(input)
	command := strings.ToLower(fields[0])

	switch command {
	case "help":
		fmt.Println(replHelp)
		return nil

	case "show":
		return s.showGrid()

	case "funcs":
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Category", "Description"})
		table.SetAutoWrapText(false)
		for _, meta := range s.registry.AllMetadata() {
			table.Append([]string{meta.Name, meta.Category, meta.Description})
		}
		table.Render()
		return nil

	case "set":
		if len(fields) < 3 {
			return fmt.Errorf("usage: set REF TEXT")
		}
		rest := strings.TrimSpace(input[len(fields[0]):])
		refEnd := strings.IndexAny(rest, " \t")
		if refEnd < 0 {
			return fmt.Errorf("usage: set REF TEXT")
		}
		col, row, err := spreadsheet.ParseRef(rest[:refEnd])
		if err != nil {
			return err
		}
		s.grid.SetCell(row, col, strings.TrimSpace(rest[refEnd:]))
		return nil

	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get REF")
		}
		col, row, err := spreadsheet.ParseRef(fields[1])
		if err != nil {
			return err
		}
		fmt.Println(renderValue(s.evaluator.CellValue(row, col)))
		return nil

	case "raw":
		if len(fields) != 2 {
			return fmt.Errorf("usage: raw REF")
		}
		col, row, err := spreadsheet.ParseRef(fields[1])
		if err != nil {
			return err
		}
		raw, ok := s.grid.CellRaw(row, col)
		if !ok {
			fmt.Println("(empty)")
			return nil
		}
		fmt.Println(raw)
		return nil

	case "del":
		if len(fields) != 2 {
			return fmt.Errorf("usage: del REF")
		}
		col, row, err := spreadsheet.ParseRef(fields[1])
		if err != nil {
			return err
		}
		s.grid.ClearCell(row, col)
		return nil

	case "insrow", "delrow", "inscol", "delcol":
		if len(fields) != 2 {
			return fmt.Errorf("usage: %s N", command)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return fmt.Errorf("%s needs a 1-based index", command)
		}
		switch command {
		case "insrow":
			s.grid.InsertRows(n-1, 1)
		case "delrow":
			s.grid.DeleteRows(n-1, 1)
		case "inscol":
			s.grid.InsertCols(n-1, 1)
		case "delcol":
			s.grid.DeleteCols(n-1, 1)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q, try 'help'", command)
	}
}

// showGrid renders every populated row and column as a table of
// computed values
func (s *session) showGrid() error {
	bounds, ok := s.grid.Bounds()
	if !ok {
		fmt.Println("(empty grid)")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)

	header := []string{""}
	for col := bounds.StartCol; col <= bounds.EndCol; col++ {
		header = append(header, headerColor(spreadsheet.ColumnLabel(col)))
	}
	table.SetHeader(header)

	for row := bounds.StartRow; row <= bounds.EndRow; row++ {
		cells := []string{headerColor(strconv.Itoa(row + 1))}
		for col := bounds.StartCol; col <= bounds.EndCol; col++ {
			cells = append(cells, renderValue(s.evaluator.CellValue(row, col)))
		}
		table.Append(cells)
	}

	table.Render()
	return nil
}

// renderValue formats a computed value for terminal output, with error
// codes in red
func renderValue(value spreadsheet.Primitive) string {
	if err, ok := value.(*spreadsheet.SpreadsheetError); ok {
		return errorColor(err.Code())
	}
	if value == nil {
		return ""
	}
	if b, ok := value.(bool); ok {
		if b {
			return "TRUE"
		}
		return "FALSE"
	}
	if f, ok := value.(float64); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprint(value)
}
