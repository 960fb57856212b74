// Package main implements the recutil CLI: a thin cobra front-end over
// the recdb library's select/insert/delete/set/fix/fmt operations.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"recdb/internal/aggregate"
	"recdb/internal/config"
	"recdb/internal/core"
	"recdb/internal/fex"
	"recdb/internal/integrity"
	"recdb/internal/query"
	"recdb/internal/recparser"
	"recdb/internal/recwriter"
)

// cfg holds recdb.toml's engine-wide defaults, loaded once in main.
var cfg *config.Config

func main() {
	var err error
	cfg, err = loadConfig("recdb.toml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "recutil",
		Short: "Plain-text record database toolkit",
	}

	rootCmd.AddCommand(selCmd())
	rootCmd.AddCommand(insCmd())
	rootCmd.AddCommand(delCmd())
	rootCmd.AddCommand(setCmd())
	rootCmd.AddCommand(fixCmd())
	rootCmd.AddCommand(fmtCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadDB(path string) (*core.Database, error) {
	db, err := recparser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	db.Aggregates = aggregate.NewRegistry()
	for _, rs := range db.RSets() {
		if err := cfg.RegisterAliases(rs.Types); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// effectivePassword returns flagValue, or cfg's configured default
// password when flagValue is empty.
func effectivePassword(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Password
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func writeDB(db *core.Database, outFile string, opts recwriter.Options) error {
	out, err := recwriter.RenderDatabase(db, opts)
	if err != nil {
		return err
	}
	if outFile == "" || outFile == "-" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(outFile, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outFile, err)
	}
	return nil
}

func parseIndexSpec(spec string) ([]query.IndexRange, error) {
	if spec == "" {
		return nil, nil
	}
	var out []query.IndexRange
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '-'); i > 0 {
			lo, err1 := strconv.Atoi(strings.TrimSpace(part[:i]))
			hi, err2 := strconv.Atoi(strings.TrimSpace(part[i+1:]))
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("bad index range %q", part)
			}
			out = append(out, query.IndexRange{Min: lo, Max: hi})
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad index %q", part)
		}
		out = append(out, query.IndexRange{Min: n, Max: n})
	}
	return out, nil
}

func writerMode(s string) (recwriter.Mode, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return recwriter.Normal, nil
	case "sexp":
		return recwriter.Sexp, nil
	case "values":
		return recwriter.Values, nil
	case "values_row", "valuesrow":
		return recwriter.ValuesRow, nil
	default:
		return recwriter.Normal, fmt.Errorf("unknown output mode %q", s)
	}
}

// selFlags holds the flags shared by sel/ins/del/set for building a
// query.Selector.
type selFlags struct {
	index      string
	sex        string
	fastString string
	random     int
	icase      bool
}

func (f selFlags) toSelector() (query.Selector, error) {
	idx, err := parseIndexSpec(f.index)
	if err != nil {
		return query.Selector{}, err
	}
	return query.Selector{Index: idx, Sex: f.sex, FastString: f.fastString, Random: f.random}, nil
}

func (f selFlags) flagBits() query.Flags {
	var fl query.Flags
	if f.icase {
		fl |= query.FICase
	}
	return fl
}

type commonIOFlags struct {
	in, out string
	mode    string
	collapse,
	skipComments bool
}

func (f commonIOFlags) writerOptions() (recwriter.Options, error) {
	mode, err := writerMode(f.mode)
	if err != nil {
		return recwriter.Options{}, err
	}
	return recwriter.Options{Mode: mode, Collapse: f.collapse, SkipComments: f.skipComments}, nil
}

type selectCmdFlags struct {
	selFlags
	commonIOFlags
	typeName string
	join     string
	fexStr   string
	password string
	groupBy  string
	sortBy   string
	uniq     bool
	descr    bool
}

func selCmd() *cobra.Command {
	flags := &selectCmdFlags{}
	cmd := &cobra.Command{
		Use:   "sel <file.rec>",
		Short: "Select records from a record database",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			flags.in = args[0]
			return runSel(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.out, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&flags.mode, "mode", "normal", "output mode: normal|sexp|values|values_row")
	cmd.Flags().BoolVar(&flags.collapse, "collapse", false, "omit blank lines between records")
	cmd.Flags().BoolVar(&flags.skipComments, "no-comments", false, "drop comments from output")
	cmd.Flags().StringVarP(&flags.typeName, "type", "t", "", "record type (record set name)")
	cmd.Flags().StringVarP(&flags.join, "join", "j", "", "join field (type rec) to follow")
	cmd.Flags().StringVarP(&flags.index, "index", "n", "", "index selector, e.g. \"0-2,5\"")
	cmd.Flags().StringVarP(&flags.sex, "expression", "e", "", "selection expression (sex)")
	cmd.Flags().StringVarP(&flags.fastString, "in", "i", "", "fast substring filter")
	cmd.Flags().IntVar(&flags.random, "random", 0, "select N unique random records")
	cmd.Flags().BoolVar(&flags.icase, "icase", false, "case-insensitive selection/comparison")
	cmd.Flags().StringVarP(&flags.fexStr, "fields", "f", "", "field expression to project")
	cmd.Flags().StringVarP(&flags.password, "password", "s", "", "password to decrypt confidential fields")
	cmd.Flags().StringVarP(&flags.groupBy, "group-by", "g", "", "group-by field expression")
	cmd.Flags().StringVarP(&flags.sortBy, "sort-by", "S", "", "sort-by field expression")
	cmd.Flags().BoolVarP(&flags.uniq, "uniq", "U", false, "drop duplicate fields in each result record")
	cmd.Flags().BoolVarP(&flags.descr, "descriptor", "d", false, "include the record descriptor in the result")
	return cmd
}

func runSel(flags *selectCmdFlags) error {
	db, err := loadDB(flags.in)
	if err != nil {
		return err
	}
	sel, err := flags.toSelector()
	if err != nil {
		return err
	}

	var fx *fex.Fex
	if flags.fexStr != "" {
		fx, err = fex.New(flags.fexStr)
		if err != nil {
			return fmt.Errorf("parsing field expression: %w", err)
		}
	}

	fl := flags.flagBits()
	if flags.uniq {
		fl |= query.FUniq
	}
	if flags.descr {
		fl |= query.FDescriptor
	}

	params := query.Params{
		Type:     flags.typeName,
		Join:     flags.join,
		Selector: sel,
		Fex:      fx,
		Password: effectivePassword(flags.password),
		GroupBy:  splitCSVFields(flags.groupBy),
		SortBy:   splitCSVFields(flags.sortBy),
		Flags:    fl,
	}
	result, err := query.Select(db, params)
	if err != nil {
		return err
	}

	out := core.NewDatabase()
	out.Aggregates = db.Aggregates
	if err := out.AppendRSet(result); err != nil {
		return err
	}

	opts, err := flags.writerOptions()
	if err != nil {
		return err
	}
	return writeDB(out, flags.out, opts)
}

func splitCSVFields(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type insCmdFlags struct {
	selFlags
	typeName string
	fields   []string
	password string
	noAuto   bool
	in, out  string
}

func insCmd() *cobra.Command {
	flags := &insCmdFlags{}
	cmd := &cobra.Command{
		Use:   "ins <file.rec>",
		Short: "Insert or replace a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			flags.in = args[0]
			return runIns(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.out, "output", "o", "", "output file (default: overwrite input)")
	cmd.Flags().StringVarP(&flags.typeName, "type", "t", "", "record type (record set name)")
	cmd.Flags().StringArrayVar(&flags.fields, "field", nil, "NAME=VALUE, repeatable")
	cmd.Flags().StringVarP(&flags.password, "password", "s", "", "password to encrypt confidential fields")
	cmd.Flags().BoolVar(&flags.noAuto, "no-auto", false, "do not generate declared auto fields")
	cmd.Flags().StringVarP(&flags.index, "index", "n", "", "index selector of records to replace")
	cmd.Flags().StringVarP(&flags.sex, "expression", "e", "", "selection expression of records to replace")
	cmd.Flags().StringVarP(&flags.fastString, "in", "i", "", "fast substring filter of records to replace")
	cmd.Flags().IntVar(&flags.random, "random", 0, "replace N unique random records")
	return cmd
}

func runIns(flags *insCmdFlags) error {
	db, err := loadDB(flags.in)
	if err != nil {
		return err
	}
	sel, err := flags.toSelector()
	if err != nil {
		return err
	}

	rec := core.NewRecord()
	for _, kv := range flags.fields {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			return fmt.Errorf("bad --field value %q, want NAME=VALUE", kv)
		}
		rec.AppendField(core.NewField(kv[:i], kv[i+1:]))
	}

	fl := flags.flagBits()
	if flags.noAuto {
		fl |= query.FNoAuto
	}
	if err := query.Insert(db, flags.typeName, sel, effectivePassword(flags.password), rec, fl); err != nil {
		return err
	}

	out := flags.out
	if out == "" {
		out = flags.in
	}
	return writeDB(db, out, recwriter.Options{Mode: recwriter.Normal})
}

type delCmdFlags struct {
	selFlags
	typeName   string
	commentOut bool
	in, out    string
}

func delCmd() *cobra.Command {
	flags := &delCmdFlags{}
	cmd := &cobra.Command{
		Use:   "del <file.rec>",
		Short: "Delete records",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			flags.in = args[0]
			return runDel(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.out, "output", "o", "", "output file (default: overwrite input)")
	cmd.Flags().StringVarP(&flags.typeName, "type", "t", "", "record type (record set name)")
	cmd.Flags().StringVarP(&flags.index, "index", "n", "", "index selector")
	cmd.Flags().StringVarP(&flags.sex, "expression", "e", "", "selection expression")
	cmd.Flags().StringVarP(&flags.fastString, "in", "i", "", "fast substring filter")
	cmd.Flags().IntVar(&flags.random, "random", 0, "delete N unique random records")
	cmd.Flags().BoolVarP(&flags.commentOut, "comment-out", "c", false, "comment out instead of removing")
	return cmd
}

func runDel(flags *delCmdFlags) error {
	db, err := loadDB(flags.in)
	if err != nil {
		return err
	}
	sel, err := flags.toSelector()
	if err != nil {
		return err
	}
	fl := flags.flagBits()
	if flags.commentOut {
		fl |= query.FCommentOut
	}
	if err := query.Delete(db, flags.typeName, sel, fl); err != nil {
		return err
	}
	out := flags.out
	if out == "" {
		out = flags.in
	}
	return writeDB(db, out, recwriter.Options{Mode: recwriter.Normal})
}

type setCmdFlags struct {
	selFlags
	typeName string
	fexStr   string
	action   string
	arg      string
	in, out  string
}

func setCmd() *cobra.Command {
	flags := &setCmdFlags{}
	cmd := &cobra.Command{
		Use:   "set <file.rec>",
		Short: "Rename, set, add, delete or comment out fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			flags.in = args[0]
			return runSet(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.out, "output", "o", "", "output file (default: overwrite input)")
	cmd.Flags().StringVarP(&flags.typeName, "type", "t", "", "record type (record set name)")
	cmd.Flags().StringVarP(&flags.fexStr, "fields", "f", "", "field expression to act on")
	cmd.Flags().StringVarP(&flags.action, "action", "a", "set", "rename|set|add|setadd|delete|comment")
	cmd.Flags().StringVar(&flags.arg, "value", "", "new value or new name")
	cmd.Flags().StringVarP(&flags.index, "index", "n", "", "index selector")
	cmd.Flags().StringVarP(&flags.sex, "expression", "e", "", "selection expression")
	cmd.Flags().StringVarP(&flags.fastString, "in", "i", "", "fast substring filter")
	cmd.Flags().IntVar(&flags.random, "random", 0, "act on N unique random records")
	cmd.Flags().BoolVar(&flags.icase, "icase", false, "case-insensitive selection")
	return cmd
}

func parseAction(s string) (query.Action, error) {
	switch strings.ToLower(s) {
	case "rename":
		return query.Rename, nil
	case "set":
		return query.Set, nil
	case "add":
		return query.Add, nil
	case "setadd":
		return query.SetAdd, nil
	case "delete":
		return query.Delete, nil
	case "comment":
		return query.Comment, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

func runSet(flags *setCmdFlags) error {
	db, err := loadDB(flags.in)
	if err != nil {
		return err
	}
	sel, err := flags.toSelector()
	if err != nil {
		return err
	}
	if flags.fexStr == "" {
		return fmt.Errorf("--fields is required")
	}
	fx, err := fex.New(flags.fexStr)
	if err != nil {
		return fmt.Errorf("parsing field expression: %w", err)
	}
	action, err := parseAction(flags.action)
	if err != nil {
		return err
	}
	if err := query.SetFields(db, flags.typeName, sel, fx, action, flags.arg, flags.flagBits()); err != nil {
		return err
	}
	out := flags.out
	if out == "" {
		out = flags.in
	}
	return writeDB(db, out, recwriter.Options{Mode: recwriter.Normal})
}

type fixCmdFlags struct {
	in      string
	suggest bool
}

func fixCmd() *cobra.Command {
	flags := &fixCmdFlags{}
	cmd := &cobra.Command{
		Use:   "fix <file.rec>",
		Short: "Check database integrity",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			flags.in = args[0]
			return runFix(flags)
		},
	}
	cmd.Flags().BoolVar(&flags.suggest, "suggest", false, "also propose fixes for common violations")
	return cmd
}

func runFix(flags *fixCmdFlags) error {
	db, err := loadDB(flags.in)
	if err != nil {
		return err
	}
	errs := integrity.CheckDB(db, flags.in)
	for _, e := range errs.Errors() {
		fmt.Println(e)
	}
	if flags.suggest {
		for _, rs := range db.RSets() {
			for _, s := range integrity.SuggestFixes(rs) {
				fmt.Printf("%s:%d: suggestion: %s\n", flags.in, s.Line, s.Description)
			}
		}
	}
	fmt.Printf("%d error(s)\n", errs.Count())
	if errs.Count() > 0 {
		os.Exit(1)
	}
	return nil
}

type fmtCmdFlags struct {
	commonIOFlags
}

func fmtCmd() *cobra.Command {
	flags := &fmtCmdFlags{}
	cmd := &cobra.Command{
		Use:   "fmt <file.rec>",
		Short: "Re-render a record database in a chosen output mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			flags.in = args[0]
			return runFmt(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.out, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&flags.mode, "mode", "normal", "output mode: normal|sexp|values|values_row")
	cmd.Flags().BoolVar(&flags.collapse, "collapse", false, "omit blank lines between records")
	cmd.Flags().BoolVar(&flags.skipComments, "no-comments", false, "drop comments from output")
	return cmd
}

func runFmt(flags *fmtCmdFlags) error {
	db, err := loadDB(flags.in)
	if err != nil {
		return err
	}
	opts, err := flags.writerOptions()
	if err != nil {
		return err
	}
	return writeDB(db, flags.out, opts)
}
