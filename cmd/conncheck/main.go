package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"uclab.dev/conncheck/archive"
	"uclab.dev/conncheck/attest"
	"uclab.dev/conncheck/checkpoint"
	"uclab.dev/conncheck/lesson"
	"uclab.dev/conncheck/orchestrate"
	"uclab.dev/conncheck/trace"

	"github.com/ipfs/go-cid"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "check":
		return cmdCheck(args[1:], out, errOut)
	case "run":
		return cmdRun(args[1:], out, errOut)
	case "lessons":
		return cmdLessons(args[1:], out, errOut)
	case "attest":
		return cmdAttest(args[1:], out, errOut)
	case "verify-attestation":
		return cmdVerifyAttestation(args[1:], out, errOut)
	case "archive":
		return cmdArchive(args[1:], out, errOut)
	case "report-cid":
		return cmdReportCID(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "conncheck: peer-to-peer connectivity checkpoint verifier")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  conncheck check (--lesson <name> | --def <ckdf-file>) [--archived <CID>] [trace-files...]")
	fmt.Fprintln(w, "  conncheck run (--lesson <name> | --def <ckdf-file>) [--timeout <sec>] [--target <multiaddr>] [--dir <path>] -- <command> [args...]")
	fmt.Fprintln(w, "  conncheck lessons")
	fmt.Fprintln(w, "  conncheck attest (--lesson <name> | --def <ckdf-file>) [--key-file <path> | --seed-hex <64hex>] [--hash-alg sha256|sha512|sha3-256] [trace-file]")
	fmt.Fprintln(w, "  conncheck verify-attestation <report-file>")
	fmt.Fprintln(w, "  conncheck archive put [--root <dir>] <file>")
	fmt.Fprintln(w, "  conncheck archive get [--root <dir>] <CID>")
	fmt.Fprintln(w, "  conncheck report-cid <report-file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - check reads the trace from stdin when no trace-file is given")
	fmt.Fprintln(w, "  - run passes the target multiaddr to the child via REMOTE_PEER")
	fmt.Fprintln(w, "  - attest writes canonical report bytes to stdout (no trailing newline)")
	fmt.Fprintln(w, "  - environment overrides: CONNCHECK_USE_LOCAL_TARGET, CONNCHECK_TARGET_ADDRESS,")
	fmt.Fprintln(w, "    CONNCHECK_TIMEOUT_SECONDS, CONNCHECK_COMMAND")
}

// loadDefinition resolves exactly one of --lesson / --def.
func loadDefinition(lessonName, defPath string, errOut io.Writer) (checkpoint.Definition, bool) {
	if (lessonName == "") == (defPath == "") {
		fmt.Fprintln(errOut, "exactly one of --lesson or --def is required")
		return checkpoint.Definition{}, false
	}
	if lessonName != "" {
		def, err := lesson.Lookup(lessonName)
		if err != nil {
			fmt.Fprintf(errOut, "unknown lesson: %v\n", err)
			return checkpoint.Definition{}, false
		}
		return def, true
	}
	b, err := os.ReadFile(defPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --def: %v\n", err)
		return checkpoint.Definition{}, false
	}
	def, err := lesson.ParseCKDF(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid definition: %v\n", err)
		return checkpoint.Definition{}, false
	}
	return def, true
}

// readTraceArg reads the trace from the positional file arguments,
// concatenated in order, or from stdin when none are given.
func readTraceArg(fs *flag.FlagSet, errOut io.Writer) (string, bool) {
	if fs.NArg() == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(errOut, "read stdin: %v\n", err)
			return "", false
		}
		return string(b), true
	}
	var sb strings.Builder
	for _, path := range fs.Args() {
		b, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(errOut, "read trace: %v\n", err)
			return "", false
		}
		sb.Write(b)
		if len(b) > 0 && b[len(b)-1] != '\n' {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), true
}

func evaluateTrace(def checkpoint.Definition, raw string, errOut io.Writer) (*checkpoint.Report, bool) {
	events, err := trace.Extract(raw)
	if err != nil {
		fmt.Fprintf(errOut, "extract trace: %v\n", err)
		return nil, false
	}
	return checkpoint.Evaluate(def, events), true
}

func cmdCheck(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var lessonName string
	var defPath string
	var archived string
	var root string
	fs.StringVar(&lessonName, "lesson", "", "Built-in lesson definition name")
	fs.StringVar(&defPath, "def", "", "External definition file (CKDF)")
	fs.StringVar(&archived, "archived", "", "Read the trace from the archive by CID instead of files/stdin")
	fs.StringVar(&root, "root", "", "Archive root directory (default ~/.conncheck/archive)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	def, ok := loadDefinition(lessonName, defPath, errOut)
	if !ok {
		return 2
	}

	var raw string
	if archived != "" {
		if fs.NArg() > 0 {
			fmt.Fprintln(errOut, "--archived cannot be combined with trace files")
			return 2
		}
		id, err := cid.Decode(strings.TrimSpace(archived))
		if err != nil {
			fmt.Fprintf(errOut, "invalid --archived CID: %v\n", err)
			return 2
		}
		store, ok := openStore(root, errOut)
		if !ok {
			return 1
		}
		b, err := store.Get(id)
		if err != nil {
			fmt.Fprintf(errOut, "archived trace: %v\n", err)
			return 1
		}
		raw = string(b)
	} else {
		raw, ok = readTraceArg(fs, errOut)
		if !ok {
			return 1
		}
	}

	report, ok := evaluateTrace(def, raw, errOut)
	if !ok {
		return 1
	}
	report.Render(out)
	if !report.Pass {
		return 1
	}
	return 0
}

func cmdRun(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var lessonName string
	var defPath string
	var timeout int
	var target string
	var dir string
	var keepTrace string
	fs.StringVar(&lessonName, "lesson", "", "Built-in lesson definition name")
	fs.StringVar(&defPath, "def", "", "External definition file (CKDF)")
	fs.IntVar(&timeout, "timeout", 0, "Run timeout in seconds (default 120)")
	fs.StringVar(&target, "target", "", "Remote target multiaddr (exported as REMOTE_PEER)")
	fs.StringVar(&dir, "dir", "", "Working directory for the system-under-test")
	fs.StringVar(&keepTrace, "keep-trace", "", "Also write the captured trace to this file")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	def, ok := loadDefinition(lessonName, defPath, errOut)
	if !ok {
		return 2
	}

	cfg, err := orchestrate.ConfigFromEnv()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if timeout > 0 {
		cfg.TimeoutSeconds = timeout
	}
	if target != "" {
		cfg.UseLocalTarget = false
		cfg.TargetAddress = target
	}
	if dir != "" {
		cfg.Dir = dir
	}
	if fs.NArg() > 0 {
		cfg.Command = fs.Args()
	}
	if len(cfg.Command) == 0 {
		fmt.Fprintln(errOut, "missing command: pass it after -- or set CONNCHECK_COMMAND")
		return 2
	}

	captured, runErr := orchestrate.Run(context.Background(), cfg)
	if keepTrace != "" && captured.Output != "" {
		if werr := os.WriteFile(keepTrace, []byte(captured.Output), 0o644); werr != nil {
			fmt.Fprintf(errOut, "write --keep-trace: %v\n", werr)
		}
	}
	if runErr != nil {
		// An orchestration failure preempts rule evaluation: one
		// diagnostic, no per-rule output.
		fmt.Fprintf(errOut, "%s: %v\n", orchestrate.KindOf(runErr), runErr)
		return 1
	}

	report, ok := evaluateTrace(def, captured.Output, errOut)
	if !ok {
		return 1
	}
	report.Render(out)
	if !report.Pass {
		return 1
	}
	return 0
}

func cmdLessons(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("lessons", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	for _, name := range lesson.Names() {
		def, err := lesson.Lookup(name)
		if err != nil {
			fmt.Fprintf(errOut, "lookup %s: %v\n", name, err)
			return 1
		}
		fmt.Fprintf(out, "%s\t%s\n", name, def.Title)
	}
	return 0
}

func cmdAttest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("attest", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var lessonName string
	var defPath string
	var keyFile string
	var seedHex string
	var hashAlg string
	fs.StringVar(&lessonName, "lesson", "", "Built-in lesson definition name")
	fs.StringVar(&defPath, "def", "", "External definition file (CKDF)")
	fs.StringVar(&keyFile, "key-file", "", "Signer seed file (default ~/.conncheck/keys/signer.key, created if missing)")
	fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars (for reproducible output)")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "Digest algorithm: sha256, sha512, or sha3-256")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if seedHex != "" && keyFile != "" {
		fmt.Fprintln(errOut, "conflicting signer flags: --seed-hex cannot be combined with --key-file")
		return 2
	}
	def, ok := loadDefinition(lessonName, defPath, errOut)
	if !ok {
		return 2
	}
	raw, ok := readTraceArg(fs, errOut)
	if !ok {
		return 1
	}

	priv, err := loadSigner(seedHex, keyFile)
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}

	report, ok := evaluateTrace(def, raw, errOut)
	if !ok {
		return 1
	}

	doc := attest.FromReport(report)
	finalBytes, err := attest.SignEd25519(doc, hashAlg, priv)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	att, err := attest.Parse(finalBytes)
	if err != nil {
		fmt.Fprintf(errOut, "parse final: %v\n", err)
		return 1
	}
	if err := att.Verify(); err != nil {
		fmt.Fprintf(errOut, "verify final: %v\n", err)
		return 1
	}
	reportCID, err := att.CID()
	if err != nil {
		fmt.Fprintf(errOut, "cid: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "Report-CID: %s\n", reportCID)
	_, _ = out.Write(finalBytes)
	if !report.Pass {
		return 1
	}
	return 0
}

func loadSigner(seedHex, keyFile string) (ed25519.PrivateKey, error) {
	if seedHex != "" {
		seed, err := attest.ParseSeedHex(seedHex)
		if err != nil {
			return nil, err
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if keyFile == "" {
		var err error
		keyFile, err = attest.DefaultKeyPath()
		if err != nil {
			return nil, err
		}
	}
	return attest.LoadOrCreateSignerKey(keyFile)
}

func cmdVerifyAttestation(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify-attestation", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: conncheck verify-attestation <report-file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read report: %v\n", err)
		return 1
	}
	att, err := attest.Parse(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid report: %v\n", err)
		return 1
	}
	if err := att.Verify(); err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}
	reportCID, err := att.CID()
	if err != nil {
		fmt.Fprintf(errOut, "cid: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "OK %s (Verdict: %s)\n", reportCID, att.Doc.Result["Verdict"])
	return 0
}

func cmdArchive(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: conncheck archive <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get")
		return 2
	}
	switch args[0] {
	case "put":
		return cmdArchivePut(args[1:], out, errOut)
	case "get":
		return cmdArchiveGet(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown archive subcommand: %s\n", args[0])
		return 2
	}
}

func openStore(root string, errOut io.Writer) (*archive.Store, bool) {
	if root == "" {
		var err error
		root, err = archive.DefaultRoot()
		if err != nil {
			fmt.Fprintf(errOut, "archive root: %v\n", err)
			return nil, false
		}
	}
	store, err := archive.Open(root)
	if err != nil {
		fmt.Fprintf(errOut, "open archive: %v\n", err)
		return nil, false
	}
	return store, true
}

func cmdArchivePut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("archive put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var root string
	fs.StringVar(&root, "root", "", "Archive root directory (default ~/.conncheck/archive)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: conncheck archive put [--root <dir>] <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read file: %v\n", err)
		return 1
	}
	store, ok := openStore(root, errOut)
	if !ok {
		return 1
	}
	id, err := store.Put(b)
	if err != nil {
		fmt.Fprintf(errOut, "put: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id.String())
	return 0
}

func cmdArchiveGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("archive get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var root string
	fs.StringVar(&root, "root", "", "Archive root directory (default ~/.conncheck/archive)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: conncheck archive get [--root <dir>] <CID>")
		return 2
	}
	id, err := cid.Decode(strings.TrimSpace(fs.Arg(0)))
	if err != nil {
		fmt.Fprintf(errOut, "invalid CID: %v\n", err)
		return 2
	}
	store, ok := openStore(root, errOut)
	if !ok {
		return 1
	}
	b, err := store.Get(id)
	if err != nil {
		fmt.Fprintf(errOut, "get: %v\n", err)
		return 1
	}
	_, _ = out.Write(b)
	return 0
}

func cmdReportCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("report-cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: conncheck report-cid <report-file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read report: %v\n", err)
		return 1
	}
	s, err := attest.CIDv1RawSHA256(b)
	if err != nil {
		fmt.Fprintf(errOut, "cid: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, s)
	return 0
}
