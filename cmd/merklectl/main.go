// Command merklectl drives a merkle context store from the command line:
// replaying an action stream, inspecting a commit's history, and rendering
// a subtree as JSON.
//
// Usage:
//
//	merklectl [global flags] <command> [args]
//
// Commands:
//
//	apply  --actions FILE                             replay a JSON action stream and advance HEAD
//	put    --author A --message M --time T KEY VALUE  set KEY then commit in one step
//	get    [--at HASH] KEY                             print the blob value at KEY
//	log                                                print commit history back to the root
//	tree   [--at HASH] PREFIX                          print the subtree at PREFIX as JSON
//	stats                                              print cumulative engine activity
//
// put exists because staging only lives for the duration of one process: a
// bare set with no commit in the same invocation would be discarded on exit.
//
// get and tree default to reading the working tree checked out from HEAD;
// passing --at reads from the named commit's root instead.
//
// Global flags:
//
//	--datadir      on-disk store location (default: ./merklectl-data)
//	--verbosity    log level 0-3 (default: 1)
//	--cachemb      hot-entry cache size in MiB (default: 32)
package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eth2030/merklectx/action"
	mlog "github.com/eth2030/merklectx/log"
	"github.com/eth2030/merklectx/merkle"
	"github.com/eth2030/merklectx/store/cachedstore"
	"github.com/eth2030/merklectx/store/pebblestore"
)

var version = "v0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: merklectl [global flags] <command> [args]")
		return 1
	}

	fs := newCustomFlagSet("merklectl")
	datadir := fs.String("datadir", "./merklectl-data", "on-disk store location")
	verbosity := fs.Int("verbosity", 1, "log level 0-3")
	cacheMB := fs.Int("cachemb", 32, "hot-entry cache size in MiB")
	showVersion := fs.Bool("version", false, "print version and exit")

	// Global flags must precede the command name: flag.Parse stops at the
	// first non-flag argument, leaving the command and its own flags in
	// fs.Args() for the subcommand's flagSet to parse.
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if *showVersion {
		fmt.Println("merklectl " + version)
		return 0
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: merklectl [global flags] <command> [args]")
		return 1
	}
	cmd := fs.Arg(0)

	mlog.SetDefault(mlog.New(verbosityToLevel(*verbosity)))
	logger := mlog.Of(mlog.SubsystemCLI)

	if err := os.MkdirAll(*datadir, 0o755); err != nil {
		logger.Error("failed to create datadir", "err", err)
		return 1
	}

	pdb, err := pebblestore.Open(filepath.Join(*datadir, "db"))
	if err != nil {
		return 1
	}
	defer pdb.Close()
	backing := cachedstore.New(pdb, *cacheMB<<20)

	eng := merkle.New(backing)
	head, hasHead, err := loadHead(*datadir)
	if err != nil {
		logger.Error("failed to load HEAD", "err", err)
		return 1
	}
	if hasHead {
		if err := eng.Checkout(head); err != nil {
			logger.Error("failed to checkout HEAD", "hash", head.String(), "err", err)
			return 1
		}
	}

	rest := fs.Args()[1:]
	switch cmd {
	case "apply":
		return cmdApply(eng, *datadir, rest, logger)
	case "put":
		return cmdPut(eng, *datadir, rest, logger)
	case "get":
		return cmdGet(eng, rest, logger)
	case "log":
		return cmdLog(eng, rest, logger)
	case "tree":
		return cmdTree(eng, rest, logger)
	case "stats":
		return cmdStats(eng)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		return 1
	}
}

func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelError
	case v == 1:
		return slog.LevelWarn
	case v == 2:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

const headFileName = "HEAD"

func loadHead(datadir string) (merkle.Hash, bool, error) {
	b, err := os.ReadFile(filepath.Join(datadir, headFileName))
	if os.IsNotExist(err) {
		return merkle.Hash{}, false, nil
	}
	if err != nil {
		return merkle.Hash{}, false, err
	}
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return merkle.Hash{}, false, err
	}
	h, err := merkle.HashFromBytes(raw)
	if err != nil {
		return merkle.Hash{}, false, err
	}
	return h, true, nil
}

func saveHead(datadir string, h merkle.Hash) error {
	return os.WriteFile(filepath.Join(datadir, headFileName), []byte(h.String()), 0o644)
}

func cmdApply(eng *merkle.Engine, datadir string, args []string, logger *mlog.Logger) int {
	fs := newCustomFlagSet("apply")
	actionsPath := fs.String("actions", "", "path to a JSON action stream")
	if err := fs.Parse(args); err != nil || *actionsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: merklectl apply --actions FILE")
		return 1
	}
	actions, err := loadActions(*actionsPath)
	if err != nil {
		logger.Error("failed to load actions", "err", err)
		return 1
	}
	if err := action.ApplyStream(eng, actions); err != nil {
		logger.Error("failed to apply actions", "err", err)
		return 1
	}
	if head, err := eng.LastCommit(); err == nil {
		if err := saveHead(datadir, head); err != nil {
			logger.Error("failed to persist HEAD", "err", err)
			return 1
		}
		fmt.Println(head.String())
	}
	return 0
}

func cmdPut(eng *merkle.Engine, datadir string, args []string, logger *mlog.Logger) int {
	fs := newCustomFlagSet("put")
	author := fs.String("author", "", "commit author")
	message := fs.String("message", "", "commit message")
	var ts uint64
	fs.Uint64Var(&ts, "time", 0, "commit timestamp, seconds since epoch")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: merklectl put --author A --message M --time T KEY VALUE")
		return 1
	}
	if err := eng.Set(fs.Arg(0), []byte(fs.Arg(1))); err != nil {
		logger.Error("set failed", "err", err)
		return 1
	}
	head, err := eng.Commit(*author, *message, ts)
	if err != nil {
		logger.Error("commit failed", "err", err)
		return 1
	}
	if err := saveHead(datadir, head); err != nil {
		logger.Error("failed to persist HEAD", "err", err)
		return 1
	}
	fmt.Println(head.String())
	return 0
}

func cmdGet(eng *merkle.Engine, args []string, logger *mlog.Logger) int {
	fs := newCustomFlagSet("get")
	var at merkle.Hash
	fs.HashVar(&at, "at", "read from this commit's root instead of the working tree")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: merklectl get [--at HASH] KEY")
		return 1
	}
	var (
		v   []byte
		err error
	)
	if at.IsZero() {
		v, err = eng.Get(fs.Arg(0))
	} else {
		v, err = eng.GetHistory(at, fs.Arg(0))
	}
	if err != nil {
		logger.Error("get failed", "err", err)
		return 1
	}
	fmt.Println(hex.EncodeToString(v))
	return 0
}

func cmdLog(eng *merkle.Engine, args []string, logger *mlog.Logger) int {
	head, err := eng.LastCommit()
	if err != nil {
		logger.Error("no commits yet", "err", err)
		return 1
	}
	commits, err := eng.WalkHistory(head, 0)
	if err != nil {
		logger.Error("log failed", "err", err)
		return 1
	}
	for _, c := range commits {
		fmt.Printf("%s %s: %s\n", c.Root.String(), c.Author, c.Message)
	}
	return 0
}

func cmdTree(eng *merkle.Engine, args []string, logger *mlog.Logger) int {
	fs := newCustomFlagSet("tree")
	var at merkle.Hash
	fs.HashVar(&at, "at", "read from this commit's root instead of the working tree")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: merklectl tree [--at HASH] PREFIX")
		return 1
	}
	var (
		j   string
		err error
	)
	if at.IsZero() {
		j, err = eng.GetContextTreeByPrefix(fs.Arg(0))
	} else {
		j, err = eng.GetContextTreeByPrefixAt(at, fs.Arg(0))
	}
	if err != nil {
		logger.Error("tree failed", "err", err)
		return 1
	}
	fmt.Println(j)
	return 0
}

func cmdStats(eng *merkle.Engine) int {
	s := eng.Stats()
	fmt.Printf("set_calls=%d average_set_time=%s staging_size=%d tree_size=%d\n",
		s.SetCalls, s.AverageSetTime, s.StagingSize, s.TreeSize)
	return 0
}

