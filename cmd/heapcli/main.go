// Command heapcli is a line-oriented driver over a single heap file:
// CREATE, DESTROY, INSERT, GET, SCAN, DELETEALL and COUNT, with no SQL
// parser and no catalog above the heap file layer itself.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/heapkit/heapfiledb/bufferpool"
	"github.com/heapkit/heapfiledb/config"
	"github.com/heapkit/heapfiledb/diskmgr"
	"github.com/heapkit/heapfiledb/heap"
	"github.com/heapkit/heapfiledb/page"
)

func main() {
	cfgPath := flag.String("config", "", "path to a YAML/JSON config file (defaults built in if omitted)")
	dir := flag.String("dir", ".", "directory holding heap files, when -config is omitted")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *cfgPath != "" {
		abs, _ := filepath.Abs(*cfgPath)
		cfg, err = config.Load(abs)
	} else {
		cfg = config.Default(*dir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	dm, err := diskmgr.NewManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize disk manager: %v\n", err)
		os.Exit(2)
	}
	bm := bufferpool.NewPool(cfg, dm)

	cli := &cli{cfg: cfg, dm: dm, bm: bm}
	if err := cli.run(); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		os.Exit(2)
	}
}

type cli struct {
	cfg *config.Config
	dm  *diskmgr.Manager
	bm  *bufferpool.Pool
}

// run listens on stdin for commands until EXIT. No prompt is printed.
func (c *cli) run() error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "EXIT") {
			return nil
		}
		if err := c.dispatch(line, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (c *cli) dispatch(line string, w *os.File) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToUpper(fields[0]), fields[1:]

	switch cmd {
	case "CREATE":
		return c.cmdCreate(args)
	case "DESTROY":
		return c.cmdDestroy(args)
	case "COUNT":
		return c.cmdCount(args, w)
	case "INSERT":
		return c.cmdInsert(args, w)
	case "GET":
		return c.cmdGet(args, w)
	case "SCAN":
		return c.cmdScan(args, w)
	case "DELETEALL":
		return c.cmdDeleteAll(args, w)
	default:
		return fmt.Errorf("unsupported command: %s", line)
	}
}

func (c *cli) cmdCreate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: CREATE <name>")
	}
	return heap.CreateHeapFile(c.dm, c.bm, args[0])
}

func (c *cli) cmdDestroy(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: DESTROY <name>")
	}
	return heap.DestroyHeapFile(c.dm, args[0])
}

func (c *cli) cmdCount(args []string, w *os.File) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: COUNT <name>")
	}
	hf, err := heap.Open(c.dm, c.bm, args[0])
	if err != nil {
		return err
	}
	defer hf.Close()
	fmt.Fprintln(w, hf.GetRecCnt())
	return nil
}

func (c *cli) cmdInsert(args []string, w *os.File) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: INSERT <name> <text>")
	}
	ins, err := heap.NewInsertFileScan(c.dm, c.bm, args[0], c.cfg.PageSize)
	if err != nil {
		return err
	}
	defer ins.Close()

	rec := []byte(strings.Join(args[1:], " "))
	rid, err := ins.InsertRecord(rec)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d %d\n", rid.PageNo, rid.SlotNo)
	return nil
}

func (c *cli) cmdGet(args []string, w *os.File) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: GET <name> <pageNo> <slotNo>")
	}
	pageNo, err := strconv.Atoi(args[1])
	if err != nil {
		return err
	}
	slotNo, err := strconv.Atoi(args[2])
	if err != nil {
		return err
	}
	hf, err := heap.Open(c.dm, c.bm, args[0])
	if err != nil {
		return err
	}
	defer hf.Close()

	rec, err := hf.GetRecord(page.RID{PageNo: int32(pageNo), SlotNo: int32(slotNo)})
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(rec))
	return nil
}

// cmdScan supports "SCAN <name>" for a full scan, or "SCAN <name> <offset>
// <length> <op> <int-value>" for an integer-attribute filter (the only
// filter shape exposed at the command line).
func (c *cli) cmdScan(args []string, w *os.File) error {
	if len(args) != 1 && len(args) != 5 {
		return fmt.Errorf("usage: SCAN <name> [offset length op int-value]")
	}
	scan, err := heap.NewHeapFileScan(c.dm, c.bm, args[0])
	if err != nil {
		return err
	}
	defer func() {
		scan.EndScan()
		scan.Close()
	}()

	if len(args) == 5 {
		offset, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		length, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		op, err := parseOp(args[3])
		if err != nil {
			return err
		}
		value, err := strconv.Atoi(args[4])
		if err != nil {
			return err
		}
		filter := make([]byte, 4)
		binary.LittleEndian.PutUint32(filter, uint32(int32(value)))
		if err := scan.StartScan(offset, length, heap.AttrInteger, op, filter); err != nil {
			return err
		}
	} else if err := scan.StartScan(0, 0, heap.AttrString, heap.EQ, nil); err != nil {
		return err
	}

	for {
		rid, err := scan.ScanNext()
		if err != nil {
			break
		}
		rec, err := scan.GetRecord()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d %d %q\n", rid.PageNo, rid.SlotNo, rec)
	}
	return nil
}

func (c *cli) cmdDeleteAll(args []string, w *os.File) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: DELETEALL <name>")
	}
	scan, err := heap.NewHeapFileScan(c.dm, c.bm, args[0])
	if err != nil {
		return err
	}
	defer func() {
		scan.EndScan()
		scan.Close()
	}()
	if err := scan.StartScan(0, 0, heap.AttrString, heap.EQ, nil); err != nil {
		return err
	}

	n := 0
	for {
		if _, err := scan.ScanNext(); err != nil {
			break
		}
		if err := scan.DeleteRecord(); err != nil {
			return err
		}
		n++
	}
	fmt.Fprintln(w, n)
	return nil
}

func parseOp(s string) (heap.FilterOp, error) {
	switch strings.ToUpper(s) {
	case "LT":
		return heap.LT, nil
	case "LTE":
		return heap.LTE, nil
	case "EQ":
		return heap.EQ, nil
	case "GTE":
		return heap.GTE, nil
	case "GT":
		return heap.GT, nil
	case "NE":
		return heap.NE, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}
